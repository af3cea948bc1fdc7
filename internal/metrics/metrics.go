package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex           sync.RWMutex
	requests        map[string]int64
	failures        map[string]map[string]int64
	responseTimes   map[string][]time.Duration
	statusCodes     map[string]map[int]int64
	reachable       map[string]bool
	resolved        string
	degraded        bool
	discoveryRounds int64
	redetections    int64
	switches        int64
	startTime       time.Time
}

type Snapshot struct {
	TotalRequests    int64                      `json:"total_requests"`
	TotalFailures    int64                      `json:"total_failures"`
	Uptime           time.Duration              `json:"uptime"`
	ResolvedEndpoint string                     `json:"resolved_endpoint"`
	Degraded         bool                       `json:"degraded"`
	DiscoveryRounds  int64                      `json:"discovery_rounds"`
	Redetections     int64                      `json:"redetections"`
	EndpointSwitches int64                      `json:"endpoint_switches"`
	Endpoints        map[string]EndpointMetrics `json:"endpoints"`
}

type EndpointMetrics struct {
	Requests    int64            `json:"requests"`
	Failures    map[string]int64 `json:"failures"`
	Reachable   bool             `json:"reachable"`
	AvgResponse time.Duration    `json:"avg_response"`
	P50Response time.Duration    `json:"p50_response"`
	P95Response time.Duration    `json:"p95_response"`
	P99Response time.Duration    `json:"p99_response"`
	StatusCodes map[int]int64    `json:"status_codes"`
}

// RecordResponse records an attempt that received an HTTP response, whatever
// its status.
func (m *Metrics) RecordResponse(endpoint string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[endpoint]++
	m.responseTimes[endpoint] = append(m.responseTimes[endpoint], duration)

	if len(m.responseTimes[endpoint]) > maxSamples {
		m.responseTimes[endpoint] = m.responseTimes[endpoint][1:]
	}

	m.recordStatus(endpoint, statusCode)
}

// RecordFailure records a classified failure. Transport failures carry no
// status code and also count as a request.
func (m *Metrics) RecordFailure(endpoint, kind string, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failures[endpoint] == nil {
		m.failures[endpoint] = make(map[string]int64)
	}
	m.failures[endpoint][kind]++

	if statusCode == 0 {
		m.requests[endpoint]++
	}
}

func (m *Metrics) recordStatus(endpoint string, statusCode int) {
	if statusCode == 0 {
		return
	}
	if m.statusCodes[endpoint] == nil {
		m.statusCodes[endpoint] = make(map[int]int64)
	}
	m.statusCodes[endpoint][statusCode]++
}

func (m *Metrics) UpdateReachability(endpoint string, reachable bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.reachable[endpoint] = reachable
}

func (m *Metrics) RecordResolution(endpoint string, degraded bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.discoveryRounds++
	if m.resolved != "" && m.resolved != endpoint {
		m.switches++
	}
	m.resolved = endpoint
	m.degraded = degraded
}

func (m *Metrics) RecordRedetection() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.redetections++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:           time.Since(m.startTime),
		ResolvedEndpoint: m.resolved,
		Degraded:         m.degraded,
		DiscoveryRounds:  m.discoveryRounds,
		Redetections:     m.redetections,
		EndpointSwitches: m.switches,
		Endpoints:        make(map[string]EndpointMetrics),
	}

	endpoints := make(map[string]struct{})
	for e := range m.requests {
		endpoints[e] = struct{}{}
	}
	for e := range m.failures {
		endpoints[e] = struct{}{}
	}
	for e := range m.reachable {
		endpoints[e] = struct{}{}
	}

	for endpoint := range endpoints {
		snap.TotalRequests += m.requests[endpoint]

		em := EndpointMetrics{
			Requests:    m.requests[endpoint],
			Failures:    make(map[string]int64, len(m.failures[endpoint])),
			Reachable:   m.reachable[endpoint],
			StatusCodes: make(map[int]int64, len(m.statusCodes[endpoint])),
		}
		for kind, n := range m.failures[endpoint] {
			em.Failures[kind] = n
			snap.TotalFailures += n
		}
		for code, n := range m.statusCodes[endpoint] {
			em.StatusCodes[code] = n
		}

		durations := m.responseTimes[endpoint]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			em.AvgResponse = average(sorted)
			em.P50Response = percentile(sorted, 0.50)
			em.P95Response = percentile(sorted, 0.95)
			em.P99Response = percentile(sorted, 0.99)
		}

		snap.Endpoints[endpoint] = em
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		failures:      make(map[string]map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		reachable:     make(map[string]bool),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
