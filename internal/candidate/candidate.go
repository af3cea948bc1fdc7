package candidate

import (
	"strings"
	"sync"
	"time"
)

// Candidate is one base URL considered as a possible backend location,
// along with the outcome of the most recent reachability probe.
type Candidate struct {
	url         string
	fallback    bool
	mutex       sync.Mutex
	probed      bool
	reachable   bool
	lastProbe   time.Time
	ewmaLatency time.Duration
	hasEWMA     bool
}

// Status is a point-in-time view of a candidate for reporting.
type Status struct {
	URL       string        `json:"url"`
	Fallback  bool          `json:"fallback"`
	Probed    bool          `json:"probed"`
	Reachable bool          `json:"reachable"`
	LastProbe time.Time     `json:"last_probe,omitempty"`
	Latency   time.Duration `json:"latency"`
}

const ewmaAlpha = 0.2

// New creates a candidate for the given base URL. Trailing slashes are
// trimmed so request paths can be appended directly.
func New(rawURL string, fallback bool) *Candidate {
	return &Candidate{
		url:      Normalize(rawURL),
		fallback: fallback,
	}
}

// Normalize trims whitespace and trailing slashes from a base URL.
func Normalize(rawURL string) string {
	return strings.TrimRight(strings.TrimSpace(rawURL), "/")
}

// URL returns the candidate base URL.
func (c *Candidate) URL() string {
	return c.url
}

// IsFallback reports whether this is the deployment-configured default.
func (c *Candidate) IsFallback() bool {
	return c.fallback
}

// IsReachable returns true if the last probe succeeded.
func (c *Candidate) IsReachable() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.reachable
}

// RecordProbe stores the outcome of a probe. Latency only feeds the moving
// average when the probe succeeded.
// Returns true if reachability changed.
func (c *Candidate) RecordProbe(reachable bool, latency time.Duration, at time.Time) (changed bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	changed = !c.probed || c.reachable != reachable
	c.probed = true
	c.reachable = reachable
	c.lastProbe = at

	if !reachable {
		return changed
	}

	if !c.hasEWMA {
		c.ewmaLatency = latency
		c.hasEWMA = true
		return changed
	}
	//ewma = (1 - α) * ewma + α * latest
	c.ewmaLatency = time.Duration((1-ewmaAlpha)*float64(c.ewmaLatency) + ewmaAlpha*float64(latency))
	return changed
}

// Latency returns the moving average probe latency, or 0 if the candidate
// has never answered.
func (c *Candidate) Latency() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.hasEWMA {
		return 0
	}
	return c.ewmaLatency
}

// Status returns a snapshot of the candidate.
func (c *Candidate) Status() Status {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return Status{
		URL:       c.url,
		Fallback:  c.fallback,
		Probed:    c.probed,
		Reachable: c.reachable,
		LastProbe: c.lastProbe,
		Latency:   c.ewmaLatency,
	}
}
