package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestCompleted EventType = "request_completed"
	EventRequestFailed    EventType = "request_failed"
	EventProbeResult      EventType = "probe_result"
	EventEndpointResolved EventType = "endpoint_resolved"
	EventRedetection      EventType = "redetection"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Endpoint   string
	Duration   time.Duration
	StatusCode int
	Kind       string
	Healthy    bool
	Degraded   bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking. Events are dropped when the buffer
// is full or the collector is nil.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestCompleted:
		c.metrics.RecordResponse(event.Endpoint, event.Duration, event.StatusCode)

	case EventRequestFailed:
		c.metrics.RecordFailure(event.Endpoint, event.Kind, event.StatusCode)

	case EventProbeResult:
		c.metrics.UpdateReachability(event.Endpoint, event.Healthy)

	case EventEndpointResolved:
		c.metrics.RecordResolution(event.Endpoint, event.Degraded)

	case EventRedetection:
		c.metrics.RecordRedetection()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
