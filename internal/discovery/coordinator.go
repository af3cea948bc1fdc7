package discovery

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
	"github.com/angeloszaimis/campus-gateway/internal/metrics"
)

const flightKey = "discover"

// Prober runs one discovery round over the candidates.
type Prober interface {
	Probe(ctx context.Context, candidates []*candidate.Candidate) (string, error)
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	Resolved   string             `json:"resolved"`
	Degraded   bool               `json:"degraded"`
	Candidates []candidate.Status `json:"candidates"`
}

type Coordinator struct {
	registry  *candidate.Registry
	prober    Prober
	group     singleflight.Group
	mutex     sync.RWMutex
	resolved  string
	rounds    uint64
	degraded  bool
	collector *metrics.Collector
	logger    *slog.Logger
}

func NewCoordinator(registry *candidate.Registry, prober Prober, logger *slog.Logger, collector *metrics.Collector) *Coordinator {
	return &Coordinator{
		registry:  registry,
		prober:    prober,
		collector: collector,
		logger:    logger,
	}
}

// Current returns the resolved endpoint without doing any I/O.
func (c *Coordinator) Current() (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.resolved, c.resolved != ""
}

// Degraded reports whether the current endpoint is the configured default
// chosen because discovery found nothing reachable.
func (c *Coordinator) Degraded() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.degraded
}

// Resolve returns the cached endpoint, or joins (or starts) a discovery round
// when none is cached.
func (c *Coordinator) Resolve(ctx context.Context) (string, error) {
	c.mutex.RLock()
	endpoint, seen := c.resolved, c.rounds
	c.mutex.RUnlock()

	if endpoint != "" {
		return endpoint, nil
	}
	return c.discover(ctx, seen)
}

// ForceRedetect drops the cached endpoint and waits for a discovery round.
// Concurrent callers share one round; a round already in flight is joined
// rather than restarted.
func (c *Coordinator) ForceRedetect(ctx context.Context) (string, error) {
	c.mutex.Lock()
	c.resolved = ""
	seen := c.rounds
	c.mutex.Unlock()

	endpoint, err := c.discover(ctx, seen)
	if err != nil {
		return "", err
	}

	// The joined round may have stored its result before the cache was
	// cleared above.
	c.mutex.Lock()
	if c.resolved == "" {
		c.resolved = endpoint
	}
	c.mutex.Unlock()

	return endpoint, nil
}

func (c *Coordinator) Status() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return Status{
		Resolved:   c.resolved,
		Degraded:   c.degraded,
		Candidates: c.registry.Statuses(),
	}
}

// discover joins the in-flight round or starts one. seen is the number of
// completed rounds the caller observed; if another round finished since then
// its result is reused instead of probing again.
func (c *Coordinator) discover(ctx context.Context, seen uint64) (string, error) {
	// The round is detached from the caller so that a cancelled caller stops
	// waiting without abandoning the round for everyone else.
	roundCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		c.mutex.RLock()
		endpoint, rounds := c.resolved, c.rounds
		c.mutex.RUnlock()
		if rounds != seen && endpoint != "" {
			return endpoint, nil
		}

		return c.runRound(roundCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) runRound(ctx context.Context) (string, error) {
	endpoint, err := c.prober.Probe(ctx, c.registry.Candidates())
	degraded := false

	if err != nil {
		endpoint = c.registry.Fallback()
		if endpoint == "" {
			c.logger.Error("Endpoint discovery failed and no default is configured",
				slog.Any("err", err))
			return "", err
		}

		degraded = true
		c.logger.Warn("Endpoint discovery failed, continuing degraded on default endpoint",
			slog.String("endpoint", endpoint),
			slog.Any("err", err))
	} else {
		c.logger.Info("Endpoint resolved", slog.String("endpoint", endpoint))
	}

	c.mutex.Lock()
	c.resolved = endpoint
	c.degraded = degraded
	c.rounds++
	c.mutex.Unlock()

	c.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventEndpointResolved,
		Endpoint: endpoint,
		Degraded: degraded,
	})

	return endpoint, nil
}
