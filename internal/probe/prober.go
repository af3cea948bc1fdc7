package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
	"github.com/angeloszaimis/campus-gateway/internal/metrics"
	"github.com/angeloszaimis/campus-gateway/internal/strategy"
)

// ErrNoReachableEndpoint is returned when every candidate failed its probe, or
// there were no candidates at all.
var ErrNoReachableEndpoint = errors.New("no reachable endpoint")

const (
	DefaultPath    = "/health"
	DefaultTimeout = 2 * time.Second
)

// Prober checks candidates with a lightweight GET and returns the first one
// that answers with a non-5xx status before its timeout.
type Prober struct {
	client    *http.Client
	path      string
	timeout   time.Duration
	strategy  strategy.Strategy
	collector *metrics.Collector
	logger    *slog.Logger
}

type Option func(*Prober)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// WithPath sets the path appended to each candidate base URL.
func WithPath(path string) Option {
	return func(p *Prober) {
		if path != "" {
			p.path = path
		}
	}
}

// WithTimeout bounds each individual candidate check.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithStrategy(s strategy.Strategy) Option {
	return func(p *Prober) {
		p.strategy = s
	}
}

func WithCollector(c *metrics.Collector) Option {
	return func(p *Prober) {
		p.collector = c
	}
}

func NewProber(logger *slog.Logger, opts ...Option) *Prober {
	p := &Prober{
		client:   &http.Client{},
		path:     DefaultPath,
		timeout:  DefaultTimeout,
		strategy: strategy.NewSequentialStrategy(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs one discovery round and returns the winning base URL.
func (p *Prober) Probe(ctx context.Context, candidates []*candidate.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: candidate list is empty", ErrNoReachableEndpoint)
	}

	chosen, err := p.strategy.Select(ctx, candidates, p.check)
	if chosen == nil {
		if err == nil {
			err = errors.New("no candidate answered")
		}
		return "", fmt.Errorf("%w: %w", ErrNoReachableEndpoint, err)
	}

	return chosen.URL(), nil
}

// Ping issues a single reachability check against baseURL and returns its
// latency.
func (p *Prober) Ping(ctx context.Context, baseURL string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+p.path, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))

	latency := time.Since(start)
	if res.StatusCode >= http.StatusInternalServerError {
		return latency, fmt.Errorf("probe %s: status %d", baseURL, res.StatusCode)
	}

	return latency, nil
}

func (p *Prober) check(ctx context.Context, c *candidate.Candidate) error {
	latency, err := p.Ping(ctx, c.URL())

	// Cancelled by the strategy (a faster candidate won) or by the round's
	// owner: nothing was learned about this candidate.
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}

	reachable := err == nil
	if c.RecordProbe(reachable, latency, time.Now()) {
		if reachable {
			p.logger.Info("Candidate reachable",
				slog.String("candidate", c.URL()),
				slog.Duration("latency", latency))
		} else {
			p.logger.Warn("Candidate unreachable",
				slog.String("candidate", c.URL()),
				slog.Any("err", err))
		}
	}

	p.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventProbeResult,
		Endpoint: c.URL(),
		Duration: latency,
		Healthy:  reachable,
	})

	return err
}
