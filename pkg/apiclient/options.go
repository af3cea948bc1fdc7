package apiclient

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/campus-gateway/internal/metrics"
	"github.com/angeloszaimis/campus-gateway/pkg/tokenstore"
)

// Options configures a Client.
type Options struct {
	HTTPClient      *http.Client
	Timeout         time.Duration
	Tokens          tokenstore.Store
	Logger          *slog.Logger
	Collector       *metrics.Collector
	NotFoundIsStale bool
}

// Option sets one field of Options, rejecting invalid values.
type Option func(*Options) error

// HTTPClient replaces the client used for requests. Its own Timeout still
// applies on top of the per-attempt timeout.
func HTTPClient(client *http.Client) Option {
	return func(o *Options) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		o.HTTPClient = client
		return nil
	}
}

// Timeout bounds each attempt, not the whole call. The default is 15 seconds.
func Timeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		o.Timeout = timeout
		return nil
	}
}

// Tokens sets the store the Authorization header is read from. The default
// is an empty in-memory store.
func Tokens(store tokenstore.Store) Option {
	return func(o *Options) error {
		if store == nil {
			return errors.New("token store cannot be nil")
		}
		o.Tokens = store
		return nil
	}
}

// Logger sets the logger for request failures and redetections.
func Logger(logger *slog.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.Logger = logger
		return nil
	}
}

// Collector sets where request events are emitted. Nil disables metrics.
func Collector(collector *metrics.Collector) Option {
	return func(o *Options) error {
		o.Collector = collector
		return nil
	}
}

// NotFoundIsStale controls whether 404 responses count as connectivity
// failures. The default is true.
func NotFoundIsStale(enabled bool) Option {
	return func(o *Options) error {
		o.NotFoundIsStale = enabled
		return nil
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) (*Options, error) {
	o := &Options{
		HTTPClient:      &http.Client{},
		Timeout:         15 * time.Second,
		Tokens:          tokenstore.NewMemoryStore(),
		Logger:          slog.Default(),
		NotFoundIsStale: true,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}
