package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// EndpointSource exposes the currently resolved endpoint without doing I/O.
type EndpointSource interface {
	Current() (string, bool)
}

// Reporter receives the outcome of each monitor ping.
type Reporter interface {
	ReportSuccess()
	ReportFailure()
}

// Monitor pings the resolved endpoint every interval and reports the outcome.
// While pings keep failing the delay grows exponentially up to maxBackoff.
// It returns when ctx is cancelled.
func Monitor(
	ctx context.Context,
	prober *Prober,
	source EndpointSource,
	reporter Reporter,
	interval time.Duration,
	maxBackoff time.Duration,
	logger *slog.Logger,
) {
	if maxBackoff < interval {
		maxBackoff = interval
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	failing := false

	for {
		select {
		case <-ctx.Done():
			logger.Info("Endpoint monitor stopped")
			return

		case <-timer.C:
			next := interval

			endpoint, ok := source.Current()
			if ok {
				if _, err := prober.Ping(ctx, endpoint); err != nil {
					if ctx.Err() != nil {
						continue
					}
					reporter.ReportFailure()
					next = bo.NextBackOff()
					if !failing {
						logger.Warn("Resolved endpoint stopped answering",
							slog.String("endpoint", endpoint),
							slog.Any("err", err))
					}
					failing = true
				} else {
					reporter.ReportSuccess()
					bo.Reset()
					if failing {
						logger.Info("Resolved endpoint is back up",
							slog.String("endpoint", endpoint))
					}
					failing = false
				}
			}

			timer.Reset(next)
		}
	}
}
