package leadapi

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// defaultPollInterval is the fixed delay between count reads. The upstream
// build/delete operations settle in coarse steps, so there is no backoff.
const defaultPollInterval = 5 * time.Second

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	report   func(current, target int)
}

// WithInterval overrides the fixed poll interval.
func WithInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.interval = d
	}
}

// WithReport installs a callback invoked with every observed count.
func WithReport(fn func(current, target int)) PollOption {
	return func(c *pollConfig) {
		c.report = fn
	}
}

// PollCount repeatedly reads the account's live record count until it equals
// target or the budget elapses. The label names the operation being awaited
// in errors. Exceeding the budget is fatal to the caller's run; so is any
// count read failure mid-poll.
func PollCount(ctx context.Context, client Client, token string, target int, budget time.Duration, label string, opts ...PollOption) error {
	cfg := pollConfig{interval: defaultPollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	for {
		current, err := client.CountLeads(ctx, token)
		if err != nil {
			return eris.Wrap(err, fmt.Sprintf("leadapi: poll %s", label))
		}

		if cfg.report != nil {
			cfg.report(current, target)
		}

		if current == target {
			return nil
		}

		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), fmt.Sprintf("leadapi: poll %s: count %d never reached %d within %s", label, current, target, budget))
		case <-time.After(cfg.interval):
		}
	}
}
