package eventbus

import (
	"log/slog"
	"time"
)

// Config holds the delivery defaults applied to every subscription.
type Config struct {
	Workers        int
	MaxAttempts    int
	RetryBackoff   time.Duration
	HandlerTimeout time.Duration
	QueueSize      int
	CronInterval   time.Duration // how often daily timers check the clock
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.CronInterval <= 0 {
		c.CronInterval = 30 * time.Second
	}
	return c
}

// BusOption configures a Bus.
type BusOption func(*Bus)

func WithLogger(l *slog.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithIdempotency enables de-duplication of event ids per subscription.
func WithIdempotency(store IdempotencyStore, ttl time.Duration) BusOption {
	return func(b *Bus) {
		b.store = store
		b.ttl = ttl
	}
}

func WithRecorder(r Recorder) BusOption {
	return func(b *Bus) {
		if r != nil {
			b.rec = r
		}
	}
}

func WithForwarder(f Forwarder) BusOption {
	return func(b *Bus) {
		if f != nil {
			b.forwarders = append(b.forwarders, f)
		}
	}
}

func withClock(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

// Option overrides delivery settings for a single subscription.
type Option func(*Config)

func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

func WithMaxAttempts(n int) Option { return func(c *Config) { c.MaxAttempts = n } }

func WithRetryBackoff(d time.Duration) Option { return func(c *Config) { c.RetryBackoff = d } }

func WithHandlerTimeout(d time.Duration) Option { return func(c *Config) { c.HandlerTimeout = d } }

// BatchPolicy flushes a batch at MaxSize events or Timeout after the first
// event of the batch arrived, whichever comes first.
type BatchPolicy struct {
	MaxSize int
	Timeout time.Duration
}

// DailyAt is a wall-clock time of day in the bus clock's location.
type DailyAt struct {
	Hour   int
	Minute int
}
