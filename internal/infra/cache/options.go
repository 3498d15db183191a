package cache

import (
	"log/slog"
	"time"
)

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetry fija cuántas veces se reintenta un comando fallido y la base
// del backoff exponencial.
func WithRetry(max uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.baseDelay = base
	}
}

func WithOpTimeout(d time.Duration) Option {
	return func(c *Client) { c.opTimeout = d }
}
