package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// Config selects the limiter backend.
type Config struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	RedisDB       int
}
