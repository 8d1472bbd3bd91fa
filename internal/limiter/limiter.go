// Package limiter throttles login attempts per (identity, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
// key is model.Identity.Key(); ipHash comes from HashIP.
type Limiter interface {
	// Allow reports whether login is currently allowed and the remaining block, if any.
	Allow(ctx context.Context, key string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, key string, ipHash []byte) error
	// Failure records a failed attempt and reports whether a block was placed.
	Failure(ctx context.Context, key string, ipHash []byte) (bool, time.Duration, error)
}

// Settings are the shared thresholds of every implementation.
type Settings struct {
	Window   time.Duration // failures older than this start a new count
	MaxFails int
	BlockFor time.Duration
}

// DefaultSettings allow five failures in fifteen minutes.
var DefaultSettings = Settings{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// HashIP returns a stable hash for an address so raw IPs are never stored.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
