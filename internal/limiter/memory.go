package limiter

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	fails        int
	lastFailure  time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter for the in-memory store.
type Memory struct {
	set Settings
	now func() time.Time

	mu    sync.Mutex
	state map[string]*counter
}

// NewMemory constructs an in-memory limiter.
func NewMemory(set Settings) *Memory {
	return &Memory{set: set, now: time.Now, state: map[string]*counter{}}
}

func stateKey(key string, ipHash []byte) string { return key + "\x00" + string(ipHash) }

// Allow reports whether login is currently allowed.
func (m *Memory) Allow(_ context.Context, key string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state[stateKey(key, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if wait := c.blockedUntil.Sub(m.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

// Success forgets the (key, ip) pair.
func (m *Memory) Success(_ context.Context, key string, ipHash []byte) error {
	m.mu.Lock()
	delete(m.state, stateKey(key, ipHash))
	m.mu.Unlock()
	return nil
}

// Failure counts an attempt inside the window and blocks at MaxFails.
func (m *Memory) Failure(_ context.Context, key string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := stateKey(key, ipHash)
	c, ok := m.state[k]
	if !ok || now.Sub(c.lastFailure) > m.set.Window {
		c = &counter{}
		m.state[k] = c
	}
	c.fails++
	c.lastFailure = now
	if c.fails < m.set.MaxFails {
		return false, 0, nil
	}
	c.blockedUntil = now.Add(m.set.BlockFor)
	return true, m.set.BlockFor, nil
}
