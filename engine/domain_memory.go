package engine

import (
	"context"
	"sync"
	"time"
)

type hostEntry struct {
	engine    string
	expiresAt time.Time
}

// HostMemory remembers, per host, the engine that last got real content
// back, so later pages of the same board skip the engines that were refused.
type HostMemory struct {
	mu      sync.Mutex
	entries map[string]hostEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewHostMemory creates a HostMemory whose entries live for ttl.
func NewHostMemory(ttl time.Duration) *HostMemory {
	return &HostMemory{
		entries: make(map[string]hostEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine for host, or "" when none is live.
func (m *HostMemory) Get(host string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, host)
		return ""
	}
	return e.engine
}

func (m *HostMemory) Set(host, engine string) {
	m.mu.Lock()
	m.entries[host] = hostEntry{engine: engine, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *HostMemory) Forget(host string) {
	m.mu.Lock()
	delete(m.entries, host)
	m.mu.Unlock()
}

// Len returns the number of live entries.
func (m *HostMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Prune drops expired entries and returns how many were removed.
func (m *HostMemory) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for host, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, host)
			n++
		}
	}
	return n
}

// RunPruner prunes every interval until ctx is done.
func (m *HostMemory) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}
