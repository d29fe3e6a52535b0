package scraper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/use-agent/jobscout/models"
)

// entry is one registered source.
type entry struct {
	scraper  Scraper
	priority int
	enabled  bool
}

// Registry is the table of known sources. Lower priority values run first;
// ties keep registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds s. Registering a key twice is an error.
func (r *Registry) Register(s Scraper, priority int, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.scraper.Key() == s.Key() {
			return fmt.Errorf("scraper %q already registered", s.Key())
		}
	}
	r.entries = append(r.entries, entry{scraper: s, priority: priority, enabled: enabled})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
	return nil
}

// SetEnabled toggles a source. It reports false for an unknown key.
func (r *Registry) SetEnabled(key string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].scraper.Key() == key {
			r.entries[i].enabled = enabled
			return true
		}
	}
	return false
}

// Get returns the scraper registered under key.
func (r *Registry) Get(key string) (Scraper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.scraper.Key() == key {
			return e.scraper, true
		}
	}
	return nil, false
}

// Enabled returns the enabled scrapers in priority order.
func (r *Registry) Enabled() []Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scraper, 0, len(r.entries))
	for _, e := range r.entries {
		if e.enabled {
			out = append(out, e.scraper)
		}
	}
	return out
}

// Registration is a snapshot of one registered source.
type Registration struct {
	Key      string          `json:"key"`
	Platform models.Platform `json:"platform"`
	Priority int             `json:"priority"`
	Enabled  bool            `json:"enabled"`
	Metrics  Metrics         `json:"metrics"`
}

// All describes every registered source in priority order.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, len(r.entries))
	for i, e := range r.entries {
		out[i] = Registration{
			Key:      e.scraper.Key(),
			Platform: e.scraper.Platform(),
			Priority: e.priority,
			Enabled:  e.enabled,
			Metrics:  e.scraper.Metrics(),
		}
	}
	return out
}
