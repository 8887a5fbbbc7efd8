package source

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the fixed set of sources assembled at startup. The
// reporter and the status page query it; it never starts loops itself.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	sources []*Source
	byName  map[string]*Source
}

// Status is a point-in-time view of one source for diagnostics.
type Status struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Shape   string `json:"shape"`
	Pending int    `json:"pending"`
	Running bool   `json:"running"`
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		byName: make(map[string]*Source),
	}
}

// Register adds a source. Names are sink tags and must be unique.
func (r *Registry) Register(s *Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[s.Name()]; dup {
		return fmt.Errorf("source %q already registered", s.Name())
	}
	r.sources = append(r.sources, s)
	r.byName[s.Name()] = s
	r.logger.Debug("Registered source", zap.String("name", s.Name()))
	return nil
}

// InitializeAll initializes every source once and returns how many are
// Ready. Failed sources stay registered; they simply never report data.
func (r *Registry) InitializeAll(ctx context.Context) int {
	ready := 0
	for _, s := range r.Sources() {
		if s.Initialize(ctx) == Ready {
			ready++
			continue
		}
		r.logger.Warn("Source not available, it will not be polled",
			zap.String("name", s.Name()))
	}
	return ready
}

// Sources returns a copy of all registered sources in registration order.
func (r *Registry) Sources() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Lookup returns the source with the given name.
func (r *Registry) Lookup(name string) (*Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Snapshot reports the state of every source.
func (r *Registry) Snapshot() []Status {
	sources := r.Sources()
	out := make([]Status, 0, len(sources))
	for _, s := range sources {
		out = append(out, statusOf(s))
	}
	return out
}

// Describe reports the state of the named source.
func (r *Registry) Describe(name string) (Status, bool) {
	s, ok := r.Lookup(name)
	if !ok {
		return Status{}, false
	}
	return statusOf(s), true
}

func statusOf(s *Source) Status {
	return Status{
		Name:    s.Name(),
		State:   s.State().String(),
		Shape:   s.Shape().String(),
		Pending: s.Pending(),
		Running: s.Running(),
	}
}
