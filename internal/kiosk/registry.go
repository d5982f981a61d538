package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/attendance-kiosk/internal/metrics"
)

// Registry tracks live sessions and allows at most one per camera device.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byDevice map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Session),
		byDevice: make(map[string]*Session),
	}
}

// Create registers a new idle session for opts.DeviceID.
func (r *Registry) Create(opts Options) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byDevice[opts.DeviceID]; ok {
		return nil, fmt.Errorf("%w: %s (session %s)", ErrDeviceBusy, opts.DeviceID, existing.ID())
	}

	s := NewSession(opts)
	r.byID[s.ID()] = s
	r.byDevice[opts.DeviceID] = s
	metrics.ActiveSessions.Set(float64(len(r.byID)))
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the sessions ordered by device ID.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID() < out[j].DeviceID() })
	return out
}

// Remove closes and unregisters a session, freeing its device.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byDevice[s.DeviceID()] == s {
			delete(r.byDevice, s.DeviceID())
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.byID)))
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return s.Close(ctx)
}

// CloseAll tears down every session. Used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) error {
	var errs []error
	for _, s := range r.List() {
		if err := r.Remove(ctx, s.ID()); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
