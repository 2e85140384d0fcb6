package app

import (
	"sync"

	"github.com/ThatOtherAndrew/Turntable/internal/models"
)

// Registry maps asset names to loaded models. Entries are only ever added or
// replaced.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*models.Model
	order  []string
}

func newRegistry() *Registry {
	return &Registry{models: make(map[string]*models.Model)}
}

func (r *Registry) put(name string, m *models.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[name]; !ok {
		r.order = append(r.order, name)
	}
	r.models[name] = m
}

func (r *Registry) Lookup(name string) (*models.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Names returns entries in the order their first load completed.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
