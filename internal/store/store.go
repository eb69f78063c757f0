// Package store keeps small persistent key/value state grouped in
// families, such as the feature status of a device under SCCP/<device>.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: not found")

// Store is a family/key/value database.
type Store interface {
	Get(ctx context.Context, family, key string) (string, error)
	Put(ctx context.Context, family, key, value string) error
	Delete(ctx context.Context, family, key string) error
	// Family returns every key of family.
	Family(ctx context.Context, family string) (map[string]string, error)
	Close() error
}

// Memory is a Store that lives in process.
type Memory struct {
	mu       sync.RWMutex
	families map[string]map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{families: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, family, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.families[family][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Put(_ context.Context, family, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.families[family]
	if !ok {
		f = make(map[string]string)
		m.families[family] = f
	}
	f[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, family, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.families[family], key)
	if len(m.families[family]) == 0 {
		delete(m.families, family)
	}
	return nil
}

func (m *Memory) Family(_ context.Context, family string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.families[family]))
	for k, v := range m.families[family] {
		out[k] = v
	}
	return out, nil
}

// Families lists the family names, sorted.
func (m *Memory) Families() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.families))
	for f := range m.families {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Close() error { return nil }
