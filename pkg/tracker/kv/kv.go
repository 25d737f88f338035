// Package kv abstracts client-side storage with two lifetimes: durable
// values that never expire and ephemeral values scoped to one browsing
// context.
package kv

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// DefaultInactivityWindow is how long an unread ephemeral value survives.
const DefaultInactivityWindow = 30 * time.Minute

// Storage is client-side key-value storage.
type Storage interface {
	// GetOrCreate returns the durable value for key, storing the result of
	// factory first if none exists. Existing values are never overwritten.
	GetOrCreate(key string, factory func() (string, error)) (string, error)

	// GetEphemeral returns the ephemeral value for key and refreshes its
	// inactivity window.
	GetEphemeral(key string) (string, bool)

	SetEphemeral(key, value string)
	DeleteEphemeral(key string)
}

type ephemeral struct {
	value   string
	touched time.Time
}

// Memory is an in-memory Storage.
type Memory struct {
	mu        sync.Mutex
	clock     quartz.Clock
	window    time.Duration
	durable   map[string]string
	ephemeral map[string]ephemeral
}

var _ Storage = (*Memory)(nil)

// Option configures Memory.
type Option func(*Memory)

// WithClock sets the clock measuring inactivity.
func WithClock(c quartz.Clock) Option {
	return func(m *Memory) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithInactivityWindow sets how long ephemeral values live without being
// read. Zero or negative disables expiry.
func WithInactivityWindow(d time.Duration) Option {
	return func(m *Memory) {
		m.window = d
	}
}

// NewMemory returns empty storage.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		clock:     quartz.NewReal(),
		window:    DefaultInactivityWindow,
		durable:   make(map[string]string),
		ephemeral: make(map[string]ephemeral),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) GetOrCreate(key string, factory func() (string, error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.durable[key]; ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return "", err
	}
	m.durable[key] = v
	return v, nil
}

func (m *Memory) GetEphemeral(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.ephemeral[key]
	if !ok {
		return "", false
	}
	now := m.clock.Now()
	if m.window > 0 && now.Sub(e.touched) >= m.window {
		delete(m.ephemeral, key)
		return "", false
	}
	e.touched = now
	m.ephemeral[key] = e
	return e.value, true
}

func (m *Memory) SetEphemeral(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ephemeral[key] = ephemeral{value: value, touched: m.clock.Now()}
}

func (m *Memory) DeleteEphemeral(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ephemeral, key)
}

// EndContext drops every ephemeral value, as closing the tab would.
func (m *Memory) EndContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ephemeral = make(map[string]ephemeral)
}
