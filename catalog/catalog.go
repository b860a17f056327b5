// Package catalog holds the exercise registry. Exercises are declarative
// YAML documents pairing a task description with a skeleton, a set of test
// cases, and a reference solution. The registry stores them opaquely; it
// never interprets initial data or assertion snippets, it only hands them to
// callers who feed them into executions.
package catalog

import (
	"fmt"
	"sort"
	"sync"
)

// Test is one scripted check for an exercise. Args are passed to the entry
// point positionally; Assertions is a JS snippet evaluated after the call
// with the return value bound to the global "result".
type Test struct {
	ID         string `yaml:"id" json:"id"`
	Args       []any  `yaml:"args" json:"args,omitempty"`
	Assertions string `yaml:"assertions" json:"assertions,omitempty"`
}

// Exercise is one catalog entry. ReferenceSolution never leaves the process
// through the JSON API.
type Exercise struct {
	ID                string `yaml:"id" json:"id"`
	Title             string `yaml:"title" json:"title"`
	Description       string `yaml:"description" json:"description,omitempty"`
	EntryPoint        string `yaml:"entryPoint" json:"entryPoint"`
	Skeleton          string `yaml:"skeleton" json:"skeleton,omitempty"`
	InitialData       any    `yaml:"initialData" json:"initialData,omitempty"`
	Tests             []Test `yaml:"tests" json:"tests,omitempty"`
	ReferenceSolution string `yaml:"referenceSolution" json:"-"`
}

// Registry is a concurrency-safe exercise store.
type Registry struct {
	mu        sync.RWMutex
	exercises map[string]Exercise
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{exercises: make(map[string]Exercise)}
}

// Register adds ex, replacing any exercise with the same ID.
func (r *Registry) Register(ex Exercise) error {
	if ex.ID == "" {
		return fmt.Errorf("register exercise %q: id required", ex.Title)
	}
	r.mu.Lock()
	r.exercises[ex.ID] = ex
	r.mu.Unlock()
	return nil
}

// Get returns the exercise with the given ID.
func (r *Registry) Get(id string) (Exercise, bool) {
	r.mu.RLock()
	ex, ok := r.exercises[id]
	r.mu.RUnlock()
	return ex, ok
}

// List returns all exercises sorted by ID.
func (r *Registry) List() []Exercise {
	r.mu.RLock()
	out := make([]Exercise, 0, len(r.exercises))
	for _, ex := range r.exercises {
		out = append(out, ex)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered exercises.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exercises)
}

// Clear removes every exercise. Tests use it for isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.exercises = make(map[string]Exercise)
	r.mu.Unlock()
}
