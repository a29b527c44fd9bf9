package host

import (
	"fmt"
	"sync"

	"github.com/roach88/eventbind/internal/resolve"
)

// PathValues resolves string descriptors as member paths read from the
// root ("Current.Title"), the way a data binding reads its source.
//
// It counts resolutions per slot so tests can observe that bound values are
// pulled once per adapter instance.
//
// Thread-safety: safe for concurrent use.
type PathValues struct {
	mu    sync.Mutex
	pulls map[int]int
}

// NewPathValues creates a path value source.
func NewPathValues() *PathValues {
	return &PathValues{pulls: make(map[int]int)}
}

// Resolve implements engine.ValueSource.
func (p *PathValues) Resolve(descriptor any, root any, slot int) (any, error) {
	p.mu.Lock()
	p.pulls[slot]++
	p.mu.Unlock()

	path, ok := descriptor.(string)
	if !ok {
		return nil, fmt.Errorf("descriptor must be a member path string, got %T", descriptor)
	}
	return resolve.Read(root, path)
}

// Pulls returns how many times slot was resolved.
func (p *PathValues) Pulls(slot int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pulls[slot]
}

// StaticValues resolves descriptors by map lookup, ignoring the root.
type StaticValues map[any]any

// Resolve implements engine.ValueSource.
func (s StaticValues) Resolve(descriptor any, _ any, _ int) (any, error) {
	v, ok := s[descriptor]
	if !ok {
		return nil, fmt.Errorf("no value for %v", descriptor)
	}
	return v, nil
}
