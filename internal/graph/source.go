package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Source resolves titles to Nodes. Every title maps to one shared *Node for
// the lifetime of the Source, so edges built from different searches point at
// the same page values.
type Source struct {
	loader Loader

	mu    sync.Mutex
	nodes map[string]*Node
	// resolved maps a requested title to its canonical node, or to nil when
	// the page does not exist.
	resolved map[string]*Node
}

// NewSource wraps a Loader.
func NewSource(l Loader) *Source {
	return &Source{
		loader:   l,
		nodes:    make(map[string]*Node),
		resolved: make(map[string]*Node),
	}
}

// Node returns the interned node for title without touching the loader.
func (s *Source) Node(title string) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internLocked(title)
}

func (s *Source) internLocked(title string) *Node {
	if n, ok := s.nodes[title]; ok {
		return n
	}
	n := &Node{Title: title, source: s}
	s.nodes[title] = n
	return n
}

// Exists reports whether the loader knows the title.
func (s *Source) Exists(ctx context.Context, title string) (bool, error) {
	return s.loader.Exists(ctx, title)
}

// Resolve returns the node for title with its summary loaded. Redirects are
// followed: the node carries the canonical title, and title becomes an alias
// of it. It fails with ErrNotFound when the page does not exist.
func (s *Source) Resolve(ctx context.Context, title string) (*Node, error) {
	s.mu.Lock()
	n, done := s.resolved[title]
	s.mu.Unlock()
	if done {
		if n == nil {
			return nil, fmt.Errorf("resolve %q: %w", title, ErrNotFound)
		}
		return n, nil
	}

	p, err := s.loader.Lookup(ctx, title)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.mu.Lock()
			s.resolved[title] = nil
			s.mu.Unlock()
		}
		return nil, fmt.Errorf("resolve %q: %w", title, err)
	}
	canonical := p.Title
	if canonical == "" {
		canonical = title
	}

	s.mu.Lock()
	n = s.internLocked(canonical)
	s.nodes[title] = n
	s.resolved[title] = n
	s.resolved[canonical] = n
	s.mu.Unlock()

	// n.mu is taken after s.mu is released; Node.Links locks them the other way.
	n.setSummary(p.Summary)
	return n, nil
}
