package graph

import (
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// DefaultWeight is the weight of edges emitted by the search.
const DefaultWeight = 1

// Edge is an undirected relationship between two pages. Src and Dest keep
// the order the edge was discovered in, but equality ignores it.
type Edge struct {
	Src    *Node
	Dest   *Node
	Weight int
}

// EdgeKey is the canonical identity of an edge: its endpoint titles sorted.
type EdgeKey struct {
	A string
	B string
}

// NewEdge builds a default-weight edge.
func NewEdge(src, dest *Node) Edge {
	return Edge{Src: src, Dest: dest, Weight: DefaultWeight}
}

// Key returns the order-independent identity of e.
func (e Edge) Key() EdgeKey {
	a, b := e.Src.Title, e.Dest.Title
	if b < a {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// IsCyclic reports whether both endpoints are the same page.
func (e Edge) IsCyclic() bool {
	return e.Src.Title == e.Dest.Title
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s (%d)", e.Src.Title, e.Dest.Title, e.Weight)
}

// EdgeSet is an insertion-ordered set of edges keyed by EdgeKey. The first
// edge added for a key wins; later duplicates are ignored.
type EdgeSet struct {
	m *linkedhashmap.Map
}

// NewEdgeSet returns a set holding edges in first-seen order.
func NewEdgeSet(edges ...Edge) *EdgeSet {
	s := &EdgeSet{m: linkedhashmap.New()}
	s.Add(edges...)
	return s
}

// Add inserts edges not already present.
func (s *EdgeSet) Add(edges ...Edge) {
	for _, e := range edges {
		k := e.Key()
		if _, found := s.m.Get(k); found {
			continue
		}
		s.m.Put(k, e)
	}
}

// Edges returns the members in insertion order.
func (s *EdgeSet) Edges() []Edge {
	values := s.m.Values()
	out := make([]Edge, 0, len(values))
	for _, v := range values {
		out = append(out, v.(Edge))
	}
	return out
}

// Dedup collapses equal edges, keeping the first of each.
func Dedup(edges []Edge) []Edge {
	return NewEdgeSet(edges...).Edges()
}

// Nodes returns every endpoint of edges in first-appearance order.
func Nodes(edges []Edge) []*Node {
	seen := make(map[string]bool)
	var out []*Node
	for _, e := range edges {
		for _, n := range [2]*Node{e.Src, e.Dest} {
			if seen[n.Title] {
				continue
			}
			seen[n.Title] = true
			out = append(out, n)
		}
	}
	return out
}
