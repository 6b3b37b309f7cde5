package crawler

import (
	"sync"

	"influencemap/internal/graph"
)

// SeenSet is the set of page titles reached so far in one search pass. It is
// shared by every pair search, so all access goes through its mutex.
type SeenSet struct {
	mu     sync.Mutex
	titles map[string]struct{}
}

func NewSeenSet(nodes ...*graph.Node) *SeenSet {
	s := &SeenSet{titles: make(map[string]struct{}, len(nodes))}
	for _, n := range nodes {
		s.titles[n.Title] = struct{}{}
	}
	return s
}

// Mark returns the nodes that were already seen, then adds all of them.
func (s *SeenSet) Mark(nodes []*graph.Node) []*graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	var before []*graph.Node
	for _, n := range nodes {
		if _, ok := s.titles[n.Title]; ok {
			before = append(before, n)
		}
	}
	for _, n := range nodes {
		s.titles[n.Title] = struct{}{}
	}
	return before
}
