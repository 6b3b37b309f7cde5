package graph

import (
	"context"
	"errors"
	"sync"
)

// Node is a resolved content page. Title is the identity key; summary and
// links are loaded on first access and cached once a load succeeds.
type Node struct {
	Title string

	source *Source

	mu            sync.Mutex
	summary       string
	summaryLoaded bool
	links         []*Node
	linkIndex     map[string]*Node
	linksLoaded   bool
}

// NewNode builds a detached node with a known summary and no link loader.
// Its link set is empty unless SetLinks is called.
func NewNode(title, summary string) *Node {
	return &Node{
		Title:         title,
		summary:       summary,
		summaryLoaded: true,
	}
}

// SetLinks fixes the link set of a node, marking it loaded.
func (n *Node) SetLinks(links ...*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setLinksLocked(links)
}

func (n *Node) setLinksLocked(links []*Node) {
	n.links = make([]*Node, 0, len(links))
	n.linkIndex = make(map[string]*Node, len(links))
	for _, l := range links {
		if l == nil {
			continue
		}
		if _, dup := n.linkIndex[l.Title]; dup {
			continue
		}
		n.linkIndex[l.Title] = l
		n.links = append(n.links, l)
	}
	n.linksLoaded = true
}

// Summary returns the page summary, loading it if needed. A page that does
// not exist has an empty summary, and that answer is cached too.
func (n *Node) Summary(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.summaryLoaded || n.source == nil {
		return n.summary, nil
	}
	p, err := n.source.loader.Lookup(ctx, n.Title)
	switch {
	case errors.Is(err, ErrNotFound):
		p = PageInfo{}
	case err != nil:
		return "", err
	}
	n.summary = p.Summary
	n.summaryLoaded = true
	return p.Summary, nil
}

func (n *Node) setSummary(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.summaryLoaded {
		n.summary = s
		n.summaryLoaded = true
	}
}

// CachedSummary returns the summary if it has been loaded, or "".
func (n *Node) CachedSummary() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.summary
}

// Links returns the linked pages in source order, loading them if needed.
// The returned slice must not be modified.
func (n *Node) Links(ctx context.Context) ([]*Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.linksLoaded || n.source == nil {
		return n.links, nil
	}
	titles, err := n.source.loader.Links(ctx, n.Title)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(titles))
	for _, t := range titles {
		nodes = append(nodes, n.source.Node(t))
	}
	n.setLinksLocked(nodes)
	return n.links, nil
}

// CachedLinks returns the link set if it has been loaded.
func (n *Node) CachedLinks() ([]*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.links, n.linksLoaded
}

// LinksTo reports whether the loaded link set contains title.
func (n *Node) LinksTo(title string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.linkIndex[title]
	return ok
}

func (n *Node) String() string {
	return n.Title
}
