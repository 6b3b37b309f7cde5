package wiki

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"influencemap/internal/graph"
)

// Page is one entry of a fixture. Redirects are other titles that lead to it.
type Page struct {
	Title     string   `yaml:"title"`
	Summary   string   `yaml:"summary"`
	Links     []string `yaml:"links"`
	Redirects []string `yaml:"redirects"`
}

type fixtureFile struct {
	Pages []Page `yaml:"pages"`
}

// Fixture is an in-memory graph.Loader. It serves offline runs from a YAML
// file and lets tests inject throttling on link fetches.
type Fixture struct {
	mu        sync.Mutex
	pages     map[string]Page
	redirects map[string]string
	failLinks map[string]int
	linkCalls map[string]int
}

// NewFixture builds a fixture from pages.
func NewFixture(pages ...Page) *Fixture {
	f := &Fixture{
		pages:     make(map[string]Page, len(pages)),
		redirects: make(map[string]string),
		failLinks: make(map[string]int),
		linkCalls: make(map[string]int),
	}
	for _, p := range pages {
		f.pages[p.Title] = p
		for _, r := range p.Redirects {
			f.redirects[r] = p.Title
		}
	}
	return f
}

// LoadFixture reads a YAML document of the form `pages: [{title, summary, links}]`.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var doc fixtureFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return NewFixture(doc.Pages...), nil
}

// FailLinks makes the next n link fetches for title fail transiently.
func (f *Fixture) FailLinks(title string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLinks[title] = n
}

// LinkCalls returns how many times links were requested for title.
func (f *Fixture) LinkCalls(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linkCalls[title]
}

func (f *Fixture) Exists(ctx context.Context, title string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.lookupLocked(title)
	return ok, nil
}

func (f *Fixture) Lookup(ctx context.Context, title string) (graph.PageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.lookupLocked(title)
	if !ok {
		return graph.PageInfo{}, fmt.Errorf("%q: %w", title, graph.ErrNotFound)
	}
	return graph.PageInfo{Title: p.Title, Summary: p.Summary}, nil
}

func (f *Fixture) lookupLocked(title string) (Page, bool) {
	if target, ok := f.redirects[title]; ok {
		title = target
	}
	p, ok := f.pages[title]
	return p, ok
}

// Links returns the fixture links of title. Titles without an entry have no
// links, mirroring red links on a live wiki.
func (f *Fixture) Links(ctx context.Context, title string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls[title]++
	if f.failLinks[title] > 0 {
		f.failLinks[title]--
		return nil, fmt.Errorf("%q: throttled: %w", title, graph.ErrTransientFetch)
	}
	p, _ := f.lookupLocked(title)
	return append([]string(nil), p.Links...), nil
}
