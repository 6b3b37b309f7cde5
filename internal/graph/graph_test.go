package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader struct {
	summaries   map[string]string
	redirects   map[string]string
	links       map[string][]string
	linkCalls   int
	lookupCalls map[string]int
}

func (m *mapLoader) Exists(ctx context.Context, title string) (bool, error) {
	_, ok := m.summaries[title]
	return ok, nil
}

func (m *mapLoader) Lookup(ctx context.Context, title string) (PageInfo, error) {
	if m.lookupCalls == nil {
		m.lookupCalls = make(map[string]int)
	}
	m.lookupCalls[title]++
	if target, ok := m.redirects[title]; ok {
		title = target
	}
	s, ok := m.summaries[title]
	if !ok {
		return PageInfo{}, ErrNotFound
	}
	return PageInfo{Title: title, Summary: s}, nil
}

func (m *mapLoader) Links(ctx context.Context, title string) ([]string, error) {
	m.linkCalls++
	return m.links[title], nil
}

func TestEdge_SymmetricEquality(t *testing.T) {
	a := NewNode("A", "")
	b := NewNode("B", "")

	ab := Edge{Src: a, Dest: b, Weight: 3}
	ba := Edge{Src: b, Dest: a, Weight: 3}

	assert.Equal(t, ab.Key(), ba.Key())
	assert.Equal(t, EdgeKey{A: "A", B: "B"}, ba.Key())

	set := NewEdgeSet(ab, ba)
	require.Len(t, set.Edges(), 1)
	assert.Equal(t, a, set.Edges()[0].Src, "first inserted edge should win")
}

func TestEdge_IsCyclic(t *testing.T) {
	cats := NewNode("Cats", "")
	otherCats := NewNode("Cats", "different instance")
	dogs := NewNode("Dogs", "")

	assert.True(t, NewEdge(cats, cats).IsCyclic())
	assert.True(t, NewEdge(cats, otherCats).IsCyclic(), "cyclic is decided by title")
	assert.False(t, NewEdge(cats, dogs).IsCyclic())
}

func TestEdgeSet_KeepsInsertionOrder(t *testing.T) {
	a, b, c := NewNode("A", ""), NewNode("B", ""), NewNode("C", "")
	edges := []Edge{NewEdge(c, a), NewEdge(a, b), NewEdge(a, c), NewEdge(b, c)}

	got := Dedup(edges)
	require.Len(t, got, 3)
	assert.Equal(t, "C", got[0].Src.Title)
	assert.Equal(t, "A", got[1].Src.Title)
	assert.Equal(t, "B", got[2].Src.Title)
}

func TestNodesAndDegrees(t *testing.T) {
	a, b, c := NewNode("A", ""), NewNode("B", ""), NewNode("C", "")
	edges := []Edge{NewEdge(b, a), NewEdge(a, c)}

	nodes := Nodes(edges)
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"B", "A", "C"}, []string{nodes[0].Title, nodes[1].Title, nodes[2].Title})

	deg := Degrees(edges)
	assert.Equal(t, 2, deg["A"])
	assert.Equal(t, 1, deg["B"])
	assert.Equal(t, 1, deg["C"])
}

func TestSource_InternsAndCachesLinks(t *testing.T) {
	loader := &mapLoader{
		summaries: map[string]string{"A": "first", "B": "second"},
		links:     map[string][]string{"A": {"B", "C", "B"}},
	}
	src := NewSource(loader)
	ctx := context.Background()

	a, err := src.Resolve(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "first", a.CachedSummary())

	links, err := a.Links(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2, "duplicate link titles collapse")
	assert.Same(t, src.Node("B"), links[0])
	assert.True(t, a.LinksTo("C"))
	assert.False(t, a.LinksTo("A"))

	_, err = a.Links(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.linkCalls)

	_, cached := src.Node("B").CachedLinks()
	assert.False(t, cached)
}

func TestSource_ResolveNotFound(t *testing.T) {
	src := NewSource(&mapLoader{summaries: map[string]string{}})

	_, err := src.Resolve(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsTransient(err))
}

func TestSource_ResolveFollowsRedirects(t *testing.T) {
	loader := &mapLoader{
		summaries: map[string]string{"Plato": "Greek philosopher", "Socrates": "teacher"},
		redirects: map[string]string{"plato": "Plato", "Platon": "Plato"},
		links:     map[string][]string{"Socrates": {"Plato"}},
	}
	src := NewSource(loader)
	ctx := context.Background()

	seed, err := src.Resolve(ctx, "plato")
	require.NoError(t, err)
	assert.Equal(t, "Plato", seed.Title)
	assert.Equal(t, "Greek philosopher", seed.CachedSummary())

	socrates, err := src.Resolve(ctx, "Socrates")
	require.NoError(t, err)
	links, err := socrates.Links(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Same(t, seed, links[0], "links reach the seed under its canonical title")

	alias, err := src.Resolve(ctx, "Platon")
	require.NoError(t, err)
	assert.Same(t, seed, alias)
	assert.Same(t, seed, src.Node("plato"))

	again, err := src.Resolve(ctx, "plato")
	require.NoError(t, err)
	assert.Same(t, seed, again)
	assert.Equal(t, 1, loader.lookupCalls["plato"], "resolutions are cached")
}

func TestSource_ResolveNotFoundIsCached(t *testing.T) {
	loader := &mapLoader{summaries: map[string]string{}}
	src := NewSource(loader)

	for i := 0; i < 3; i++ {
		_, err := src.Resolve(context.Background(), "Nowhere")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, loader.lookupCalls["Nowhere"])
}

func TestNode_MissingSummaryIsCached(t *testing.T) {
	loader := &mapLoader{summaries: map[string]string{}}
	red := NewSource(loader).Node("Red link")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := red.Summary(ctx)
		require.NoError(t, err)
		assert.Empty(t, s)
	}
	assert.Equal(t, 1, loader.lookupCalls["Red link"])
}

func TestConsolidate_Branches(t *testing.T) {
	// Every case is built so that exactly its branch is the first to match.
	// The non-matching endpoints are always Plato (on A) and Kant (on B), so
	// the joined edge must be Plato -> Kant.
	tests := []struct {
		name         string
		a, b         [2]string
		wantWeight   int
		wantRetained string
	}{
		{"A.src in B.src", [2]string{"Rome", "Plato"}, [2]string{"Ancient Rome", "Kant"}, 2, "a"},
		{"B.src in A.src", [2]string{"Ancient Rome", "Plato"}, [2]string{"Rome", "Kant"}, 1, "b"},
		{"A.src in B.dest", [2]string{"Rome", "Plato"}, [2]string{"Kant", "Ancient Rome"}, 2, "a"},
		{"B.dest in A.src", [2]string{"Ancient Rome", "Plato"}, [2]string{"Kant", "Rome"}, 1, "b"},
		{"A.dest in B.dest", [2]string{"Plato", "Rome"}, [2]string{"Kant", "Ancient Rome"}, 2, "a"},
		{"B.dest in A.dest", [2]string{"Plato", "Ancient Rome"}, [2]string{"Kant", "Rome"}, 1, "b"},
		{"A.dest in B.src", [2]string{"Plato", "Rome"}, [2]string{"Ancient Rome", "Kant"}, 2, "a"},
		{"B.src in A.dest", [2]string{"Plato", "Ancient Rome"}, [2]string{"Rome", "Kant"}, 1, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Edge{Src: NewNode(tt.a[0], ""), Dest: NewNode(tt.a[1], ""), Weight: 1}
			b := Edge{Src: NewNode(tt.b[0], ""), Dest: NewNode(tt.b[1], ""), Weight: 2}

			out := Consolidate(a, b)
			require.Len(t, out, 2)
			assert.Equal(t, "Plato", out[0].Src.Title)
			assert.Equal(t, "Kant", out[0].Dest.Title)
			assert.Equal(t, tt.wantWeight, out[0].Weight)

			want := a
			if tt.wantRetained == "b" {
				want = b
			}
			assert.Equal(t, want, out[1])
		})
	}
}

func TestConsolidate(t *testing.T) {
	n := func(title string) *Node { return NewNode(title, "") }

	t.Run("contained destination joins the other endpoints", func(t *testing.T) {
		a := Edge{Src: n("Plato"), Dest: n("Philosophy"), Weight: 1}
		b := Edge{Src: n("Ancient Philosophy"), Dest: n("Logic"), Weight: 7}

		out := Consolidate(a, b)
		require.Len(t, out, 2)
		assert.Equal(t, EdgeKey{A: "Logic", B: "Plato"}, out[0].Key())
		assert.Equal(t, 7, out[0].Weight)
		assert.Equal(t, a, out[1])
	})

	t.Run("no containment keeps both", func(t *testing.T) {
		a := NewEdge(n("Plato"), n("Logic"))
		b := NewEdge(n("Kant"), n("Ethics"))

		assert.Equal(t, []Edge{a, b}, Consolidate(a, b))
	})

	t.Run("first match wins", func(t *testing.T) {
		// Both A.src⊂B.src and A.dest⊂B.dest hold; the source test comes first.
		a := Edge{Src: n("Rome"), Dest: n("War"), Weight: 2}
		b := Edge{Src: n("Ancient Rome"), Dest: n("Punic War"), Weight: 5}

		out := Consolidate(a, b)
		require.Len(t, out, 2)
		assert.Equal(t, EdgeKey{A: "Punic War", B: "War"}, out[0].Key())
		assert.Equal(t, 5, out[0].Weight)
		assert.Equal(t, a, out[1])
	})

	t.Run("containing edge is retired when B is contained", func(t *testing.T) {
		a := Edge{Src: n("Ancient Greece"), Dest: n("Sparta"), Weight: 4}
		b := Edge{Src: n("Greece"), Dest: n("Athens"), Weight: 9}

		out := Consolidate(a, b)
		require.Len(t, out, 2)
		assert.Equal(t, EdgeKey{A: "Athens", B: "Sparta"}, out[0].Key())
		assert.Equal(t, 4, out[0].Weight)
		assert.Equal(t, b, out[1])
	})

	t.Run("titles are compared case and space insensitively", func(t *testing.T) {
		a := NewEdge(n("  LOGIC "), n("Aristotle"))
		b := NewEdge(n("Formal logic"), n("Frege"))

		out := Consolidate(a, b)
		require.Len(t, out, 2)
		assert.Equal(t, EdgeKey{A: "Aristotle", B: "Frege"}, out[0].Key())
	})

	t.Run("deterministic", func(t *testing.T) {
		a := NewEdge(n("Plato"), n("Philosophy"))
		b := NewEdge(n("Ancient Philosophy"), n("Logic"))
		assert.Equal(t, Consolidate(a, b), Consolidate(a, b))
	})
}
