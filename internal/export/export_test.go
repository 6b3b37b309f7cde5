package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influencemap/internal/graph"
)

func sampleGraph() Graph {
	plato := graph.NewNode("Plato", "Plato (Greek: Plátōn) was an ancient Greek philosopher [1].")
	logic := graph.NewNode("Logic", "Logic is the study of correct reasoning.")
	kant := graph.NewNode("Kant", `Immanuel Kant wrote "Critique of Pure Reason".`)
	return Graph{
		Seeds: []string{"Plato", "Kant"},
		Edges: []graph.Edge{
			graph.NewEdge(plato, logic),
			{Src: logic, Dest: kant, Weight: 2},
		},
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name  string
		seeds []string
		want  string
	}{
		{"no seeds", nil, "influence_map.html"},
		{"one seed", []string{"Plato"}, "influence_map(Plato).html"},
		{"three seeds", []string{"Plato", "Aristotle", "Socrates"}, "influence_map(Plato,Aristotle,Socrates).html"},
		{"four seeds", []string{"Plato", "Aristotle", "Socrates", "Kant"}, "influence_map(Plato,Aristotle,Socrates...).html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.seeds, "html"))
		})
	}
}

func TestShortenSummary(t *testing.T) {
	assert.Equal(t, "Plato  was a philosopher.", ShortenSummary("Plato (428 BC) was a philosopher[1]."))

	long := "Logic is the study of correct reasoning. " + strings.Repeat("It includes formal and informal logic. ", 3)
	assert.Equal(t, "Logic is the study of correct reasoning.", ShortenSummary(long))

	assert.Equal(t, "Short one", ShortenSummary("Short one"))
}

func TestNewRenderer(t *testing.T) {
	for format, ext := range map[string]string{"html": "html", "mermaid": "md", "json": "json", "": "html"} {
		r, err := NewRenderer(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, r.Ext())
	}
	_, err := NewRenderer("svg")
	assert.Error(t, err)
}

func TestHTMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTMLRenderer{}.Render(&buf, sampleGraph()))
	out := buf.String()

	assert.Contains(t, out, "vis-network")
	assert.Contains(t, out, seedColor)
	assert.Contains(t, out, defaultColor)
	assert.Contains(t, out, "Logic is the study of correct reasoning.")
	assert.NotContains(t, out, "Plátōn", "parenthesized text is dropped from tooltips")
}

func TestMermaidRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MermaidRenderer{}.Render(&buf, sampleGraph()))

	assert.Equal(t, "```mermaid\n"+
		"graph LR\n"+
		"    n0[\"Plato\"]\n"+
		"    n1[\"Logic\"]\n"+
		"    n2[\"Kant\"]\n"+
		"    n0 --- n1\n"+
		"    n1 --- n2\n"+
		"    classDef seed fill:#937ef2,color:#fff\n"+
		"    class n0,n2 seed\n"+
		"```\n", buf.String())
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONRenderer{}.Render(&buf, sampleGraph()))

	var doc jsonGraph
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []string{"Plato", "Kant"}, doc.Seeds)
	require.Len(t, doc.Nodes, 3)
	assert.True(t, doc.Nodes[0].Seed)
	assert.False(t, doc.Nodes[1].Seed)
	assert.Equal(t, []jsonEdge{
		{Source: "Plato", Target: "Logic", Weight: 1},
		{Source: "Logic", Target: "Kant", Weight: 2},
	}, doc.Edges)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	g := sampleGraph()
	g.Seeds = []string{"AC/DC"}

	path, err := WriteFile(dir, JSONRenderer{}, g)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "influence_map(AC_DC).json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestEmptyGraphRenders(t *testing.T) {
	for _, r := range []Renderer{HTMLRenderer{}, MermaidRenderer{}, JSONRenderer{}} {
		var buf bytes.Buffer
		assert.NoError(t, r.Render(&buf, Graph{}), r.Ext())
		assert.NotEmpty(t, buf.String())
	}
}
