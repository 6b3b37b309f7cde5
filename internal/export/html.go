package export

import (
	"html/template"
	"io"

	"github.com/mitchellh/go-wordwrap"

	"influencemap/internal/graph"
)

const (
	seedColor    = "#937ef2"
	defaultColor = "#7eacf2"
	tooltipWidth = 75
)

// HTMLRenderer writes a standalone vis-network page.
type HTMLRenderer struct{}

func (HTMLRenderer) Ext() string { return "html" }

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Color string `json:"color"`
}

type visEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value int    `json:"value"`
}

type htmlPage struct {
	Title string
	Nodes []visNode
	Edges []visEdge
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
<style>
  body { margin: 0; background: #222222; }
  #map { width: 100%; height: 750px; }
</style>
</head>
<body>
<div id="map"></div>
<script>
  var nodes = new vis.DataSet({{.Nodes}});
  var edges = new vis.DataSet({{.Edges}});
  new vis.Network(document.getElementById("map"), { nodes: nodes, edges: edges }, {
    nodes: { shape: "dot", font: { color: "white" } },
    physics: { stabilization: true }
  });
</script>
</body>
</html>
`))

func (HTMLRenderer) Render(w io.Writer, g Graph) error {
	page := htmlPage{
		Title: FileName(g.Seeds, "html"),
		Nodes: []visNode{},
		Edges: make([]visEdge, 0, len(g.Edges)),
	}
	for _, n := range graph.Nodes(g.Edges) {
		color := defaultColor
		if g.IsSeed(n.Title) {
			color = seedColor
		}
		page.Nodes = append(page.Nodes, visNode{
			ID:    n.Title,
			Label: n.Title,
			Title: wordwrap.WrapString(ShortenSummary(n.CachedSummary()), tooltipWidth),
			Color: color,
		})
	}
	for _, e := range g.Edges {
		page.Edges = append(page.Edges, visEdge{From: e.Src.Title, To: e.Dest.Title, Value: e.Weight})
	}
	return pageTemplate.Execute(w, page)
}
