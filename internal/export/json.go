package export

import (
	"encoding/json"
	"io"

	"influencemap/internal/graph"
)

// JSONRenderer writes the graph as a node list and an edge list.
type JSONRenderer struct{}

func (JSONRenderer) Ext() string { return "json" }

type jsonNode struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Seed    bool   `json:"seed"`
}

type jsonEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

type jsonGraph struct {
	Seeds []string   `json:"seeds"`
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

func (JSONRenderer) Render(w io.Writer, g Graph) error {
	doc := jsonGraph{
		Seeds: append([]string{}, g.Seeds...),
		Nodes: []jsonNode{},
		Edges: make([]jsonEdge, 0, len(g.Edges)),
	}
	for _, n := range graph.Nodes(g.Edges) {
		doc.Nodes = append(doc.Nodes, jsonNode{
			Title:   n.Title,
			Summary: n.CachedSummary(),
			Seed:    g.IsSeed(n.Title),
		})
	}
	for _, e := range g.Edges {
		doc.Edges = append(doc.Edges, jsonEdge{Source: e.Src.Title, Target: e.Dest.Title, Weight: e.Weight})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
