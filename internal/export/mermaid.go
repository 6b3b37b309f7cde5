package export

import (
	"fmt"
	"io"
	"strings"

	"influencemap/internal/graph"
)

// MermaidRenderer writes a markdown file holding a `graph LR` flowchart.
type MermaidRenderer struct{}

func (MermaidRenderer) Ext() string { return "md" }

func (MermaidRenderer) Render(w io.Writer, g Graph) error {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")

	ids := make(map[string]string)
	var seeds []string
	for i, n := range graph.Nodes(g.Edges) {
		id := fmt.Sprintf("n%d", i)
		ids[n.Title] = id
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, mermaidLabel(n.Title)))
		if g.IsSeed(n.Title) {
			seeds = append(seeds, id)
		}
	}
	for _, e := range g.Edges {
		sb.WriteString(fmt.Sprintf("    %s --- %s\n", ids[e.Src.Title], ids[e.Dest.Title]))
	}
	if len(seeds) > 0 {
		sb.WriteString(fmt.Sprintf("    classDef seed fill:%s,color:#fff\n", seedColor))
		sb.WriteString(fmt.Sprintf("    class %s seed\n", strings.Join(seeds, ",")))
	}

	sb.WriteString("```\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// mermaidLabel escapes characters that end a quoted mermaid label.
func mermaidLabel(title string) string {
	return strings.ReplaceAll(title, `"`, "#quot;")
}
