// Package export renders a cleaned influence map to a file.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"influencemap/internal/graph"
)

const baseName = "influence_map"

// Graph is what a renderer draws: the cleaned edges plus the seed titles,
// which are highlighted.
type Graph struct {
	Seeds []string
	Edges []graph.Edge
}

// IsSeed reports whether title is one of the seeds.
func (g Graph) IsSeed(title string) bool {
	for _, s := range g.Seeds {
		if s == title {
			return true
		}
	}
	return false
}

// Renderer writes a graph in one output format.
type Renderer interface {
	Ext() string
	Render(w io.Writer, g Graph) error
}

// NewRenderer returns the renderer for format: html, mermaid or json.
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "html", "":
		return HTMLRenderer{}, nil
	case "mermaid", "md":
		return MermaidRenderer{}, nil
	case "json":
		return JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// FileName names the artifact after the seeds: none gives the bare name,
// up to three are listed, more are cut to three followed by "...".
func FileName(seeds []string, ext string) string {
	name := baseName
	switch {
	case len(seeds) == 0:
	case len(seeds) <= 3:
		name += "(" + strings.Join(seeds, ",") + ")"
	default:
		name += "(" + strings.Join(seeds[:3], ",") + "...)"
	}
	return name + "." + ext
}

// WriteFile renders g into dir and returns the path written.
func WriteFile(dir string, r Renderer, g Graph) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, sanitizeFileName(FileName(g.Seeds, r.Ext())))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := r.Render(f, g); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// ShortenSummary drops parenthesized and bracketed text, then cuts a summary
// still longer than 100 characters at its first period.
func ShortenSummary(summary string) string {
	var sb strings.Builder
	keep := true
	for _, r := range summary {
		switch r {
		case '(', ')', '[', ']':
			keep = !keep
			continue
		}
		if keep {
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	if len([]rune(s)) > 100 {
		head, _, _ := strings.Cut(s, ".")
		return head + "."
	}
	return s
}

// sanitizeFileName keeps titles like "AC/DC" from creating directories.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}
