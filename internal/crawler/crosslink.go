package crawler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"influencemap/internal/graph"
	"influencemap/internal/progress"
)

// CrossLink connects any two pages touched by edges when either one links to
// the other. Link sets are fetched in parallel; edges are emitted serially in
// first-appearance order of the pages, one per unordered pair. The result is
// edges followed by the new cross-links.
func (c *Crawler) CrossLink(ctx context.Context, edges []graph.Edge) []graph.Edge {
	nodes := graph.Nodes(edges)
	c.logger.Info("checking for additional cross-references", zap.Int("pages", len(nodes)))

	var fetched atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.cfg.EffectiveParallelism())
	for _, n := range nodes {
		g.Go(func() error {
			if _, err := c.fetchLinks(ctx, n); err != nil && ctx.Err() == nil {
				c.logger.Warn("cross-link fetch failed", zap.String("title", n.Title), zap.Error(err))
			}
			c.reporter.Report(progress.Event{
				Phase:     progress.PhaseCrossLinking,
				Completed: int(fetched.Add(1)),
				Total:     len(nodes),
				Message:   n.Title,
			})
			return nil
		})
	}
	_ = g.Wait()

	out := make([]graph.Edge, len(edges), len(edges)+len(nodes))
	copy(out, edges)
	added := 0
	for i, a := range nodes {
		for _, b := range nodes[i+1:] {
			if a.LinksTo(b.Title) || b.LinksTo(a.Title) {
				out = append(out, graph.NewEdge(a, b))
				added++
			}
		}
	}

	c.logger.Info("cross-linking done", zap.Int("added", added))
	c.metrics.EdgesEmitted("cross-link", added)
	return out
}
