// Package cleanup reduces the raw search output to a displayable graph.
package cleanup

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"influencemap/internal/config"
	"influencemap/internal/graph"
	"influencemap/internal/metrics"
	"influencemap/internal/progress"
	"influencemap/internal/retry"
)

// Cleaner runs the post-processing stages in a fixed order. Stages never
// fail; a page that cannot be loaded is treated as having an empty summary.
type Cleaner struct {
	cfg      config.Cleanup
	source   *graph.Source
	retrier  *retry.Retrier
	logger   *zap.Logger
	metrics  *metrics.Collector
	reporter progress.Reporter
}

type Option func(*Cleaner)

func WithRetrier(r *retry.Retrier) Option {
	return func(c *Cleaner) { c.retrier = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cleaner) { c.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Cleaner) { c.metrics = m }
}

func WithReporter(r progress.Reporter) Option {
	return func(c *Cleaner) { c.reporter = r }
}

// NewCleaner builds a Cleaner. source resolves the blacklisted titles for
// the summary filter; with a nil source that stage is a no-op.
func NewCleaner(cfg config.Cleanup, source *graph.Source, opts ...Option) *Cleaner {
	c := &Cleaner{
		cfg:      cfg,
		source:   source,
		logger:   zap.NewNop(),
		reporter: progress.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = retry.New(config.Default().Search.SleeperDelay(), c.logger)
	}
	return c
}

type stage struct {
	name string
	run  func(context.Context, []graph.Edge) []graph.Edge
}

// Clean runs every stage on edges for a run with seedCount seeds. It ignores
// cancellation of ctx so that an interrupted search still yields a graph.
// Page fetches are bounded: up to cleanup.fetch_attempts tries each, and a
// single try once ctx is already cancelled.
func (c *Cleaner) Clean(ctx context.Context, edges []graph.Edge, seedCount int) []graph.Edge {
	fetch := c.retrier.Bounded(c.cfg.FetchAttempts)
	if ctx.Err() != nil {
		fetch = c.retrier.Bounded(1)
	}
	ctx = context.WithoutCancel(ctx)
	minConnections := c.cfg.MinConnections(seedCount)

	stages := []stage{
		{"title-prefixes", func(_ context.Context, e []graph.Edge) []graph.Edge {
			return FilterTitlePrefixes(e, c.cfg.BlacklistTitlePrefixes)
		}},
		{"cycles", func(_ context.Context, e []graph.Edge) []graph.Edge { return RemoveCycles(e) }},
		{"dead-ends", func(_ context.Context, e []graph.Edge) []graph.Edge {
			return RemoveDeadEnds(e, minConnections)
		}},
		{"blacklist-summaries", func(ctx context.Context, e []graph.Edge) []graph.Edge {
			return c.filterBlacklistedSummaries(ctx, fetch, e)
		}},
	}
	if c.cfg.ConsolidateTitles {
		stages = append(stages, stage{"consolidate", func(_ context.Context, e []graph.Edge) []graph.Edge {
			return ConsolidateTitles(e)
		}})
	}
	stages = append(stages, stage{"cycles-again", func(_ context.Context, e []graph.Edge) []graph.Edge {
		return RemoveCycles(e)
	}})

	c.logger.Info("cleaning connections list",
		zap.Int("edges", len(edges)),
		zap.Int("min_connections", minConnections))

	out := edges
	for i, s := range stages {
		before := len(out)
		out = s.run(ctx, out)
		c.logger.Debug("cleanup stage done",
			zap.String("stage", s.name),
			zap.Int("before", before),
			zap.Int("after", len(out)))
		c.reporter.Report(progress.Event{
			Phase:     progress.PhasePostProcessing,
			Completed: i + 1,
			Total:     len(stages),
			Message:   s.name,
		})
	}

	c.logger.Info("connections list clean", zap.Int("edges", len(out)))
	c.metrics.EdgesEmitted("cleanup", len(out))
	return out
}

// FilterTitlePrefixes drops edges with an endpoint title starting with any
// of prefixes. Each prefix narrows the result of the previous one.
func FilterTitlePrefixes(edges []graph.Edge, prefixes []string) []graph.Edge {
	out := edges
	for _, prefix := range prefixes {
		out = filter(out, func(e graph.Edge) bool {
			return !strings.HasPrefix(e.Src.Title, prefix) && !strings.HasPrefix(e.Dest.Title, prefix)
		})
	}
	return out
}

// RemoveCycles drops edges joining a page to itself.
func RemoveCycles(edges []graph.Edge) []graph.Edge {
	return filter(edges, func(e graph.Edge) bool { return !e.IsCyclic() })
}

// RemoveDeadEnds deduplicates edges and drops those touching a page with
// fewer than minConnections edges. Degrees are counted once over the
// deduplicated set; the pass is not repeated.
func RemoveDeadEnds(edges []graph.Edge, minConnections int) []graph.Edge {
	unique := graph.Dedup(edges)
	degree := graph.Degrees(unique)
	return filter(unique, func(e graph.Edge) bool {
		return degree[e.Src.Title] >= minConnections && degree[e.Dest.Title] >= minConnections
	})
}

// ConsolidateTitles merges every pair of edges with graph.Consolidate and
// returns the set union of the outcomes in first-produced order. A list of
// fewer than two edges has no pairs and is returned unchanged.
func ConsolidateTitles(edges []graph.Edge) []graph.Edge {
	if len(edges) < 2 {
		return edges
	}
	set := graph.NewEdgeSet()
	for i := range edges {
		for j := i + 1; j < len(edges); j++ {
			set.Add(graph.Consolidate(edges[i], edges[j])...)
		}
	}
	return set.Edges()
}

// SummaryPrefix returns the first n runes of s.
func SummaryPrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// filterBlacklistedSummaries drops edges whose endpoint summary starts the
// same way as one of the blacklisted pages. Pages sharing a summary prefix
// with e.g. "ISBN" are identifier stubs no matter what their title is.
func (c *Cleaner) filterBlacklistedSummaries(ctx context.Context, fetch *retry.Retrier, edges []graph.Edge) []graph.Edge {
	banned := c.blacklistPrefixes(ctx, fetch)
	if len(banned) == 0 {
		return edges
	}
	threshold := c.cfg.SummaryPrefixThreshold
	return filter(edges, func(e graph.Edge) bool {
		for _, n := range [2]*graph.Node{e.Src, e.Dest} {
			if _, hit := banned[SummaryPrefix(c.summary(ctx, fetch, n), threshold)]; hit {
				return false
			}
		}
		return true
	})
}

func (c *Cleaner) blacklistPrefixes(ctx context.Context, fetch *retry.Retrier) map[string]struct{} {
	banned := make(map[string]struct{})
	if c.source == nil {
		return banned
	}
	for _, title := range c.cfg.BlacklistTitles {
		var node *graph.Node
		err := fetch.Do(ctx, "blacklist", func() error {
			var err error
			node, err = c.source.Resolve(ctx, title)
			return err
		})
		if err != nil {
			if !errors.Is(err, graph.ErrNotFound) {
				c.logger.Warn("failed to resolve blacklisted page", zap.String("title", title), zap.Error(err))
			}
			continue
		}
		c.metrics.PageResolved()
		prefix := SummaryPrefix(node.CachedSummary(), c.cfg.SummaryPrefixThreshold)
		if prefix == "" {
			continue
		}
		banned[prefix] = struct{}{}
	}
	return banned
}

func (c *Cleaner) summary(ctx context.Context, fetch *retry.Retrier, n *graph.Node) string {
	var s string
	err := fetch.Do(ctx, "summary", func() error {
		var err error
		s, err = n.Summary(ctx)
		return err
	})
	if err != nil {
		return ""
	}
	return s
}

func filter(edges []graph.Edge, keep func(graph.Edge) bool) []graph.Edge {
	out := make([]graph.Edge, 0, len(edges))
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
