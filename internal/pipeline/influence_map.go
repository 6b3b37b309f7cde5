package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"influencemap/internal/cleanup"
	"influencemap/internal/config"
	"influencemap/internal/crawler"
	"influencemap/internal/graph"
	"influencemap/internal/importance"
	"influencemap/internal/metrics"
	"influencemap/internal/progress"
	"influencemap/internal/retry"
)

// InfluenceMap runs one mapping job: resolve the seeds, search between every
// ordered pair, cross-link the pages found, then clean the result.
type InfluenceMap struct {
	Config   config.Config
	Source   *graph.Source
	Scorer   *importance.Scorer
	Retrier  *retry.Retrier
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	Reporter progress.Reporter
	// Rand seeds candidate sampling. Nil uses a time-seeded source.
	Rand *rand.Rand
}

// Result is the outcome of a run. Edges are the cleaned graph.
type Result struct {
	Seeds       []*graph.Node
	Missing     []string
	Edges       []graph.Edge
	Interrupted bool
	StartedAt   time.Time
	Duration    time.Duration
}

// SeedTitles returns the titles of the resolved seeds in request order.
func (r *Result) SeedTitles() []string {
	out := make([]string, len(r.Seeds))
	for i, n := range r.Seeds {
		out[i] = n.Title
	}
	return out
}

func NewInfluenceMap(cfg config.Config, source *graph.Source) *InfluenceMap {
	logger := zap.NewNop()
	return &InfluenceMap{
		Config:   cfg,
		Source:   source,
		Scorer:   importance.NewScorer(),
		Retrier:  retry.New(cfg.Search.SleeperDelay(), logger),
		Logger:   logger,
		Reporter: progress.Nop{},
	}
}

// Run maps the given titles. Cancelling ctx cuts the search short; the
// partial edges are still cross-linked from cache, cleaned and returned.
// A run in which no title resolves yields an empty graph.
func (m *InfluenceMap) Run(ctx context.Context, titles []string) *Result {
	m.ensureDefaults()
	res := &Result{StartedAt: time.Now()}

	res.Seeds, res.Missing = m.resolveSeedsStage(ctx, titles)
	if len(res.Seeds) == 0 {
		m.Logger.Warn("no seed resolved, returning empty graph", zap.Strings("requested", titles))
	} else {
		c := m.crawler()
		raw := m.searchStage(ctx, c, res.Seeds)
		linked := m.crossLinkStage(ctx, c, raw)
		res.Edges = m.cleanupStage(ctx, linked, len(res.Seeds))
	}

	res.Interrupted = ctx.Err() != nil
	res.Duration = time.Since(res.StartedAt)
	m.Reporter.Report(progress.Event{
		Phase:     progress.PhaseFinished,
		Completed: len(res.Edges),
		Total:     len(res.Edges),
	})
	m.Logger.Info("influence map complete",
		zap.Int("seeds", len(res.Seeds)),
		zap.Int("edges", len(res.Edges)),
		zap.Bool("interrupted", res.Interrupted),
		zap.Duration("took", res.Duration))
	return res
}

func (m *InfluenceMap) ensureDefaults() {
	if m.Logger == nil {
		m.Logger = zap.NewNop()
	}
	if m.Reporter == nil {
		m.Reporter = progress.Nop{}
	}
	if m.Scorer == nil {
		m.Scorer = importance.NewScorer()
	}
	if m.Retrier == nil {
		m.Retrier = retry.New(m.Config.Search.SleeperDelay(), m.Logger)
	}
	if m.Retrier.OnRetry == nil {
		m.Retrier.OnRetry = func(int, time.Duration, error) { m.Metrics.Retry() }
	}
}

// resolveSeedsStage resolves titles in order, dropping blanks, duplicates
// and pages that do not exist. Titles that redirect to the same page count
// as duplicates.
func (m *InfluenceMap) resolveSeedsStage(ctx context.Context, titles []string) ([]*graph.Node, []string) {
	var (
		seeds   []*graph.Node
		missing []string
	)
	seen := make(map[string]bool, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		var node *graph.Node
		err := m.Retrier.Do(ctx, "resolve", func() error {
			var err error
			node, err = m.Source.Resolve(ctx, title)
			return err
		})
		switch {
		case err == nil && seen[node.Title] && node.Title != title:
			m.Logger.Info("seed redirects to an earlier seed, skipping",
				zap.String("title", title), zap.String("page", node.Title))
		case err == nil:
			m.Metrics.PageResolved()
			seen[node.Title] = true
			seeds = append(seeds, node)
		case errors.Is(err, graph.ErrNotFound):
			m.Logger.Warn("no page found, skipping", zap.String("title", title))
			missing = append(missing, title)
		case ctx.Err() != nil:
			m.Logger.Info("interrupted while resolving seeds", zap.Int("resolved", len(seeds)))
			return seeds, missing
		default:
			m.Logger.Warn("failed to resolve seed, skipping", zap.String("title", title), zap.Error(err))
			missing = append(missing, title)
		}
	}
	m.Logger.Info("seeds resolved", zap.Int("resolved", len(seeds)), zap.Int("missing", len(missing)))
	return seeds, missing
}

func (m *InfluenceMap) searchStage(ctx context.Context, c *crawler.Crawler, seeds []*graph.Node) []graph.Edge {
	edges := c.ConnectConcepts(ctx, seeds)
	m.Logger.Info("search done", zap.Int("edges", len(edges)))
	return edges
}

// crossLinkStage still runs after an interrupted search. Link sets already
// cached are used; uncached fetches fail fast on the cancelled context.
func (m *InfluenceMap) crossLinkStage(ctx context.Context, c *crawler.Crawler, edges []graph.Edge) []graph.Edge {
	return c.CrossLink(ctx, edges)
}

func (m *InfluenceMap) cleanupStage(ctx context.Context, edges []graph.Edge, seedCount int) []graph.Edge {
	c := cleanup.NewCleaner(m.Config.Cleanup, m.Source,
		cleanup.WithRetrier(m.Retrier),
		cleanup.WithLogger(m.Logger),
		cleanup.WithMetrics(m.Metrics),
		cleanup.WithReporter(m.Reporter))
	return c.Clean(ctx, edges, seedCount)
}

func (m *InfluenceMap) crawler() *crawler.Crawler {
	opts := []crawler.Option{
		crawler.WithRetrier(m.Retrier),
		crawler.WithLogger(m.Logger),
		crawler.WithMetrics(m.Metrics),
		crawler.WithReporter(m.Reporter),
	}
	if m.Rand != nil {
		opts = append(opts, crawler.WithRand(m.Rand))
	}
	return crawler.NewCrawler(m.Config.Search, m.Scorer, opts...)
}
