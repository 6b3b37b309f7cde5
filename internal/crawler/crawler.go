package crawler

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"influencemap/internal/config"
	"influencemap/internal/graph"
	"influencemap/internal/importance"
	"influencemap/internal/metrics"
	"influencemap/internal/progress"
	"influencemap/internal/retry"
)

// Crawler searches the link graph for connections between seed pages.
type Crawler struct {
	cfg      config.Search
	scorer   *importance.Scorer
	retrier  *retry.Retrier
	logger   *zap.Logger
	metrics  *metrics.Collector
	reporter progress.Reporter

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Crawler)

// WithRand fixes the sampling source, mainly for reproducible tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Crawler) { c.rng = r }
}

func WithRetrier(r *retry.Retrier) Option {
	return func(c *Crawler) { c.retrier = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) { c.metrics = m }
}

func WithReporter(r progress.Reporter) Option {
	return func(c *Crawler) { c.reporter = r }
}

// NewCrawler creates a crawler for the given search settings.
func NewCrawler(cfg config.Search, scorer *importance.Scorer, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:      cfg,
		scorer:   scorer,
		logger:   zap.NewNop(),
		reporter: progress.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scorer == nil {
		c.scorer = importance.NewScorer()
	}
	if c.retrier == nil {
		c.retrier = retry.New(cfg.SleeperDelay(), c.logger)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// ConnectConcepts runs a search for every ordered pair of seeds, self-pairs
// included, and returns every edge emitted. Cancelling ctx stops new pairs
// from starting; edges collected so far are still returned.
func (c *Crawler) ConnectConcepts(ctx context.Context, seeds []*graph.Node) []graph.Edge {
	seen := NewSeenSet(seeds...)
	vocab := c.scorer.BuildVocabulary(seeds)
	c.logger.Info("generated key word set", zap.Int("terms", len(vocab)))

	type pair struct{ from, to *graph.Node }
	pairs := make([]pair, 0, len(seeds)*len(seeds))
	for _, from := range seeds {
		for _, to := range seeds {
			pairs = append(pairs, pair{from: from, to: to})
		}
	}
	total := len(pairs)

	var (
		mu    sync.Mutex
		edges []graph.Edge
		done  int
	)
	runPair := func(p pair) {
		var local []graph.Edge
		c.logger.Debug("looking for connections",
			zap.String("from", p.from.Title),
			zap.String("to", p.to.Title))
		c.FindConnections(ctx, seen, p.from, p.to, vocab, c.cfg.DepthLimit, c.cfg.WidthLimit, func(e graph.Edge) {
			local = append(local, e)
		})

		mu.Lock()
		edges = append(edges, local...)
		done++
		completed := done
		mu.Unlock()

		c.reporter.Report(progress.Event{
			Phase:     progress.PhaseSearching,
			Completed: completed,
			Total:     total,
			Message:   p.from.Title + " -> " + p.to.Title,
		})
	}

	if c.cfg.EffectiveParallelism() == 1 {
		for _, p := range pairs {
			if ctx.Err() != nil {
				break
			}
			runPair(p)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.cfg.EffectiveParallelism())
		for _, p := range pairs {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				runPair(p)
				return nil
			})
		}
		_ = g.Wait()
	}

	if ctx.Err() != nil {
		c.logger.Info("search interrupted, keeping partial results",
			zap.Int("pairs_done", done),
			zap.Int("pairs_total", total),
			zap.Int("edges", len(edges)))
	}
	c.metrics.EdgesEmitted("search", len(edges))
	return edges
}

// FindConnections explores outward from cur looking for target, emitting an
// edge for every link into an already seen page and for every explored
// candidate. Branches stop when depth runs out; connections just past the
// boundary are not reported.
func (c *Crawler) FindConnections(
	ctx context.Context,
	seen *SeenSet,
	cur, target *graph.Node,
	vocab importance.Vocabulary,
	depth, width int,
	emit func(graph.Edge),
) {
	// Negative depth only happens below a target reached at depth zero.
	if depth < 0 || (depth == 0 && cur.Title != target.Title) {
		return
	}

	links, err := c.fetchLinks(ctx, cur)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("skipping page without links", zap.String("title", cur.Title), zap.Error(err))
		}
		return
	}

	// Connect new pages to existing nodes.
	for _, linked := range seen.Mark(links) {
		emit(graph.NewEdge(cur, linked))
	}

	if c.cfg.AllowDirectLinkBypass && cur.LinksTo(target.Title) {
		emit(graph.Edge{Src: cur, Dest: target, Weight: 1})
		return
	}

	for _, sub := range c.candidates(ctx, links, vocab, width) {
		if ctx.Err() != nil {
			return
		}
		c.FindConnections(ctx, seen, sub, target, vocab, depth-1, width, emit)
		emit(graph.NewEdge(cur, sub))
	}
}

// candidates picks the pages to recurse into. Large link sets are sampled
// down to width*intensity and ranked by importance; medium ones are sampled
// to width at random.
func (c *Crawler) candidates(ctx context.Context, links []*graph.Node, vocab importance.Vocabulary, width int) []*graph.Node {
	pool := c.cfg.SearchIntensity * width
	switch {
	case len(links) > pool:
		sampled := c.sample(links, pool)
		scores := make(map[string]int, len(sampled))
		for _, n := range sampled {
			scores[n.Title] = c.importance(ctx, n, vocab)
		}
		sort.SliceStable(sampled, func(i, j int) bool {
			return scores[sampled[i].Title] > scores[sampled[j].Title]
		})
		return sampled[:width]
	case len(links) > width:
		return c.sample(links, width)
	default:
		return links
	}
}

func (c *Crawler) importance(ctx context.Context, n *graph.Node, vocab importance.Vocabulary) int {
	var summary string
	err := c.retrier.Do(ctx, "summary", func() error {
		var err error
		summary, err = n.Summary(ctx)
		return err
	})
	if err != nil {
		c.logger.Debug("no summary for importance", zap.String("title", n.Title), zap.Error(err))
		return 0
	}
	score := c.scorer.Score(summary, vocab)
	c.logger.Debug("analyzed importance", zap.String("title", n.Title), zap.Int("score", score))
	return score
}

// sample returns k pages chosen uniformly without replacement.
func (c *Crawler) sample(nodes []*graph.Node, k int) []*graph.Node {
	out := make([]*graph.Node, len(nodes))
	copy(out, nodes)

	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	for i := 0; i < k; i++ {
		j := i + c.rng.Intn(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:k]
}

// fetchLinks loads the link set of n, backing off while the source throttles.
func (c *Crawler) fetchLinks(ctx context.Context, n *graph.Node) ([]*graph.Node, error) {
	if links, ok := n.CachedLinks(); ok {
		return links, nil
	}
	var links []*graph.Node
	err := c.retrier.Do(ctx, "links", func() error {
		c.metrics.LinkFetch()
		var err error
		links, err = n.Links(ctx)
		return err
	})
	return links, err
}
