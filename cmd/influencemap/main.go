package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"influencemap/internal/config"
	"influencemap/internal/export"
	"influencemap/internal/graph"
	"influencemap/internal/importance"
	"influencemap/internal/metrics"
	"influencemap/internal/pipeline"
	"influencemap/internal/progress"
	"influencemap/internal/retry"
	"influencemap/internal/storage"
	"influencemap/internal/wiki"
)

var (
	rootCmd = &cobra.Command{
		Use:           "influencemap",
		Short:         "Map how a set of Wikipedia concepts influence each other",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath  string
	dbPath      string
	format      string
	outDir      string
	offlinePath string
	metricsAddr string
	randSeed    int64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database for storing runs (overrides output.db)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "Output format: html, mermaid or json (overrides output.format)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides output.dir)")

	mapCmd.Flags().StringVar(&offlinePath, "offline", "", "Serve pages from a YAML fixture instead of the live wiki")
	mapCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while mapping")
	mapCmd.Flags().Int64Var(&randSeed, "seed", 0, "Seed for candidate sampling (0 picks one from the clock)")

	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
}

// loadConfig loads the configuration and applies the command line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Output.DB = dbPath
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func openStore(cfg config.Config) (*storage.SQLiteStore, error) {
	if cfg.Output.DB == "" {
		return nil, errors.New("no database configured (use --db or output.db)")
	}
	store, err := storage.NewSQLiteStore(cfg.Output.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// readConcepts splits the seed file on delimiter, dropping blank entries.
// The delimiter may be written with \n or \t escapes.
func readConcepts(path, delimiter string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read concepts: %w", err)
	}
	delimiter = strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(delimiter)
	var concepts []string
	for _, c := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), delimiter) {
		if c = strings.TrimSpace(c); c != "" {
			concepts = append(concepts, c)
		}
	}
	return concepts, nil
}

var mapCmd = &cobra.Command{
	Use:   "map <concepts-file> [delimiter]",
	Short: "Search for connections between the concepts in a file and draw the map",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delimiter := "\n"
		if len(args) > 1 {
			delimiter = args[1]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Log.Level)
		if err != nil {
			return err
		}
		defer logger.Sync()

		concepts, err := readConcepts(args[0], delimiter)
		if err != nil {
			return err
		}
		renderer, err := export.NewRenderer(cfg.Output.Format)
		if err != nil {
			return err
		}

		// 1. Page source
		var loader graph.Loader
		if offlinePath != "" {
			fmt.Printf("📦 Using offline fixture: %s\n", offlinePath)
			loader, err = wiki.LoadFixture(offlinePath)
			if err != nil {
				return err
			}
		} else {
			loader = wiki.NewClient(wiki.Options{
				Endpoint:          cfg.Wiki.Endpoint,
				Language:          cfg.Wiki.Language,
				UserAgent:         cfg.Wiki.UserAgent,
				RequestsPerSecond: cfg.Wiki.RequestsPerSecond,
				Timeout:           cfg.Wiki.Timeout(),
				Logger:            logger,
			})
		}

		scorer := importance.NewScorer()
		if cfg.StopWordsFile != "" {
			if err := scorer.LoadStopWords(cfg.StopWordsFile); err != nil {
				return err
			}
		}

		// 2. Metrics
		collector := metrics.NewCollector()
		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: collector.Handler()}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			defer srv.Close()
			fmt.Printf("📈 Serving metrics on %s/metrics\n", metricsAddr)
		}

		// 3. Run
		// The first interrupt stops the search and the map is still written.
		// Once it has fired, the default handler is back and a second one kills the process.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			stop()
		}()

		events := progress.NewChannel(64)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			printProgress(events.Events())
		}()

		m := pipeline.NewInfluenceMap(cfg, graph.NewSource(loader))
		m.Scorer = scorer
		m.Logger = logger
		m.Retrier = retry.New(cfg.Search.SleeperDelay(), logger)
		m.Metrics = collector
		m.Reporter = events
		if randSeed != 0 {
			m.Rand = rand.New(rand.NewSource(randSeed))
		}

		fmt.Printf("🚀 Mapping %d concepts...\n", len(concepts))
		res := m.Run(ctx, concepts)
		events.Close()
		wg.Wait()

		for _, title := range res.Missing {
			fmt.Printf("⚠️  No page found for %q, skipped\n", title)
		}
		if res.Interrupted {
			fmt.Println("🛑 Interrupted, wrote what was found so far.")
		}

		// 4. Artifact
		path, err := export.WriteFile(cfg.Output.Dir, renderer, export.Graph{Seeds: res.SeedTitles(), Edges: res.Edges})
		if err != nil {
			return err
		}
		fmt.Printf("✅ Wrote map to %q (%d connections) in %v.\n", path, len(res.Edges), res.Duration.Round(time.Millisecond))

		// 5. Store
		if cfg.Output.DB == "" {
			return nil
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.SaveRun(context.WithoutCancel(ctx), &storage.Run{
			CreatedAt:   res.StartedAt,
			Seeds:       res.SeedTitles(),
			Missing:     res.Missing,
			Interrupted: res.Interrupted,
			Duration:    res.Duration,
			Edges:       res.Edges,
		})
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Printf("💾 Saved run %s\n", id)
		return nil
	},
}

func printProgress(events <-chan progress.Event) {
	var phase progress.Phase
	for e := range events {
		if e.Phase != phase {
			if phase != "" && phase != progress.PhaseFinished {
				fmt.Println()
			}
			phase = e.Phase
		}
		switch e.Phase {
		case progress.PhaseSearching:
			fmt.Printf("\r🔍 Searching pairs: %d/%d", e.Completed, e.Total)
		case progress.PhaseCrossLinking:
			fmt.Printf("\r🔗 Cross-linking pages: %d/%d", e.Completed, e.Total)
		case progress.PhasePostProcessing:
			fmt.Printf("\r🧹 Cleaning up: %d/%d (%s)   ", e.Completed, e.Total, e.Message)
		case progress.PhaseFinished:
			fmt.Println("🏁 Finished.")
		}
	}
	if phase != "" && phase != progress.PhaseFinished {
		fmt.Println()
	}
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSEEDS\tNODES\tEDGES\tINTERRUPTED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%t\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), strings.Join(r.Seeds, ", "), r.Nodes, r.Edges, r.Interrupted)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Render a stored run again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		renderer, err := export.NewRenderer(cfg.Output.Format)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.LoadRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		path, err := export.WriteFile(cfg.Output.Dir, renderer, export.Graph{Seeds: run.Seeds, Edges: run.Edges})
		if err != nil {
			return err
		}
		fmt.Printf("✅ Wrote map to %q (%d connections).\n", path, len(run.Edges))
		return nil
	},
}
