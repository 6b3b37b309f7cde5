package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Search tunes the recursive connection search.
type Search struct {
	AllowDirectLinkBypass bool    `yaml:"allow_direct_link_bypass"`
	SearchIntensity       int     `yaml:"search_intensity"`
	SleeperDelaySeconds   float64 `yaml:"sleeper_delay_seconds"`
	DepthLimit            int     `yaml:"depth_limit"`
	WidthLimit            int     `yaml:"width_limit"`
	Parallelism           int     `yaml:"parallelism"`
}

// Cleanup tunes the post-processing pipeline.
type Cleanup struct {
	ConsolidateTitles        bool     `yaml:"consolidate_titles"`
	MinConnectionsOverride   int      `yaml:"min_connections_override"`
	MinConnectionsMultiplier int      `yaml:"min_connections_multiplier"`
	SummaryPrefixThreshold   int      `yaml:"summary_prefix_threshold"`
	FetchAttempts            int      `yaml:"fetch_attempts"`
	BlacklistTitles          []string `yaml:"blacklist_titles"`
	BlacklistTitlePrefixes   []string `yaml:"blacklist_title_prefixes"`
}

type Wiki struct {
	Language          string  `yaml:"language"`
	Endpoint          string  `yaml:"endpoint"`
	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

type Output struct {
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
	DB     string `yaml:"db"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Config is passed by value into the search and cleanup entry points and is
// not modified after loading.
type Config struct {
	Search        Search  `yaml:"search"`
	Cleanup       Cleanup `yaml:"cleanup"`
	Wiki          Wiki    `yaml:"wiki"`
	Output        Output  `yaml:"output"`
	Log           Log     `yaml:"log"`
	StopWordsFile string  `yaml:"stopwords_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Search: Search{
			AllowDirectLinkBypass: false,
			SearchIntensity:       5,
			SleeperDelaySeconds:   1.5,
			DepthLimit:            3,
			WidthLimit:            3,
			Parallelism:           1,
		},
		Cleanup: Cleanup{
			ConsolidateTitles:        true,
			MinConnectionsOverride:   -1,
			MinConnectionsMultiplier: 2,
			SummaryPrefixThreshold:   20,
			FetchAttempts:            3,
			BlacklistTitles: []string{
				"Wayback Machine",
				"Digital object identifier",
				"International Standard Serial Number",
				"PubMed",
				"ISBN",
				"Système universitaire de documentation",
				"Semantic Scholar",
				"OCLC",
				"JSTOR",
				"Virtual International Authority File",
				"Trove",
			},
			BlacklistTitlePrefixes: []string{
				"Category:",
				"Wikipedia:",
				"Help:",
				"Talk:",
				"Template:",
				"File:",
				"Portal:",
			},
		},
		Wiki: Wiki{
			Language:          "en",
			RequestsPerSecond: 5,
			TimeoutSeconds:    30,
		},
		Output: Output{
			Format: "html",
			Dir:    ".",
		},
		Log: Log{Level: "info"},
	}
}

// LoadConfig starts from Default, overlays the YAML file at path if it
// exists, then applies INFLUENCEMAP_* environment variables (a .env file in
// the working directory is loaded first when present).
func LoadConfig(path string) (Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := yaml.Unmarshal(file, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	ints := map[string]*int{
		"INFLUENCEMAP_DEPTH_LIMIT":              &cfg.Search.DepthLimit,
		"INFLUENCEMAP_WIDTH_LIMIT":              &cfg.Search.WidthLimit,
		"INFLUENCEMAP_SEARCH_INTENSITY":         &cfg.Search.SearchIntensity,
		"INFLUENCEMAP_PARALLELISM":              &cfg.Search.Parallelism,
		"INFLUENCEMAP_MIN_CONNECTIONS_OVERRIDE": &cfg.Cleanup.MinConnectionsOverride,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	if v := os.Getenv("INFLUENCEMAP_SLEEPER_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INFLUENCEMAP_SLEEPER_DELAY: %w", err)
		}
		cfg.Search.SleeperDelaySeconds = f
	}
	if v := os.Getenv("INFLUENCEMAP_WIKI_ENDPOINT"); v != "" {
		cfg.Wiki.Endpoint = v
	}
	if v := os.Getenv("INFLUENCEMAP_WIKI_LANGUAGE"); v != "" {
		cfg.Wiki.Language = v
	}
	if v := os.Getenv("INFLUENCEMAP_USER_AGENT"); v != "" {
		cfg.Wiki.UserAgent = v
	}
	if v := os.Getenv("INFLUENCEMAP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate rejects settings the search cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Search.DepthLimit < 0 {
		errs = append(errs, fmt.Errorf("search.depth_limit must be >= 0, got %d", c.Search.DepthLimit))
	}
	if c.Search.WidthLimit < 1 {
		errs = append(errs, fmt.Errorf("search.width_limit must be >= 1, got %d", c.Search.WidthLimit))
	}
	if c.Search.SearchIntensity < 1 {
		errs = append(errs, fmt.Errorf("search.search_intensity must be >= 1, got %d", c.Search.SearchIntensity))
	}
	if c.Search.SleeperDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("search.sleeper_delay_seconds must be >= 0"))
	}
	if c.Cleanup.SummaryPrefixThreshold < 1 {
		errs = append(errs, fmt.Errorf("cleanup.summary_prefix_threshold must be >= 1"))
	}
	if c.Cleanup.FetchAttempts < 1 {
		errs = append(errs, fmt.Errorf("cleanup.fetch_attempts must be >= 1"))
	}
	return errors.Join(errs...)
}

// SleeperDelay is the retry base delay.
func (s Search) SleeperDelay() time.Duration {
	return time.Duration(s.SleeperDelaySeconds * float64(time.Second))
}

// EffectiveParallelism never returns less than one.
func (s Search) EffectiveParallelism() int {
	if s.Parallelism < 1 {
		return 1
	}
	return s.Parallelism
}

// MinConnections is the dead-end threshold for a run with seedCount seeds.
// A non-negative override replaces the computed value.
func (c Cleanup) MinConnections(seedCount int) int {
	if c.MinConnectionsOverride >= 0 {
		return c.MinConnectionsOverride
	}
	return seedCount * c.MinConnectionsMultiplier
}

// Timeout is the HTTP timeout for wiki requests.
func (w Wiki) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}
