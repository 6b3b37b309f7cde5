package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"influencemap/internal/graph"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout has fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT,
			seeds JSON,
			missing JSON,
			interrupted INTEGER,
			duration_ms INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			run_id TEXT,
			title TEXT,
			summary TEXT,
			is_seed INTEGER,
			PRIMARY KEY (run_id, title)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT,
			position INTEGER,
			src TEXT,
			dest TEXT,
			weight INTEGER,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	seeds, err := json.Marshal(nonNil(run.Seeds))
	if err != nil {
		return "", err
	}
	missing, err := json.Marshal(nonNil(run.Missing))
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	// 1. Run row; saving an existing id replaces its snapshot.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, seeds, missing, interrupted, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at=excluded.created_at,
			seeds=excluded.seeds,
			missing=excluded.missing,
			interrupted=excluded.interrupted,
			duration_ms=excluded.duration_ms
	`, run.ID, run.CreatedAt.UTC().Format(timeLayout), seeds, missing, run.Interrupted, run.Duration.Milliseconds()); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	for _, table := range []string{"nodes", "edges"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.ID); err != nil {
			return "", fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// 2. Nodes
	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (run_id, title, summary, is_seed) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, title) DO UPDATE SET
			summary=excluded.summary,
			is_seed=excluded.is_seed
	`)
	if err != nil {
		return "", err
	}
	defer nodeStmt.Close()

	isSeed := make(map[string]bool, len(run.Seeds))
	for _, title := range run.Seeds {
		isSeed[title] = true
	}
	for _, n := range graph.Nodes(run.Edges) {
		if _, err := nodeStmt.ExecContext(ctx, run.ID, n.Title, n.CachedSummary(), isSeed[n.Title]); err != nil {
			return "", err
		}
	}

	// 3. Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (run_id, position, src, dest, weight) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer edgeStmt.Close()

	for i, e := range run.Edges {
		if _, err := edgeStmt.ExecContext(ctx, run.ID, i, e.Src.Title, e.Dest.Title, e.Weight); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, created_at, seeds, missing, interrupted, duration_ms FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	// 1. Load Nodes
	rows, err := s.db.QueryContext(ctx, "SELECT title, summary FROM nodes WHERE run_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make(map[string]*graph.Node)
	for rows.Next() {
		var title, summary string
		if err := rows.Scan(&title, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes[title] = graph.NewNode(title, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT src, dest, weight FROM edges WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	node := func(title string) *graph.Node {
		if n, ok := nodes[title]; ok {
			return n
		}
		n := graph.NewNode(title, "")
		nodes[title] = n
		return n
	}
	for edgeRows.Next() {
		var src, dest string
		var weight int
		if err := edgeRows.Scan(&src, &dest, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		run.Edges = append(run.Edges, graph.Edge{Src: node(src), Dest: node(dest), Weight: weight})
	}
	return run, edgeRows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.seeds, r.missing, r.interrupted, r.duration_ms,
			(SELECT COUNT(*) FROM nodes n WHERE n.run_id = r.id),
			(SELECT COUNT(*) FROM edges e WHERE e.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var nodeCount, edgeCount int
		run, err := scanRun(rows, &nodeCount, &edgeCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, RunSummary{
			ID:          run.ID,
			CreatedAt:   run.CreatedAt,
			Seeds:       run.Seeds,
			Nodes:       nodeCount,
			Edges:       edgeCount,
			Interrupted: run.Interrupted,
		})
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (*Run, error) {
	var (
		run            Run
		createdAt      string
		seeds, missing []byte
		durationMillis int64
	)
	dest := append([]any{&run.ID, &createdAt, &seeds, &missing, &run.Interrupted, &durationMillis}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	run.Duration = time.Duration(durationMillis) * time.Millisecond
	if err := json.Unmarshal(seeds, &run.Seeds); err != nil {
		return nil, fmt.Errorf("bad seeds: %w", err)
	}
	if err := json.Unmarshal(missing, &run.Missing); err != nil {
		return nil, fmt.Errorf("bad missing: %w", err)
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
