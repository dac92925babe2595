// Package registry keeps a history of training runs in SQLite: the training
// info of each run, its per-algorithm scores and the serialized model files,
// so any earlier model can be restored.
package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/tsawler/classify"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("training run not found")

// Run is one recorded training run.
type Run struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	CreatedAt time.Time             `json:"created_at"`
	Info      classify.TrainingInfo `json:"training_info"`
}

// RunMetric is the held-out score of one algorithm in a run.
type RunMetric struct {
	Algorithm    classify.Algorithm `json:"algorithm"`
	Accuracy     float64            `json:"accuracy"`
	MacroF1      float64            `json:"macro_f1"`
	WeightedF1   float64            `json:"weighted_f1"`
	TrainingTime time.Duration      `json:"training_time"`
	Converged    bool               `json:"converged"`
	Report       string             `json:"report,omitempty"`
	Confusion    [][]int            `json:"confusion,omitempty"` // [true][predicted]
}

// Registry stores runs in a SQLite database.
type Registry struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens (creating if needed) the registry at path with WAL mode enabled.
func Open(ctx context.Context, path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Registry{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL,
	info_json TEXT NOT NULL,
	best_accuracy TEXT,
	fastest_training TEXT
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	accuracy REAL NOT NULL,
	macro_f1 REAL NOT NULL,
	weighted_f1 REAL NOT NULL,
	training_ns INTEGER NOT NULL,
	converged INTEGER NOT NULL,
	report TEXT,
	confusion_json TEXT,
	PRIMARY KEY(run_id, algorithm),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS model_files (
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY(run_id, name),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (r *Registry) newID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Now(), r.entropy).String()
}

// RecordRun stores a trained model and its report and returns the new run id.
// report may be nil, in which case the model's own training info is used.
func (r *Registry) RecordRun(ctx context.Context, m *classify.Model, report *classify.TrainingReport) (string, error) {
	if m == nil {
		return "", fmt.Errorf("%w: nil model", classify.ErrInvalidInput)
	}
	info := m.Info
	var evaluations map[classify.Algorithm]*classify.Metrics
	if report != nil {
		info = report.Info
		evaluations = report.Evaluations
	}
	files, err := m.Encode()
	if err != nil {
		return "", err
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("encode training info: %w", err)
	}

	id := r.newID()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	created := info.TrainedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs(id, name, created_at, info_json, best_accuracy, fastest_training) VALUES(?, ?, ?, ?, ?, ?)`,
		id, m.Name, created.Format(time.RFC3339Nano), string(infoJSON), string(info.BestAccuracy), string(info.FastestTraining))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, res := range info.Results {
		var text, confusion string
		if metrics := evaluations[res.Algorithm]; metrics != nil {
			text = metrics.Report() + "\n" + metrics.ConfusionReport()
			data, err := json.Marshal(metrics.Confusion)
			if err != nil {
				return "", fmt.Errorf("encode confusion for %s: %w", res.Algorithm, err)
			}
			confusion = string(data)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics(run_id, algorithm, accuracy, macro_f1, weighted_f1, training_ns, converged, report, confusion_json) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, string(res.Algorithm), res.Accuracy, res.MacroF1, res.WeightedF1, int64(res.TrainingTime), res.Converged, text, confusion)
		if err != nil {
			return "", fmt.Errorf("insert metrics for %s: %w", res.Algorithm, err)
		}
	}

	for name, data := range files {
		if _, err := tx.ExecContext(ctx, `INSERT INTO model_files(run_id, name, data) VALUES(?, ?, ?)`, id, name, data); err != nil {
			return "", fmt.Errorf("insert model file %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (r *Registry) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, name, created_at, info_json FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given id.
func (r *Registry) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at, info_json FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run      Run
		created  string
		infoJSON string
	)
	if err := s.Scan(&run.ID, &run.Name, &created, &infoJSON); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: created_at: %w", run.ID, err)
	}
	run.CreatedAt = t
	if err := json.Unmarshal([]byte(infoJSON), &run.Info); err != nil {
		return Run{}, fmt.Errorf("run %s: training info: %w", run.ID, err)
	}
	return run, nil
}

// Metrics returns the per-algorithm scores of a run in the order they were
// trained.
func (r *Registry) Metrics(ctx context.Context, id string) ([]RunMetric, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT algorithm, accuracy, macro_f1, weighted_f1, training_ns, converged, COALESCE(report, ''), COALESCE(confusion_json, '') FROM run_metrics WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byAlg := make(map[classify.Algorithm]RunMetric)
	for rows.Next() {
		var (
			m         RunMetric
			alg       string
			ns        int64
			confusion string
		)
		if err := rows.Scan(&alg, &m.Accuracy, &m.MacroF1, &m.WeightedF1, &ns, &m.Converged, &m.Report, &confusion); err != nil {
			return nil, err
		}
		if confusion != "" {
			if err := json.Unmarshal([]byte(confusion), &m.Confusion); err != nil {
				return nil, fmt.Errorf("decode confusion for %s: %w", alg, err)
			}
		}
		m.Algorithm = classify.Algorithm(alg)
		m.TrainingTime = time.Duration(ns)
		byAlg[m.Algorithm] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RunMetric, 0, len(byAlg))
	for _, res := range run.Info.Results {
		if m, ok := byAlg[res.Algorithm]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// LoadModel restores the model saved with a run.
func (r *Registry) LoadModel(ctx context.Context, id string) (*classify.Model, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, data FROM model_files WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make(map[string][]byte)
	for rows.Next() {
		var (
			name string
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			return nil, err
		}
		files[name] = data
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	m, err := classify.DecodeModel(files)
	if err != nil {
		return nil, fmt.Errorf("load model of run %s: %w", id, err)
	}
	return m, nil
}

// DeleteRun removes a run with its metrics and model files.
func (r *Registry) DeleteRun(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so children are removed explicitly.
	for _, table := range []string{"run_metrics", "model_files"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}
