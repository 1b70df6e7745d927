package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/feedback/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		field TEXT NOT NULL DEFAULT '',
		class_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		n_students INTEGER NOT NULL DEFAULT 0,
		n_present INTEGER NOT NULL DEFAULT 0,
		mean REAL NOT NULL DEFAULT 0,
		std_dev REAL NOT NULL DEFAULT 0,
		stats_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS student_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		number INTEGER NOT NULL,
		name TEXT NOT NULL,
		first_name TEXT NOT NULL,
		absent BOOLEAN NOT NULL DEFAULT 0,
		grade REAL,
		rank INTEGER NOT NULL DEFAULT 0,
		ex_aequo BOOLEAN NOT NULL DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_student_results_run ON student_results(run_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records a run and its per-student results. A new id is assigned
// when the export has none; the id is returned.
func (s *Store) SaveRun(ctx context.Context, run model.RunExport) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return "", fmt.Errorf("encode statistics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, field, class_name, title, date, n_students, n_present, mean, std_dev, stats_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.UTC(), run.Exam.Field, run.Exam.ClassName, run.Exam.Title, run.Exam.Date,
		run.NStudents, run.Stats.NPresent, run.Stats.Mean, run.Stats.StdDev, string(stats),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, r := range run.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO student_results (run_id, position, number, name, first_name, absent, grade, rank, ex_aequo)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, i, r.Number, r.Name, r.FirstName, r.Absent, r.Grade, r.Rank, r.ExAequo,
		)
		if err != nil {
			return "", fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	return run.RunID, tx.Commit()
}

// ListRuns returns the recorded runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, class_name, title, date, n_students, n_present, mean, std_dev
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.ClassName, &r.Title, &r.Date,
			&r.NStudents, &r.NPresent, &r.Mean, &r.StdDev); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a full run. It returns nil and no error when the id is
// unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*model.RunExport, error) {
	var (
		run   model.RunExport
		stats string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, field, class_name, title, date, n_students, stats_json
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.RunID, &run.CreatedAt, &run.Exam.Field, &run.Exam.ClassName, &run.Exam.Title,
		&run.Exam.Date, &run.NStudents, &stats)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return nil, fmt.Errorf("decode statistics of run %s: %w", id, err)
	}

	results, err := s.results(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return &run, nil
}

func (s *Store) results(ctx context.Context, runID string) ([]model.StudentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, name, first_name, absent, grade, rank, ex_aequo
		 FROM student_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.StudentResult
	for rows.Next() {
		var (
			r     model.StudentResult
			grade sql.NullFloat64
		)
		if err := rows.Scan(&r.Number, &r.Name, &r.FirstName, &r.Absent, &grade, &r.Rank, &r.ExAequo); err != nil {
			return nil, err
		}
		if grade.Valid {
			g := grade.Float64
			r.Grade = &g
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRun removes a run and its results.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM student_results WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}
