package anytrain

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	_ "modernc.org/sqlite"
)

// A Sink records training metrics keyed by name and step.
// Records are only ever appended.
type Sink interface {
	Scalar(name string, step, value float64) error
	Histogram(name string, step float64, values []float64) error
	Close() error
}

// NopSink discards every metric.
type NopSink struct{}

func (NopSink) Scalar(name string, step, value float64) error { return nil }

func (NopSink) Histogram(name string, step float64, values []float64) error { return nil }

func (NopSink) Close() error { return nil }

// A ScalarRecord is one logged scalar.
// SQLite has no NaN, so a NaN value reads back as NULL and
// is restored as NaN.
type ScalarRecord struct {
	Name  string
	Step  float64
	Value float64
}

// A HistogramRecord summarizes one logged histogram.
type HistogramRecord struct {
	Name   string
	Step   float64
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Values []float64
}

// SQLiteSink appends metrics to a SQLite database.
type SQLiteSink struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLiteSink opens (and if needed creates) a metric
// database.
func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSinkTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// Scalar records a scalar.
func (s *SQLiteSink) Scalar(name string, step, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("sink is closed")
	}
	_, err := s.db.Exec(`INSERT INTO scalars (name, step, value) VALUES (?, ?, ?)`,
		name, step, value)
	return err
}

// Histogram records summary statistics and the raw values
// of a distribution.
func (s *SQLiteSink) Histogram(name string, step float64, values []float64) error {
	if len(values) == 0 {
		return nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("sink is closed")
	}
	_, err = s.db.Exec(`
		INSERT INTO histograms (name, step, count, min, max, mean, std, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, name, step, len(values), floats.Min(values), floats.Max(values), mean, std, payload)
	return err
}

// Scalars lists the scalars recorded under name in step
// order.
func (s *SQLiteSink) Scalars(ctx context.Context, name string) ([]ScalarRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT name, step, value FROM scalars
		WHERE name = ?
		ORDER BY step ASC, id ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ScalarRecord
	for rows.Next() {
		var r ScalarRecord
		var value sql.NullFloat64
		if err := rows.Scan(&r.Name, &r.Step, &value); err != nil {
			return nil, err
		}
		r.Value = math.NaN()
		if value.Valid {
			r.Value = value.Float64
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Histograms lists the histograms recorded under name in
// step order.
func (s *SQLiteSink) Histograms(ctx context.Context, name string) ([]HistogramRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT name, step, count, min, max, mean, std, data FROM histograms
		WHERE name = ?
		ORDER BY step ASC, id ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []HistogramRecord
	for rows.Next() {
		var r HistogramRecord
		var payload []byte
		err := rows.Scan(&r.Name, &r.Step, &r.Count, &r.Min, &r.Max, &r.Mean,
			&r.StdDev, &payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &r.Values); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteSink) getDB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("sink is closed")
	}
	return s.db, nil
}

func createSinkTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scalars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			step REAL NOT NULL,
			value REAL
		);
		CREATE INDEX IF NOT EXISTS scalars_name ON scalars (name, step);
		CREATE TABLE IF NOT EXISTS histograms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			step REAL NOT NULL,
			count INTEGER NOT NULL,
			min REAL NOT NULL,
			max REAL NOT NULL,
			mean REAL NOT NULL,
			std REAL NOT NULL,
			data BLOB NOT NULL
		);
	`)
	return err
}
