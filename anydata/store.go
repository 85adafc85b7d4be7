// Package anydata stores light curve datasets as named
// arrays in SQLite and turns them into training samples.
package anydata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	_ "modernc.org/sqlite"
)

// ErrNoArray is returned when a named array is missing.
var ErrNoArray = errors.New("no such array")

// An Array is a dense row-major n-dimensional array.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates a zeroed array.
func NewArray(shape ...int) *Array {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return &Array{Shape: append([]int{}, shape...), Data: make([]float64, size)}
}

// Len returns the size of the outer dimension.
func (a *Array) Len() int {
	return a.Shape[0]
}

// Stride returns the number of values per outer index.
func (a *Array) Stride() int {
	return len(a.Data) / a.Shape[0]
}

// Row returns the values at an outer index.
// The result aliases the array.
func (a *Array) Row(i int) []float64 {
	s := a.Stride()
	return a.Data[i*s : (i+1)*s]
}

// Clone deep-copies the array.
func (a *Array) Clone() *Array {
	return &Array{
		Shape: append([]int{}, a.Shape...),
		Data:  append([]float64{}, a.Data...),
	}
}

func (a *Array) validate() error {
	if len(a.Shape) == 0 {
		return errors.New("array has no dimensions")
	}
	size := 1
	for _, s := range a.Shape {
		if s <= 0 {
			return fmt.Errorf("invalid array shape %v", a.Shape)
		}
		size *= s
	}
	if size != len(a.Data) {
		return fmt.Errorf("array shape %v does not match %d values", a.Shape, len(a.Data))
	}
	return nil
}

// A Store keeps named arrays in a SQLite database.
type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// OpenStore opens (and if needed creates) a store.
func OpenStore(ctx context.Context, path string) (*Store, error) {
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
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{path: path, db: db}, nil
}

// WriteArray stores an array, replacing any array with
// the same name.
//
// The values are saved as a gonum matrix with one row per
// outer index.
func (s *Store) WriteArray(ctx context.Context, name string, a *Array) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := a.validate(); err != nil {
		return fmt.Errorf("write array %s: %w", name, err)
	}
	shape, err := json.Marshal(a.Shape)
	if err != nil {
		return err
	}
	payload, err := mat.NewDense(a.Len(), a.Stride(), a.Data).MarshalBinary()
	if err != nil {
		return fmt.Errorf("write array %s: %w", name, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO arrays (name, shape, data)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			shape = excluded.shape,
			data = excluded.data
	`, name, string(shape), payload)
	return err
}

// ReadArray loads an array.
// It returns an error wrapping ErrNoArray if the name is
// not present.
func (s *Store) ReadArray(ctx context.Context, name string) (*Array, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var shapeText string
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT shape, data FROM arrays WHERE name = ?`,
		name).Scan(&shapeText, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read array %s: %w", name, ErrNoArray)
		}
		return nil, err
	}
	var res Array
	if err := json.Unmarshal([]byte(shapeText), &res.Shape); err != nil {
		return nil, fmt.Errorf("decode array %s: %w", name, err)
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("decode array %s: %w", name, err)
	}
	res.Data = append([]float64{}, m.RawMatrix().Data...)
	if err := res.validate(); err != nil {
		return nil, fmt.Errorf("decode array %s: %w", name, err)
	}
	return &res, nil
}

// Names lists the stored arrays in sorted order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM arrays ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is closed")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS arrays (
			name TEXT PRIMARY KEY,
			shape TEXT NOT NULL,
			data BLOB NOT NULL
		);
	`)
	return err
}
