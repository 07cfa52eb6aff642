package rawmaterial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/furniture/internal/db"
)

var (
	ErrNotFound  = errors.New("reference row not found")
	ErrNullValue = errors.New("reference value is NULL")
)

// Store hands out sessions for reading reference coefficients.
type Store interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session reads reference values. Callers must Close it.
type Session interface {
	Coefficient(ctx context.Context, productTypeID int64) (float64, error)
	LossFactor(ctx context.Context, materialTypeID int64) (float64, error)
	Close() error
}

// queryer is satisfied by both *sql.DB and *sql.Conn.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore reads reference values from a shared database handle. Each
// session pins one pooled connection until it is closed.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore returns a Store backed by database.
func NewSQLStore(database *sql.DB) *SQLStore {
	return &SQLStore{db: database}
}

// Acquire reserves a connection from the pool.
func (s *SQLStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &sqlSession{q: conn, closeFn: conn.Close}, nil
}

// FileStore opens the database file at Path for every session and closes
// it when the session ends. A missing file is an error; it is never created.
type FileStore struct {
	Path string
}

// Acquire opens the database file.
func (s FileStore) Acquire(ctx context.Context) (Session, error) {
	database, err := db.OpenExisting(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	return &sqlSession{q: database, closeFn: database.Close}, nil
}

type sqlSession struct {
	q       queryer
	closeFn func() error
}

func (s *sqlSession) Coefficient(ctx context.Context, productTypeID int64) (float64, error) {
	return s.lookup(ctx, `SELECT coefficient FROM product_type WHERE id = ?`, productTypeID)
}

func (s *sqlSession) LossFactor(ctx context.Context, materialTypeID int64) (float64, error) {
	return s.lookup(ctx, `SELECT loss_percent FROM material_type WHERE id = ?`, materialTypeID)
}

func (s *sqlSession) Close() error {
	return s.closeFn()
}

func (s *sqlSession) lookup(ctx context.Context, query string, id int64) (float64, error) {
	var value sql.NullFloat64
	err := s.q.QueryRowContext(ctx, query, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query reference value: %w", err)
	}
	if !value.Valid {
		return 0, ErrNullValue
	}
	return value.Float64, nil
}
