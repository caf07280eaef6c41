package pg

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"accesscore.io/internal/rbac"
)

// Store implements the engine's persistence collaborator over Postgres. Each
// call performs a full round-trip; there is no in-process cache.
type Store struct {
	db *sql.DB
}

var (
	_ rbac.Store          = (*Store)(nil)
	_ rbac.BootstrapStore = (*Store)(nil)
)

// Open connects to Postgres with pool defaults tuned for short RBAC queries.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }
