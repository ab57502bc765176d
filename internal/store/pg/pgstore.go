package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/subject"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store owns the pooled connection. The per-domain stores returned by
// Users, ACL and Subjects share it.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() *Users       { return &Users{db: s.db} }
func (s *Store) ACL() *ACL           { return &ACL{db: s.db} }
func (s *Store) Subjects() *Subjects { return &Subjects{db: s.db} }

var (
	_ auth.UserStore = (*Users)(nil)
	_ acl.Store      = (*ACL)(nil)
	_ subject.Store  = (*Subjects)(nil)
)

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func oneAffected(res sql.Result, missing string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.E(auth.StatusNotFound, missing)
	}
	return nil
}
