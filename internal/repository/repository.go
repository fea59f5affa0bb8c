package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"homebids/internal/config"

	postgres "homebids/internal/repository/db"

	"github.com/lib/pq"
)

// Postgres error codes the repository translates into domain errors.
const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

type Repository struct {
	db  *sql.DB
	cfg *config.PostgresConfig

	// afterDebit runs inside SubmitBid between the balance debit and the bid
	// insert. Tests use it to force a failure at that point.
	afterDebit func() error
}

func NewRepository(db *sql.DB, cfg *config.PostgresConfig) (*Repository, error) {
	var err error

	repo := &Repository{
		db:  db,
		cfg: cfg,
	}

	if repo.cfg == nil {
		repo.cfg, err = config.NewPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not load postgres config: %w", err)
		}
	}

	if repo.db == nil {
		repo.db, err = postgres.NewPostgresDB(repo.cfg)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not open postgres db: %w", err)
		}
	}

	if repo.cfg.AutoMigrateUp == "true" {
		err = repo.MigrateUp()
		if err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (repo *Repository) MigrateUp() error {
	err := postgres.MigrateUp(repo.db, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateUp: %w", err)
	}
	return nil
}

func (repo *Repository) MigrateDown() error {
	err := postgres.MigrateDown(repo.db, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateDown: %w", err)
	}
	return nil
}

func (repo *Repository) Ping(ctx context.Context) error {
	return repo.db.PingContext(ctx)
}

func (repo *Repository) Close() error {
	var migErr error
	if repo.cfg.AutoMigrateDown == "true" {
		migErr = repo.MigrateDown()
	}

	err := repo.db.Close()
	return errors.Join(migErr, err)
}

//// Service

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// inTx runs fn in a transaction, committing on success and rolling back on
// any error returned by fn.
func (repo *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	err = fn(tx)
	if err != nil {
		return wrapRollbackErr(tx, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func wrapRollbackErr(tx *sql.Tx, err error) error {
	rollerr := tx.Rollback()
	if rollerr == nil {
		return err
	}
	return fmt.Errorf("failed to rollback transaction after previous error: %w, %w", rollerr, err)
}

// isConstraintViolation reports whether err is a postgres error with the given
// code, optionally raised by the named constraint.
func isConstraintViolation(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != code {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint
}

// conditions assembles a WHERE clause where each condition uses "$$" as the
// placeholder for its parameter. Numbering starts after the first offset
// parameters already present in the query.
func conditions(offset int, conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	for i := 0; i < len(conds); i++ {
		conds[i] = strings.Replace(conds[i], "$$", "$"+strconv.Itoa(i+offset+1), -1)
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func replaceConditions(query, conds string) string {
	return strings.Replace(query, "$conditions$", conds, -1)
}

func limitParam(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

func nullString(s string) interface{} {
	if len(s) == 0 {
		return nil
	}
	return s
}

func readUUID(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

//// Test utils

func (repo *Repository) TestGetDB() *sql.DB {
	return repo.db
}

func (repo *Repository) TestSetAfterDebit(fn func() error) {
	repo.afterDebit = fn
}
