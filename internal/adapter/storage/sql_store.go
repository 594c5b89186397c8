package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/rl1809/lending-ledger/internal/port"
)

const (
	dialectMySQL    = "mysql"
	dialectPostgres = "postgres"

	defaultMaxOpenConns    = 50
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
)

var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrUnsupportedDriver     = errors.New("unsupported database driver")
)

// OpenDB opens and pings a pooled connection for one of the drivers mysql, postgres or pgx.
func OpenDB(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if _, err := dialectFor(driver); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func dialectFor(driver string) (string, error) {
	switch driver {
	case "mysql":
		return dialectMySQL, nil
	case "postgres", "pgx":
		return dialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// SQLStore persists the catalog and the ledger in the books and borrowed tables.
// Mutations run in one database transaction; rows read inside it are locked FOR UPDATE.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	builder goqu.DialectWrapper
}

var _ port.Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB) (*SQLStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	dialect, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		db:      db,
		dialect: dialect,
		builder: goqu.Dialect(dialect),
	}, nil
}

func (s *SQLStore) Catalog() port.CatalogRepository {
	return &sqlRepo{store: s, q: s.db}
}

func (s *SQLStore) Ledger() port.LedgerRepository {
	return &sqlRepo{store: s, q: s.db}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, sqlTx{repo: &sqlRepo{store: s, q: tx, locking: true}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlTx struct {
	repo *sqlRepo
}

func (t sqlTx) Catalog() port.CatalogRepository { return t.repo }
func (t sqlTx) Ledger() port.LedgerRepository   { return t.repo }

// sqlRepo runs catalog and ledger statements against either the pool or an open transaction.
type sqlRepo struct {
	store   *SQLStore
	q       sqlx.ExtContext
	locking bool
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
