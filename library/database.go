package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" with database/sql
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	tableBooks   = "books"
	tableMembers = "members"
	tableLoans   = "loans"
)

// Database provides high-level helpers around a SQL connection pool. All
// components share it and go through the same transactional boundary.
type Database struct {
	db       *sqlx.DB
	driver   StorageDriver
	dialect  goqu.DialectWrapper
	rowLocks bool

	// lockTimeout bounds each wait for a Postgres row lock; zero waits forever.
	lockTimeout time.Duration

	logger  Logger
	metrics *Metrics
	now     func() time.Time
	retry   []RetryOption
}

// sqlBuilder is satisfied by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// NewDatabase opens (or creates) the database described by cfg, applies schema
// migrations, and applies options.
func NewDatabase(ctx context.Context, cfg Config, options ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Database{
		driver: cfg.Driver,
		logger: nopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
		retry:  []RetryOption{WithMaxAttempts(cfg.MaxAttempts)},
	}
	for _, option := range options {
		if err := option(d); err != nil {
			return nil, err
		}
	}

	var err error
	switch cfg.Driver {
	case DriverSQLite:
		d.db, err = openSQLite(cfg.SQLitePath, cfg.BusyTimeout)
		d.dialect = goqu.Dialect("sqlite3")
	case DriverPostgres:
		d.db, err = openPostgres(ctx, cfg.PostgresDSN)
		d.dialect = goqu.Dialect("postgres")
		d.rowLocks = true
		d.lockTimeout = cfg.BusyTimeout
	}
	if err != nil {
		return nil, err
	}

	if err := d.applyMigrations(ctx); err != nil {
		d.db.Close()
		return nil, err
	}
	return d, nil
}

func openSQLite(path string, busyTimeout time.Duration) (*sqlx.DB, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN, which makes every
	// read-check-mutate transaction single-writer.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_txlock=immediate",
		path, busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	const (
		maxOpenConnections = 20
		maxIdleConnections = 5
		maxConnLifetime    = time.Hour
		maxConnIdleTime    = 5 * time.Minute
	)

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(maxConnLifetime)
	db.SetConnMaxIdleTime(maxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (d *Database) Close() error { return d.db.Close() }

// Driver reports the backend in use.
func (d *Database) Driver() StorageDriver { return d.driver }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func (d *Database) applyMigrations(ctx context.Context) error {
	if d.driver == DriverSQLite {
		// WAL lets readers proceed while a writer holds the lock.
		if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range schemaStatements(d.driver) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration: %w", err)
			}
		}
		del := d.dialect.Delete("meta").Where(goqu.C("key").Eq("schema_version")).Prepared(true)
		if _, err := d.exec(ctx, tx, del); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		ins := d.dialect.Insert("meta").
			Rows(goqu.Record{"key": "schema_version", "value": strconv.Itoa(schemaVersion)}).
			Prepared(true)
		if _, err := d.exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	var raw string
	err := d.get(ctx, d.db, &raw, d.from("meta").
		Select("value").
		Where(goqu.C("key").Eq("schema_version")))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Transactions and query helpers
// ---------------------------------------------------------------------------

// withTx runs fn in a transaction: begin, checks, mutations, commit. Any error
// from fn or from commit rolls the whole unit back.
func (d *Database) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return translateDBError(fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	if d.rowLocks && d.lockTimeout > 0 {
		// SET does not take bind parameters; the value is an integer in ms.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", max(d.lockTimeout.Milliseconds(), 1))
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return translateDBError(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err = fn(tx); err != nil {
		return translateDBError(err)
	}
	if err = tx.Commit(); err != nil {
		return translateDBError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// runOp wraps a ledger operation with retry on transient failures, logging
// and metrics.
func (d *Database) runOp(ctx context.Context, op, opID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	opts := append([]RetryOption{}, d.retry...)
	opts = append(opts, withRetryHook(func(attempt int, err error) {
		d.metrics.retried(op)
		d.logger.Warn("retrying after transient failure",
			"operation", op, "op_id", opID, "attempt", attempt, "error", err)
	}))

	err := retryTransient(ctx, fn, opts...)
	d.metrics.observe(op, start, err)
	if err != nil && Classify(err) == ClassInternal {
		d.logger.Error("operation failed", "operation", op, "op_id", opID, "error", err)
	}
	return err
}

func (d *Database) from(table interface{}) *goqu.SelectDataset {
	return d.dialect.From(table).Prepared(true)
}

func (d *Database) forUpdate(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if !d.rowLocks {
		return ds
	}
	return ds.ForUpdate(exp.Wait)
}

func (d *Database) get(ctx context.Context, q sqlx.QueryerContext, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	start := time.Now()
	err = sqlx.GetContext(ctx, q, dest, query, args...)
	d.logSQL(query, start)
	return err
}

func (d *Database) selectAll(ctx context.Context, q sqlx.QueryerContext, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	start := time.Now()
	err = sqlx.SelectContext(ctx, q, dest, query, args...)
	d.logSQL(query, start)
	return err
}

func (d *Database) exec(ctx context.Context, e sqlx.ExecerContext, b sqlBuilder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	start := time.Now()
	res, err := e.ExecContext(ctx, query, args...)
	d.logSQL(query, start)
	return res, err
}

// insertID runs an insert and returns the generated id.
func (d *Database) insertID(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	if d.driver == DriverPostgres {
		var id int64
		err := d.get(ctx, q, &id, ds.Returning("id"))
		return id, err
	}
	res, err := d.exec(ctx, q, ds)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *Database) logSQL(query string, start time.Time) {
	d.logger.Debug("executed sql", "query", query, "duration_ms", time.Since(start).Milliseconds())
}

func (d *Database) count(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset) (int64, error) {
	var n int64
	err := d.get(ctx, q, &n, ds.Select(goqu.COUNT("*")))
	return n, err
}
