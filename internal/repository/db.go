package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	entschema "entgo.io/ent/dialect/sql/schema"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// sqlitePragmas are appended to every SQLite DSN. Atlas refuses to migrate
// without foreign keys on, and the fixed time format keeps timestamps
// parseable as DATETIME.
var sqlitePragmas = []struct{ key, param string }{
	{"foreign_keys", "_pragma=foreign_keys(1)"},
	{"busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_time_format", "_time_format=sqlite"},
}

// DB is the ledger connection wrapped for ent.
type DB struct {
	SQL     *sql.DB
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to the configured ledger and migrates the extract_jobs table.
func Open(ctx context.Context, cfg common.LedgerConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{logger: logger}

	switch cfg.Driver {
	case common.LedgerSQLite:
		logger.Info("ledger.open", "driver", cfg.Driver, "dsn", cfg.DSN)
		sqlDB, err := sql.Open("sqlite", sqliteDSN(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SQL, db.dialect = sqlDB, dialect.SQLite
	case common.LedgerPostgres:
		logger.Info("ledger.open", "driver", cfg.Driver)
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("ledger.open.failed", "error", err)
			return nil, err
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "invoice-extractor"

		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("ledger.open.failed", "error", err)
			return nil, err
		}
		// Wrap pool as *sql.DB for Ent
		db.pool = pool
		db.SQL, db.dialect = stdlib.OpenDBFromPool(pool), dialect.Postgres
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
	db.drv = entsql.OpenDB(db.dialect, db.SQL)

	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("ledger.ready", "driver", cfg.Driver)
	return db, nil
}

// migrate creates or updates the ledger tables through ent's Atlas migrator.
func (db *DB) migrate(ctx context.Context) error {
	m, err := entschema.NewMigrate(db.drv)
	if err != nil {
		return fmt.Errorf("ledger migrate: %w", err)
	}
	if err := m.Create(ctx, extractJobs.table); err != nil {
		return fmt.Errorf("create %s: %w", extractJobs.name(), err)
	}
	return nil
}

// builder returns an ent SQL builder for the ledger dialect.
func (db *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.dialect)
}

// HealthCheck pings the ledger.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	db.logger.Debug("ledger.ping")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.SQL.PingContext(ctx)
}

// Close closes the database connections gracefully
func (db *DB) Close() {
	if db == nil {
		return
	}
	if db.drv != nil {
		if err := db.drv.Close(); err != nil {
			db.logger.Error("ledger.close.failed", "error", err)
		}
	} else if db.SQL != nil {
		_ = db.SQL.Close()
	}
	if db.pool != nil {
		db.pool.Close()
	}
	db.logger.Info("ledger.closed")
}

// sqliteDSN adds the pragmas the ledger relies on unless the DSN sets them.
func sqliteDSN(dsn string) string {
	var extra []string
	for _, p := range sqlitePragmas {
		if !strings.Contains(dsn, p.key) {
			extra = append(extra, p.param)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}
