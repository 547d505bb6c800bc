package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/db"
)

// Migrate creates the schema if it is absent. It opens its own short-lived
// connection so closing the migrator never touches the request pool.
func Migrate(dbURL string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	src, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	conn, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(conn, &migratepgx.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("store: closing migrator", zap.NamedError("source_error", srcErr), zap.NamedError("db_error", dbErr))
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("store: schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("store: schema applied", zap.Uint("version", version))
	return nil
}
