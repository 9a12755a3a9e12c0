// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, logger *slog.Logger) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("connected to PostgreSQL")

	return &PostgresDB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	p.logger.Info("closing PostgreSQL connection")
	return p.DB.Close()
}

// Migrate applies the embedded schema migrations.
func (p *PostgresDB) Migrate() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(p.DB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// m.Close would also close the shared *sql.DB, so only the source is released.
	defer source.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			p.logger.Info("schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	p.logger.Info("schema migrated", "version", version)
	return nil
}

// CreateCommunity inserts a community and fills in its id and creation time.
func (p *PostgresDB) CreateCommunity(ctx context.Context, community *models.Community) error {
	err := p.DB.QueryRowxContext(ctx,
		`INSERT INTO communities (name) VALUES ($1) RETURNING id, created_at`,
		community.Name,
	).Scan(&community.ID, &community.CreatedAt)
	if err != nil {
		return writeError(err, "failed to create community")
	}
	return nil
}

func (p *PostgresDB) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	var community models.Community
	err := p.DB.GetContext(ctx, &community, `SELECT id, name, created_at FROM communities WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewCommunityNotFoundError(id)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query community by id", err)
	}
	return &community, nil
}

// writeError maps constraint violations raised by an insert to input errors.
func writeError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "foreign_key_violation":
			return utils.NewAppError(utils.ErrInvalidInput, message+": referenced row does not exist", err)
		case "check_violation":
			return utils.NewAppError(utils.ErrInvalidInput, message+": "+pqErr.Constraint, err)
		case "unique_violation":
			return utils.NewAppError(utils.ErrDuplicate, message, err)
		}
	}
	return utils.NewAppError(utils.ErrDatabase, message, err)
}
