package family

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDirectory reads household configuration from Postgres. Events
// live on the external calendar; the database holds configuration only.
type PostgresDirectory struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresDirectory connects to Postgres and verifies the connection.
func NewPostgresDirectory(dsn string, logger *zap.Logger) (*PostgresDirectory, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to family database")
	return &PostgresDirectory{db: db, logger: logger}, nil
}

// NewPostgresDirectoryFromDB wraps an existing connection, mainly for tests.
func NewPostgresDirectoryFromDB(db *sqlx.DB, logger *zap.Logger) *PostgresDirectory {
	return &PostgresDirectory{db: db, logger: logger}
}

// Close releases the database connection.
func (d *PostgresDirectory) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection is still alive.
func (d *PostgresDirectory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

const memberColumns = `id, name, COALESCE(role, '') AS role, COALESCE(calendar_source, '') AS calendar_source, active`

func (d *PostgresDirectory) Members(ctx context.Context) ([]Member, error) {
	var members []Member
	query := `SELECT ` + memberColumns + ` FROM family_members WHERE deleted_at IS NULL ORDER BY name`
	if err := d.db.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (d *PostgresDirectory) MemberByName(ctx context.Context, name string) (*Member, error) {
	var m Member
	query := `SELECT ` + memberColumns + ` FROM family_members WHERE deleted_at IS NULL AND LOWER(name) = LOWER($1)`
	if err := d.db.GetContext(ctx, &m, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get member %q: %w", name, err)
	}
	return &m, nil
}

const resourceColumns = `id, name, COALESCE(type, '') AS type, capacity, COALESCE(calendar_source, '') AS calendar_source, active`

func (d *PostgresDirectory) Resources(ctx context.Context) ([]Resource, error) {
	var resources []Resource
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE deleted_at IS NULL ORDER BY name`
	if err := d.db.SelectContext(ctx, &resources, query); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

func (d *PostgresDirectory) ResourceByName(ctx context.Context, name string) (*Resource, error) {
	var r Resource
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE deleted_at IS NULL AND LOWER(name) = LOWER($1)`
	if err := d.db.GetContext(ctx, &r, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource %q: %w", name, err)
	}
	return &r, nil
}

// constraintRow adapts the array column to the Constraint type.
type constraintRow struct {
	Constraint
	Days pq.Int64Array `db:"days_of_week"`
}

func (d *PostgresDirectory) ConstraintsFor(ctx context.Context, memberID string) ([]Constraint, error) {
	query := `SELECT id, name, COALESCE(description, '') AS description,
		COALESCE(member_id::text, '') AS member_id, type, level, priority,
		COALESCE(window_start, '') AS window_start, COALESCE(window_end, '') AS window_end,
		COALESCE(days_of_week, '{}') AS days_of_week, active
		FROM constraints
		WHERE deleted_at IS NULL AND active AND (member_id IS NULL OR member_id::text = $1)
		ORDER BY priority DESC`

	var rows []constraintRow
	if err := d.db.SelectContext(ctx, &rows, query, memberID); err != nil {
		return nil, fmt.Errorf("list constraints for %q: %w", memberID, err)
	}

	constraints := make([]Constraint, 0, len(rows))
	for _, row := range rows {
		c := row.Constraint
		for _, day := range row.Days {
			c.DaysOfWeek = append(c.DaysOfWeek, int(day))
		}
		constraints = append(constraints, c)
	}
	return constraints, nil
}
