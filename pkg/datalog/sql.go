package datalog

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	_ Recorder = (*SQLRecorder)(nil)
	_ Lister   = (*SQLRecorder)(nil)
)

const insertRound = `INSERT INTO rounds (timestamp, round, active, boundary, derived, ratio, loss, avg_noise,
	temperature, humidity, pressure, noise, bias, coupling, mode)
	VALUES (:timestamp, :round, :active, :boundary, :derived, :ratio, :loss, :avg_noise,
	:temperature, :humidity, :pressure, :noise, :bias, :coupling, :mode)`

const columns = `timestamp, round, active, boundary, derived, ratio, loss, avg_noise,
	temperature, humidity, pressure, noise, bias, coupling, mode`

// SQLRecorder stores rounds in SQLite or PostgreSQL through sqlx.
type SQLRecorder struct {
	driver     string
	dialect    string
	dsn        string
	migrations *migrate.MemoryMigrationSource
	db         *sqlx.DB
}

func NewSQLite(path string) *SQLRecorder {
	return &SQLRecorder{
		driver:     "sqlite3",
		dialect:    "sqlite3",
		dsn:        path,
		migrations: migrations("INTEGER PRIMARY KEY AUTOINCREMENT"),
	}
}

func NewPostgres(url string) *SQLRecorder {
	return &SQLRecorder{
		driver:     "pgx",
		dialect:    "postgres",
		dsn:        url,
		migrations: migrations("BIGSERIAL PRIMARY KEY"),
	}
}

func migrations(idColumn string) *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_rounds",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS rounds (
						id ` + idColumn + `,
						timestamp TIMESTAMP NOT NULL,
						round BIGINT NOT NULL,
						active INTEGER NOT NULL,
						boundary SMALLINT NOT NULL,
						derived SMALLINT NOT NULL,
						ratio REAL NOT NULL,
						loss BIGINT NOT NULL,
						avg_noise REAL NOT NULL,
						temperature REAL,
						humidity REAL,
						pressure REAL,
						noise REAL NOT NULL,
						bias SMALLINT NOT NULL,
						coupling SMALLINT NOT NULL,
						mode SMALLINT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_round ON rounds(round DESC)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_rounds_round`,
					`DROP TABLE IF EXISTS rounds`,
				},
			},
		},
	}
}

func (s *SQLRecorder) Name() string {
	return Name
}

func (s *SQLRecorder) Init(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(ctx); err == nil {
			return nil
		}
		_ = s.db.Close()
		s.db = nil
	}

	db, err := sqlx.ConnectContext(ctx, s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("round log connection error: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := migrate.Exec(db.DB, s.dialect, s.migrations, migrate.Up); err != nil {
		_ = db.Close()

		return fmt.Errorf("round log migration error: %w", err)
	}
	s.db = db

	return nil
}

func (s *SQLRecorder) Record(ctx context.Context, r Row) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if _, err := s.db.NamedExecContext(ctx, insertRound, r); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return nil
}

// List returns rows newest first together with the total row count.
func (s *SQLRecorder) List(ctx context.Context, offset, limit uint64) ([]Row, uint64, error) {
	if s.db == nil {
		return nil, 0, ErrNotOpen
	}

	var total uint64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM rounds`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	var rows []Row
	query := s.db.Rebind(`SELECT ` + columns + ` FROM rounds ORDER BY id DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if rows == nil {
		rows = []Row{}
	}

	return rows, total, nil
}

func (s *SQLRecorder) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil

	return err
}
