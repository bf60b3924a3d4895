//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/readings.go -package=mocks . ReadingRepository

// Package database stores switch readings in Postgres or SQLite.
//
// Example usage:
//
//	repo, err := NewSQLRepo("sqlite", "readings.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	readings, err := repo.Recent(ctx, 20)
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// sqliteTimeLayout is fixed width so that text ordering matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ReadingRepository persists evaluation results.
type ReadingRepository interface {
	// Insert stores a single reading.
	Insert(ctx context.Context, reading models.Reading) error

	// Recent returns up to limit readings, newest first.
	Recent(ctx context.Context, limit int) ([]models.Reading, error)

	Close() error
}

type dialect struct {
	schema string
	insert string
	recent string
	// formats time values for drivers without a native timestamp type
	timeArg func(time.Time) any
}

var dialects = map[string]dialect{
	"postgres": {
		schema: `CREATE TABLE IF NOT EXISTS readings (
			id BIGSERIAL PRIMARY KEY,
			observed_at TIMESTAMPTZ NOT NULL,
			channel TEXT NOT NULL,
			device_gid BIGINT NOT NULL,
			channel_num TEXT NOT NULL,
			raw_usage DOUBLE PRECISION NOT NULL,
			watts DOUBLE PRECISION NOT NULL,
			threshold_watts DOUBLE PRECISION NOT NULL,
			switch_on BOOLEAN NOT NULL
		)`,
		insert: `INSERT INTO readings
			(observed_at, channel, device_gid, channel_num, raw_usage, watts, threshold_watts, switch_on)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		recent: `SELECT observed_at, channel, device_gid, channel_num, raw_usage, watts, threshold_watts, switch_on
			FROM readings ORDER BY observed_at DESC, id DESC LIMIT $1`,
		timeArg: func(t time.Time) any { return t.UTC() },
	},
	"sqlite": {
		schema: `CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			observed_at TEXT NOT NULL,
			channel TEXT NOT NULL,
			device_gid INTEGER NOT NULL,
			channel_num TEXT NOT NULL,
			raw_usage REAL NOT NULL,
			watts REAL NOT NULL,
			threshold_watts REAL NOT NULL,
			switch_on INTEGER NOT NULL
		)`,
		insert: `INSERT INTO readings
			(observed_at, channel, device_gid, channel_num, raw_usage, watts, threshold_watts, switch_on)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		recent: `SELECT observed_at, channel, device_gid, channel_num, raw_usage, watts, threshold_watts, switch_on
			FROM readings ORDER BY observed_at DESC, id DESC LIMIT ?`,
		timeArg: func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
	},
}

// SQLRepo implements ReadingRepository on database/sql.
type SQLRepo struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLRepo opens the database, verifies connectivity and creates the
// readings table if needed. driver is "postgres" or "sqlite".
func NewSQLRepo(driver, dsn string) (*SQLRepo, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLRepo{db: db, dialect: d}, nil
}

func (s *SQLRepo) Insert(ctx context.Context, r models.Reading) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insert,
		s.dialect.timeArg(r.Time),
		r.Channel,
		r.DeviceGid,
		r.ChannelNum,
		r.RawUsage,
		r.Watts,
		r.ThresholdWatts,
		r.On,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (s *SQLRepo) Recent(ctx context.Context, limit int) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.recent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Reading
	for rows.Next() {
		var (
			r          models.Reading
			observedAt any
		)
		if err := rows.Scan(&observedAt, &r.Channel, &r.DeviceGid, &r.ChannelNum,
			&r.RawUsage, &r.Watts, &r.ThresholdWatts, &r.On); err != nil {
			return nil, err
		}
		if r.Time, err = parseTime(observedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

func (s *SQLRepo) Close() error {
	return s.db.Close()
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

var _ ReadingRepository = (*SQLRepo)(nil)
