// Package realtime loads line sections from a Postgres table, one row per
// line and one column per option.
package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"sccpd/internal/config"
)

// ErrNotFound is returned for a line the table does not hold.
var ErrNotFound = errors.New("realtime: line not found")

// Config holds the database settings.
type Config struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
	QueryTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Table == "" {
		out.Table = "sccplines"
	}
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 4
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	if out.QueryTimeout <= 0 {
		out.QueryTimeout = 5 * time.Second
	}
	return out
}

// Source reads lines from the database.
type Source struct {
	db      *sql.DB
	query   string
	timeout time.Duration
	log     *logrus.Entry
}

// Open connects through the pgx driver and pings the server. The dsn is
// never logged.
func Open(ctx context.Context, cfg Config, log *logrus.Entry) (*Source, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if _, err := config.ParseTableName(cfg.Table); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return &Source{db: db, query: lineQuery(cfg.Table), timeout: cfg.QueryTimeout, log: log}, nil
}

func lineQuery(table string) string {
	return "SELECT * FROM " + pgx.Identifier{table}.Sanitize() + " WHERE name = $1"
}

// Line fetches the section of one line.
func (s *Source) Line(ctx context.Context, name string) (*config.Section, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, s.query, name)
	if err != nil {
		return nil, fmt.Errorf("query line %s: %w", name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query line %s: %w", name, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan line %s: %w", name, err)
	}
	s.log.Debugf("realtime line %s loaded with %d columns", name, len(cols))
	return Section(name, cols, vals), nil
}

// Section turns one row into a line section. NULL columns and the name
// column are left out so their options keep their defaults.
func Section(name string, cols []string, vals []sql.NullString) *config.Section {
	sec := &config.Section{Name: name, File: "realtime"}
	for i, c := range cols {
		if c == "name" || i >= len(vals) || !vals[i].Valid {
			continue
		}
		sec.Add(c, vals[i].String)
	}
	sec.Add("type", "line")
	return sec
}

// Close releases the connection pool.
func (s *Source) Close() error { return s.db.Close() }
