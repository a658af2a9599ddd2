package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// ConnStats is a JSON view of the pool counters.
type ConnStats struct {
	Total       int32  `json:"total"`
	Idle        int32  `json:"idle"`
	InUse       int32  `json:"in_use"`
	Max         int32  `json:"max"`
	Acquires    int64  `json:"acquires"`
	AcquireWait string `json:"acquire_wait"`
}

func connStats(stat *pgxpool.Stat) ConnStats {
	return ConnStats{
		Total:       stat.TotalConns(),
		Idle:        stat.IdleConns(),
		InUse:       stat.AcquiredConns(),
		Max:         stat.MaxConns(),
		Acquires:    stat.AcquireCount(),
		AcquireWait: stat.AcquireDuration().String(),
	}
}

// Report is the body of GET /health/db.
type Report struct {
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Schema        string    `json:"schema"`
	SchemaVersion int       `json:"schema_version"`
	Conns         ConnStats `json:"conns"`
}

// Healthy reports whether the database answered and has at least one
// migration applied.
func (r Report) Healthy() bool { return r.Status == "ok" }

func newReport(schema string, conns ConnStats, version int, err error) Report {
	r := Report{Status: "ok", Schema: schema, SchemaVersion: version, Conns: conns}
	switch {
	case err != nil:
		r.Status = "unavailable"
		r.Error = err.Error()
	case version == 0:
		r.Status = "unmigrated"
	}
	return r
}

// Checker probes the pool and the migration table of one schema.
type Checker struct {
	pool   *pgxpool.Pool
	schema string
}

func NewChecker(pool *pgxpool.Pool, schema string) *Checker {
	return &Checker{pool: pool, schema: schema}
}

// Check pings the database and reads the highest applied migration version.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	version, err := c.schemaVersion(ctx)
	return newReport(c.schema, connStats(c.pool.Stat()), version, err)
}

func (c *Checker) schemaVersion(ctx context.Context) (int, error) {
	if err := c.pool.Ping(ctx); err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	if !schemaPattern.MatchString(c.schema) {
		return 0, fmt.Errorf("invalid schema name %q", c.schema)
	}
	var version *int
	err := c.pool.QueryRow(ctx, fmt.Sprintf(`SELECT MAX(version) FROM %s.schema_migrations`, c.schema)).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// Handler serves the report, answering 503 unless the check is healthy.
func (c *Checker) Handler() echo.HandlerFunc {
	return func(ec echo.Context) error {
		report := c.Check(ec.Request().Context())
		if !report.Healthy() {
			return ec.JSON(http.StatusServiceUnavailable, report)
		}
		return ec.JSON(http.StatusOK, report)
	}
}
