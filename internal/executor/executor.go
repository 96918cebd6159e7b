// Package executor runs generated statements against a SQL database.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver.
	_ "github.com/lib/pq"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultMaxRows bounds how many rows one execution reads.
const DefaultMaxRows = 1000

// Result is a successful execution.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
	// Truncated is set when more rows existed than were read.
	Truncated bool
}

// ExecError is an engine rejection of a statement. Its message is the raw
// engine message.
type ExecError struct {
	Statement string
	Err       error
}

func (e *ExecError) Error() string { return e.Err.Error() }

func (e *ExecError) Unwrap() error { return e.Err }

// Executor is the query execution collaborator.
type Executor interface {
	// Execute runs statement once. Engine rejections are *ExecError.
	Execute(ctx context.Context, statement string) (*Result, error)
}

// DB executes statements on a database/sql connection pool.
type DB struct {
	db      *sql.DB
	driver  string
	maxRows int
}

// Open connects to dsn with driver, one of DriverSQLite or DriverPostgres.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported executor driver: %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return New(db, driver), nil
}

// New wraps an existing pool.
func New(db *sql.DB, driver string) *DB {
	return &DB{db: db, driver: driver, maxRows: DefaultMaxRows}
}

// WithMaxRows returns a copy of d reading at most n rows per execution.
func (d *DB) WithMaxRows(n int) *DB {
	c := *d
	if n > 0 {
		c.maxRows = n
	}
	return &c
}

// Dialect names the SQL dialect statements must be written in.
func (d *DB) Dialect() string {
	if d.driver == DriverPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Execute runs statement and reads up to the row limit.
func (d *DB) Execute(ctx context.Context, statement string) (*Result, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, &ExecError{Statement: statement, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{Statement: statement, Err: err}
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) == d.maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecError{Statement: statement, Err: err}
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Statement: statement, Err: err}
	}
	res.Duration = time.Since(start)
	return res, nil
}
