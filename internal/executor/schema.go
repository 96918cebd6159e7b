package executor

import (
	"context"
	"fmt"
	"strings"
)

// Column describes one table column.
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

// Table describes one user table.
type Table struct {
	Name    string
	Columns []Column
}

// Tables lists the user tables and their columns, ordered by name.
func (d *DB) Tables(ctx context.Context) ([]Table, error) {
	if d.driver == DriverPostgres {
		return d.postgresTables(ctx)
	}
	return d.sqliteTables(ctx)
}

func (d *DB) sqliteTables(ctx context.Context) ([]Table, error) {
	names, err := d.strings(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		rows, err := d.db.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?)`, name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		t := Table{Name: name}
		for rows.Next() {
			var c Column
			if err := rows.Scan(&c.Name, &c.Type, &c.NotNull); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan column: %w", err)
			}
			t.Columns = append(t.Columns, c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (d *DB) postgresTables(ctx context.Context) ([]Table, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable = 'NO'
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var (
			table string
			c     Column
		)
		if err := rows.Scan(&table, &c.Name, &c.Type, &c.NotNull); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, Table{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, c)
	}
	return tables, rows.Err()
}

func (d *DB) strings(ctx context.Context, query string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Schema renders the user tables as prompt context.
func (d *DB) Schema(ctx context.Context) (string, error) {
	tables, err := d.Tables(ctx)
	if err != nil {
		return "", err
	}
	return RenderSchema(d.Dialect(), tables), nil
}

// RenderSchema formats tables as plain text for a generation prompt.
func RenderSchema(dialect string, tables []Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s database schema:\n", dialect)
	if len(tables) == 0 {
		b.WriteString("(no tables)\n")
	}
	for _, t := range tables {
		fmt.Fprintf(&b, "\nTable: %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)", c.Name, strings.ToLower(c.Type))
			if c.NotNull {
				b.WriteString(" NOT NULL")
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
