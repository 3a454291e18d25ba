package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TableRequirement names a table and the columns the service reads from it
type TableRequirement struct {
	Name    string
	Columns []string
}

// SchemaError describes a table that is absent or lacks required columns
type SchemaError struct {
	Table          string
	MissingTable   bool
	MissingColumns []string
}

func (e *SchemaError) Error() string {
	if e.MissingTable {
		return fmt.Sprintf("schema mismatch: table %q not found", e.Table)
	}
	return fmt.Sprintf("schema mismatch: table %q missing columns %s",
		e.Table, strings.Join(e.MissingColumns, ", "))
}

// IsTransient returns false; a dataset with the wrong shape stays wrong
func (e *SchemaError) IsTransient() bool {
	return false
}

// TableColumns lists the column names of table, lower-cased.
// A missing table yields an empty slice.
func (d *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	var query string
	switch d.DriverName() {
	case DriverSQLite:
		query = `SELECT name FROM pragma_table_info(?)`
	case DriverPostgres:
		query = `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ?
			ORDER BY ordinal_position
		`
	default:
		return nil, fmt.Errorf("schema introspection not supported for driver %q", d.DriverName())
	}

	var columns []string
	if err := d.SelectContext(ctx, "table_columns", &columns, query, table); err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", table, err)
	}

	for i, c := range columns {
		columns[i] = strings.ToLower(c)
	}
	return columns, nil
}

// ValidateSchema checks every requirement against the live schema and
// returns all mismatches joined, each a *SchemaError.
func (d *DB) ValidateSchema(ctx context.Context, requirements []TableRequirement) error {
	var errs []error

	for _, req := range requirements {
		columns, err := d.TableColumns(ctx, req.Name)
		if err != nil {
			return err
		}

		if len(columns) == 0 {
			errs = append(errs, &SchemaError{Table: req.Name, MissingTable: true})
			continue
		}

		present := make(map[string]struct{}, len(columns))
		for _, c := range columns {
			present[c] = struct{}{}
		}

		var missing []string
		for _, c := range req.Columns {
			if _, ok := present[strings.ToLower(c)]; !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, &SchemaError{Table: req.Name, MissingColumns: missing})
		}
	}

	return errors.Join(errs...)
}

// CountRows returns the number of rows in table. The name must come from
// a TableRequirement, never from user input.
func (d *DB) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := d.GetContext(ctx, "count_rows", &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}
