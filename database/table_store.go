// database/table_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/gewnthar/surveyetl/models"
)

// ReplaceTable drops name and recreates it with one TEXT column per entry of
// columns, then inserts rows. The insert runs in one transaction; on MySQL the
// DDL commits implicitly, so a failed insert leaves an empty table.
func (s *Store) ReplaceTable(ctx context.Context, name string, columns []string, rows iter.Seq2[models.Row, error]) error {
	if len(columns) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}
	d := s.dialect

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for table %s: %w", name, err)
	}
	defer tx.Rollback()

	// Step 1: Drop the previous version of the table.
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.quote(name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}

	quoted := make([]string, len(columns))
	defs := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.quote(c)
		defs[i] = quoted[i] + " TEXT"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", d.quote(name), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	log.Printf("Database: Recreated table %s with %d columns\n", name, len(columns))

	// Step 2: Insert new rows
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(name), strings.Join(quoted, ", "), d.placeholders(len(columns))))
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement for table %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	count := 0
	for row, err := range rows {
		if err != nil {
			return err
		}
		for i := range args {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = sql.NullString{}
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to execute insert for row %d of table %s: %w", count+1, name, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction for table %s: %w", name, err)
	}
	log.Printf("Database: Successfully saved %d rows to %s\n", count, name)
	return nil
}

// TableExists reports whether name exists in the current schema.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExists, name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check for table %s: %w", name, err)
	}
	return n > 0, nil
}

// ReadTable returns the column names of name and an iterator over its rows.
// Each range over the iterator runs a fresh query.
func (s *Store) ReadTable(ctx context.Context, name string) ([]string, iter.Seq2[models.Row, error], error) {
	query := "SELECT * FROM " + s.dialect.quote(name)

	probe, err := s.db.QueryContext(ctx, query+" WHERE 1 = 0")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query table %s: %w", name, err)
	}
	columns, err := probe.Columns()
	probe.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns of table %s: %w", name, err)
	}

	seq := func(yield func(models.Row, error) bool) {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query table %s: %w", name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			row := make(models.Row, len(columns))
			dest := make([]any, len(columns))
			for i := range row {
				dest[i] = &row[i]
			}
			if err := rows.Scan(dest...); err != nil {
				yield(nil, fmt.Errorf("failed to scan row of table %s: %w", name, err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("error iterating rows of table %s: %w", name, err))
		}
	}
	return columns, seq, nil
}
