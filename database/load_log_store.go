// database/load_log_store.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gewnthar/surveyetl/models"
)

const loadLogTable = "survey_loads"

func (s *Store) ensureLoadLog(ctx context.Context) error {
	q := s.dialect.quote
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s INTEGER NOT NULL PRIMARY KEY,
		%s VARCHAR(255) NOT NULL,
		%s VARCHAR(255) NOT NULL,
		%s TEXT NOT NULL,
		%s VARCHAR(64) NOT NULL
	)`, q(loadLogTable), q("year"), q("survey_id"), q("archive_file"), q("table_names"), q("loaded_at"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", loadLogTable, err)
	}
	return nil
}

// LogSurveyLoad records a successful load of one survey year, replacing any
// earlier record for that year.
func (s *Store) LogSurveyLoad(ctx context.Context, load models.SurveyLoad) error {
	d := s.dialect

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", loadLogTable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.quote(loadLogTable), d.quote("year"), d.placeholders(1)), load.Year)
	if err != nil {
		return fmt.Errorf("failed to delete old load record for %d: %w", load.Year, err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (%s)",
		d.quote(loadLogTable), d.quote("year"), d.quote("survey_id"), d.quote("archive_file"), d.quote("table_names"), d.quote("loaded_at"),
		d.placeholders(5)),
		load.Year, load.SurveyID, load.ArchiveFile, load.Tables, load.LoadedAt.UTC().Format(time.RFC3339))
	if err != nil {
		log.Printf("ERROR Database: Failed to log load of survey %d: %v", load.Year, err)
		return fmt.Errorf("failed to log load of survey %d: %w", load.Year, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load record for %d: %w", load.Year, err)
	}
	log.Printf("Database: Successfully logged load of survey %d (%s)\n", load.Year, load.Tables)
	return nil
}

// GetSurveyLoads retrieves all load records ordered by year.
func (s *Store) GetSurveyLoads(ctx context.Context) ([]models.SurveyLoad, error) {
	d := s.dialect
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s ORDER BY %s",
		d.quote("year"), d.quote("survey_id"), d.quote("archive_file"), d.quote("table_names"), d.quote("loaded_at"),
		d.quote(loadLogTable), d.quote("year")))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", loadLogTable, err)
	}
	defer rows.Close()

	var loads []models.SurveyLoad
	for rows.Next() {
		var (
			l        models.SurveyLoad
			loadedAt string
		)
		if err := rows.Scan(&l.Year, &l.SurveyID, &l.ArchiveFile, &l.Tables, &loadedAt); err != nil {
			log.Printf("ERROR Database: Failed to scan %s row: %v", loadLogTable, err)
			continue
		}
		if l.LoadedAt, err = time.Parse(time.RFC3339, loadedAt); err != nil {
			log.Printf("WARN Database: Bad loaded_at %q for survey %d: %v", loadedAt, l.Year, err)
		}
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", loadLogTable, err)
	}
	return loads, nil
}
