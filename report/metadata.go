// report/metadata.go
package report

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gewnthar/surveyetl/models"
	"github.com/gewnthar/surveyetl/survey"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jszwec/csvutil"
)

// MetadataTable holds the cross-year column summary.
const MetadataTable = "metadata"

// MetadataColumns is the column order of MetadataTable.
var MetadataColumns = []string{
	"year", "column_name", "question_text", "nulls", "uniques",
	"response_1", "response_2", "response_3", "responses",
}

const sampleSize = 3

type columnStats struct {
	nulls   int
	uniques map[string]struct{}
	samples []string
}

// Summarize streams the rows of one responses table and returns one
// ColumnMetadata per column, in column order. Question text is matched by
// normalized column name and left empty when the column has no question.
func Summarize(year int, columns []string, rows iter.Seq2[models.Row, error], questions []models.Question) ([]models.ColumnMetadata, error) {
	stats := make([]columnStats, len(columns))
	for i := range stats {
		stats[i].uniques = make(map[string]struct{})
	}

	total := 0
	for row, err := range rows {
		if err != nil {
			return nil, fmt.Errorf("failed to read responses for %d: %w", year, err)
		}
		for i := range stats {
			st := &stats[i]
			var cell string
			valid := i < len(row) && row[i].Valid
			if valid {
				cell = row[i].String
				st.uniques[cell] = struct{}{}
			} else {
				st.nulls++
			}
			if total < sampleSize {
				st.samples = append(st.samples, cell)
			}
		}
		total++
	}

	texts := make(map[string]string, len(questions))
	for _, q := range questions {
		if _, ok := texts[q.ColumnName]; !ok {
			texts[q.ColumnName] = q.QuestionText
		}
	}

	meta := make([]models.ColumnMetadata, len(columns))
	for i, column := range columns {
		st := stats[i]
		m := models.ColumnMetadata{
			Year:         year,
			ColumnName:   column,
			QuestionText: texts[column],
			Uniques:      len(st.uniques),
			Responses:    total,
		}
		if total > 0 {
			m.Nulls = float64(st.nulls) / float64(total)
		}
		samples := append(st.samples, make([]string, sampleSize)...)
		m.Response1, m.Response2, m.Response3 = samples[0], samples[1], samples[2]
		meta[i] = m
	}
	return meta, nil
}

// SummarizeSurvey summarizes the persisted tables of one loaded survey.
func SummarizeSurvey(ctx context.Context, s *survey.Survey, r survey.TableReader) ([]models.ColumnMetadata, error) {
	// Questions are read first so the responses cursor is the only one open.
	questions, err := s.Questions(ctx, r)
	if err != nil {
		return nil, err
	}
	columns, rows, err := s.Responses(ctx, r)
	if err != nil {
		return nil, err
	}
	meta, err := Summarize(s.Year, columns, rows, questions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", survey.ErrPersistence, err)
	}
	log.Printf("Report: Summarized %d columns of %s (%d questions)\n", len(meta), s.ResponsesTable(), len(questions))
	return meta, nil
}

// MetadataRows converts metadata to table rows in MetadataColumns order.
func MetadataRows(meta []models.ColumnMetadata) iter.Seq2[models.Row, error] {
	return func(yield func(models.Row, error) bool) {
		for _, m := range meta {
			row := models.Row{
				valid(strconv.Itoa(m.Year)),
				valid(m.ColumnName),
				valid(m.QuestionText),
				valid(strconv.FormatFloat(m.Nulls, 'f', -1, 64)),
				valid(strconv.Itoa(m.Uniques)),
				valid(m.Response1),
				valid(m.Response2),
				valid(m.Response3),
				valid(strconv.Itoa(m.Responses)),
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ReadMetadata loads the metadata table back from storage.
func ReadMetadata(ctx context.Context, r survey.TableReader) ([]models.ColumnMetadata, error) {
	exists, err := r.TableExists(ctx, MetadataTable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", survey.ErrPersistence, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: table %s does not exist, run the metadata task first", survey.ErrPersistence, MetadataTable)
	}

	columns, rows, err := r.ReadTable(ctx, MetadataTable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", survey.ErrPersistence, err)
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	for _, c := range MetadataColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: table %s has no column %s", survey.ErrPersistence, MetadataTable, c)
		}
	}

	var meta []models.ColumnMetadata
	for row, err := range rows {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", survey.ErrPersistence, err)
		}
		get := func(c string) string { return row[idx[c]].String }

		m := models.ColumnMetadata{
			ColumnName:   get("column_name"),
			QuestionText: get("question_text"),
			Response1:    get("response_1"),
			Response2:    get("response_2"),
			Response3:    get("response_3"),
		}
		if m.Year, err = strconv.Atoi(get("year")); err != nil {
			return nil, fmt.Errorf("failed to parse metadata year %q: %w", get("year"), err)
		}
		if m.Nulls, err = strconv.ParseFloat(get("nulls"), 64); err != nil {
			return nil, fmt.Errorf("failed to parse metadata nulls %q: %w", get("nulls"), err)
		}
		if m.Uniques, err = strconv.Atoi(get("uniques")); err != nil {
			return nil, fmt.Errorf("failed to parse metadata uniques %q: %w", get("uniques"), err)
		}
		if m.Responses, err = strconv.Atoi(get("responses")); err != nil {
			return nil, fmt.Errorf("failed to parse metadata responses %q: %w", get("responses"), err)
		}
		meta = append(meta, m)
	}
	return meta, nil
}

// ExportCSV writes metadata to path with a header row.
func ExportCSV(path string, meta []models.ColumnMetadata) error {
	data, err := csvutil.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata CSV: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata CSV %s: %w", path, err)
	}
	log.Printf("Report: Exported %d metadata rows to %s\n", len(meta), path)
	return nil
}

// RenderTable prints metadata as a terminal table.
func RenderTable(w io.Writer, meta []models.ColumnMetadata) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Year", "Column", "Question", "Nulls", "Uniques", "Response 1"})
	for _, m := range meta {
		t.AppendRow(table.Row{
			m.Year,
			m.ColumnName,
			truncate(m.QuestionText, 60),
			fmt.Sprintf("%.1f%%", m.Nulls*100),
			m.Uniques,
			truncate(m.Response1, 30),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func valid(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
