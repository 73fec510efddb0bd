package report

import (
	"bytes"
	"context"
	"database/sql"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gewnthar/surveyetl/database"
	"github.com/gewnthar/surveyetl/models"
	"github.com/stretchr/testify/require"
)

func rowsOf(values ...[]string) iter.Seq2[models.Row, error] {
	return func(yield func(models.Row, error) bool) {
		for _, v := range values {
			row := make(models.Row, len(v))
			for i, s := range v {
				if s != "<NULL>" {
					row[i] = sql.NullString{String: s, Valid: true}
				}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	columns := []string{"respondent", "main_branch", "col_2_unnamed"}
	rows := rowsOf(
		[]string{"1", "Dev", "<NULL>"},
		[]string{"2", "<NULL>", "<NULL>"},
		[]string{"3", "Dev", "<NULL>"},
		[]string{"4", "Student", "x"},
	)
	questions := []models.Question{
		{ColumnName: "main_branch", QuestionText: "Which of the following options best describes you today?"},
		{ColumnName: "respondent", QuestionText: "Randomized respondent ID number"},
	}

	meta, err := Summarize(2021, columns, rows, questions)
	require.NoError(t, err)
	require.Equal(t, []models.ColumnMetadata{
		{Year: 2021, ColumnName: "respondent", QuestionText: "Randomized respondent ID number", Nulls: 0, Uniques: 4, Response1: "1", Response2: "2", Response3: "3", Responses: 4},
		{Year: 2021, ColumnName: "main_branch", QuestionText: "Which of the following options best describes you today?", Nulls: 0.25, Uniques: 2, Response1: "Dev", Response2: "", Response3: "Dev", Responses: 4},
		{Year: 2021, ColumnName: "col_2_unnamed", Nulls: 0.75, Uniques: 1, Responses: 4},
	}, meta)
}

func TestSummarizeEmptyTable(t *testing.T) {
	meta, err := Summarize(2017, []string{"respondent"}, rowsOf(), nil)
	require.NoError(t, err)
	require.Equal(t, []models.ColumnMetadata{{Year: 2017, ColumnName: "respondent"}}, meta)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := database.NewFlatFileStore(t.TempDir())
	ctx := context.Background()
	meta := []models.ColumnMetadata{
		{Year: 2020, ColumnName: "respondent", QuestionText: "ID", Nulls: 0, Uniques: 2, Response1: "1", Response2: "2", Responses: 2},
		{Year: 2021, ColumnName: "main_branch", QuestionText: "Branch", Nulls: 0.5, Uniques: 1, Response1: "Dev", Responses: 2},
	}

	_, err := ReadMetadata(ctx, store)
	require.Error(t, err)

	require.NoError(t, store.ReplaceTable(ctx, MetadataTable, MetadataColumns, MetadataRows(meta)))
	got, err := ReadMetadata(ctx, store)
	require.NoError(t, err)
	require.Equal(t, meta, got)
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metadata.csv")
	meta := []models.ColumnMetadata{{Year: 2021, ColumnName: "main_branch", QuestionText: "Which, if any?", Nulls: 0.25, Uniques: 2, Response1: "Dev", Responses: 4}}
	require.NoError(t, ExportCSV(path, meta))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Join(MetadataColumns, ","), lines[0])
	require.Equal(t, `2021,main_branch,"Which, if any?",0.25,2,Dev,,,4`, lines[1])
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []models.ColumnMetadata{{Year: 2021, ColumnName: "main_branch", Nulls: 0.25, Uniques: 2}})
	out := buf.String()
	require.Contains(t, out, "main_branch")
	require.Contains(t, out, "25.0%")
}

func TestBuiltInCharts(t *testing.T) {
	meta := []models.ColumnMetadata{
		{Year: 2021, ColumnName: "a", Nulls: 0.5, Responses: 80},
		{Year: 2019, ColumnName: "a", Nulls: 0.2, Responses: 90},
		{Year: 2021, ColumnName: "b", Nulls: 0.1, Responses: 80},
		{Year: 2019, ColumnName: "b", Nulls: 0.4, Responses: 90},
	}

	responses := ResponsesPerYear(meta)
	require.Equal(t, ChartBar, responses.Kind)
	require.Equal(t, []string{"2019", "2021"}, responses.Labels)
	require.Equal(t, []float64{90, 80}, responses.Values)

	nulls := NullRatePerYear(meta)
	require.Equal(t, ChartLine, nulls.Kind)
	require.Equal(t, []string{"2019", "2021"}, nulls.Labels)
	require.InDeltaSlice(t, []float64{0.3, 0.3}, nulls.Values, 1e-9)
}

func TestFieldDistribution(t *testing.T) {
	columns := []string{"respondent", "language_worked_with"}
	rows := rowsOf(
		[]string{"1", "Go;Python"},
		[]string{"2", "Go"},
		[]string{"3", "<NULL>"},
		[]string{"4", "Rust;Go;Python"},
		[]string{"5", "C"},
	)

	c, err := FieldDistribution(2019, "language_worked_with", 2, columns, rows)
	require.NoError(t, err)
	require.Equal(t, ChartPie, c.Kind)
	require.Equal(t, []string{"Go", "Python", "Other"}, c.Labels)
	require.Equal(t, []float64{3, 2, 2}, c.Values)

	_, err = FieldDistribution(2019, "missing", 2, columns, rowsOf())
	require.Error(t, err)
}

func TestWriteChart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	c := Chart{Name: "responses-per-year", Title: "Responses per year", Kind: ChartBar, Series: "responses", Labels: []string{"2019"}, Values: []float64{90}}

	path, err := WriteChart(dir, c)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "responses-per-year.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "echarts")
	require.Contains(t, string(data), "Responses per year")

	for _, kind := range []ChartKind{ChartLine, ChartPie} {
		c.Kind = kind
		var buf bytes.Buffer
		require.NoError(t, Render(c, &buf))
		require.Contains(t, buf.String(), "Responses per year")
	}

	c.Kind = "radar"
	_, err = WriteChart(dir, c)
	require.Error(t, err)
}
