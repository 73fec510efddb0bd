package database

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/models"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DBName: filepath.Join(t.TempDir(), "db", "surveys.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seqOf(rows ...models.Row) iter.Seq2[models.Row, error] {
	return func(yield func(models.Row, error) bool) {
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

func text(values ...string) models.Row {
	row := make(models.Row, len(values))
	for i, v := range values {
		if v != "<NULL>" {
			row[i] = sql.NullString{String: v, Valid: true}
		}
	}
	return row
}

type tableStore interface {
	ReplaceTable(ctx context.Context, name string, columns []string, rows iter.Seq2[models.Row, error]) error
	TableExists(ctx context.Context, name string) (bool, error)
	ReadTable(ctx context.Context, name string) ([]string, iter.Seq2[models.Row, error], error)
}

func readAll(t *testing.T, store tableStore, name string) ([]string, []models.Row) {
	t.Helper()
	columns, rows, err := store.ReadTable(context.Background(), name)
	require.NoError(t, err)
	var got []models.Row
	for row, err := range rows {
		require.NoError(t, err)
		got = append(got, row)
	}
	return columns, got
}

func testReplaceTable(t *testing.T, store tableStore) {
	ctx := context.Background()

	exists, err := store.TableExists(ctx, "survey_2021_responses")
	require.NoError(t, err)
	require.False(t, exists)

	columns := []string{"respondent", "main_branch", "col_2_unnamed"}
	require.NoError(t, store.ReplaceTable(ctx, "survey_2021_responses", columns, seqOf(
		text("1", "I am a developer by profession", "<NULL>"),
		text("2", "<NULL>", "x"),
	)))

	exists, err = store.TableExists(ctx, "survey_2021_responses")
	require.NoError(t, err)
	require.True(t, exists)

	gotColumns, rows := readAll(t, store, "survey_2021_responses")
	require.Equal(t, columns, gotColumns)
	require.Equal(t, []models.Row{
		text("1", "I am a developer by profession", "<NULL>"),
		text("2", "<NULL>", "x"),
	}, rows)

	// A second load fully replaces the first.
	require.NoError(t, store.ReplaceTable(ctx, "survey_2021_responses", []string{"respondent"}, seqOf(text("9"))))
	gotColumns, rows = readAll(t, store, "survey_2021_responses")
	require.Equal(t, []string{"respondent"}, gotColumns)
	require.Equal(t, []models.Row{text("9")}, rows)
}

func TestStoreReplaceTable(t *testing.T) {
	testReplaceTable(t, openTestStore(t))
}

func TestFlatFileStoreReplaceTable(t *testing.T) {
	testReplaceTable(t, NewFlatFileStore(filepath.Join(t.TempDir(), "output")))
}

func TestStoreReplaceTableIteratorError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceTable(ctx, "survey_2020_responses", []string{"a"}, seqOf(text("old"))))

	decodeErr := errors.New("bad row")
	rows := func(yield func(models.Row, error) bool) {
		if !yield(text("new"), nil) {
			return
		}
		yield(nil, decodeErr)
	}
	err := store.ReplaceTable(ctx, "survey_2020_responses", []string{"a"}, rows)
	require.ErrorIs(t, err, decodeErr)

	// The transaction rolled back, so the previous table is intact.
	_, got := readAll(t, store, "survey_2020_responses")
	require.Equal(t, []models.Row{text("old")}, got)
}

func TestStoreQuotesIdentifiers(t *testing.T) {
	store := openTestStore(t)
	columns := []string{"order", "select", `we"ird`}
	require.NoError(t, store.ReplaceTable(context.Background(), "survey_2019_responses", columns, seqOf(text("1", "2", "3"))))

	gotColumns, rows := readAll(t, store, "survey_2019_responses")
	require.Equal(t, columns, gotColumns)
	require.Len(t, rows, 1)
}

func TestStoreSurveyLoads(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	loadedAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	require.NoError(t, store.LogSurveyLoad(ctx, models.SurveyLoad{Year: 2021, SurveyID: "XYZ", ArchiveFile: "survey_results_XYZ_2021.zip", Tables: "survey_2021_responses", LoadedAt: loadedAt}))
	require.NoError(t, store.LogSurveyLoad(ctx, models.SurveyLoad{Year: 2019, SurveyID: "abc", ArchiveFile: "survey_results_abc_2019.zip", Tables: "survey_2019_responses", LoadedAt: loadedAt}))
	require.NoError(t, store.LogSurveyLoad(ctx, models.SurveyLoad{Year: 2021, SurveyID: "XYZ", ArchiveFile: "survey_results_XYZ_2021.zip", Tables: "survey_2021_responses,survey_2021_questions", LoadedAt: loadedAt.Add(time.Hour)}))

	loads, err := store.GetSurveyLoads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	require.Equal(t, 2019, loads[0].Year)
	require.Equal(t, 2021, loads[1].Year)
	require.Equal(t, "survey_2021_responses,survey_2021_questions", loads[1].Tables)
	require.True(t, loads[1].LoadedAt.Equal(loadedAt.Add(time.Hour)))
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.DatabaseConfig{Driver: "mysql", User: "so", Password: "pw", Host: "db", Port: "3306", DBName: "surveys"})
	require.NoError(t, err)
	require.Equal(t, "so:pw@tcp(db:3306)/surveys?parseTime=true", dsn)

	dsn, err = DSN(config.DatabaseConfig{Driver: "postgres", User: "so", Password: "p@ss", Host: "db", Port: "5432", DBName: "surveys", SSLMode: "disable"})
	require.NoError(t, err)
	require.Equal(t, "postgres://so:p%40ss@db:5432/surveys?sslmode=disable", dsn)

	dsn, err = DSN(config.DatabaseConfig{Driver: "sqlite", DBName: "data/surveys.db"})
	require.NoError(t, err)
	require.Equal(t, "data/surveys.db?_pragma=busy_timeout(5000)", dsn)

	_, err = DSN(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestDialectPlaceholders(t *testing.T) {
	require.Equal(t, "$1, $2, $3", dialects["postgres"].placeholders(3))
	require.Equal(t, "?, ?", dialects["mysql"].placeholders(2))
	require.Equal(t, "`a``b`", dialects["mysql"].quote("a`b"))
	require.Equal(t, `"main_branch"`, dialects["sqlite"].quote("main_branch"))
}
