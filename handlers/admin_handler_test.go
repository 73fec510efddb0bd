package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/database"
	"github.com/gewnthar/surveyetl/models"
	"github.com/gewnthar/surveyetl/services"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, store services.Store, ping func(context.Context) error) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Survey.ArchiveDir = t.TempDir()
	cfg.Charts.OutputDir = filepath.Join(t.TempDir(), "charts")

	mux := http.NewServeMux()
	NewHandler(services.NewPipeline(cfg, nil, store), ping).Routes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, database.NewFlatFileStore(t.TempDir()), nil)
	res, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]string
	decode(t, res, &body)
	require.Equal(t, "ok", body["status"])

	down := newTestServer(t, database.NewFlatFileStore(t.TempDir()), func(context.Context) error { return errors.New("connection refused") })
	res, err = http.Get(down.URL + "/api/health")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestLoads(t *testing.T) {
	ctx := context.Background()
	store, err := database.Open(ctx, config.DatabaseConfig{Driver: "sqlite", DBName: filepath.Join(t.TempDir(), "surveys.db")})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.LogSurveyLoad(ctx, models.SurveyLoad{Year: 2021, SurveyID: "XYZ", ArchiveFile: "survey_results_XYZ_2021.zip", Tables: "survey_2021_responses", LoadedAt: time.Now()}))

	server := newTestServer(t, store, store.DB().PingContext)
	res, err := http.Get(server.URL + "/api/loads")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var loads []models.SurveyLoad
	decode(t, res, &loads)
	require.Len(t, loads, 1)
	require.Equal(t, "XYZ", loads[0].SurveyID)

	flat := newTestServer(t, database.NewFlatFileStore(t.TempDir()), nil)
	res, err = http.Get(flat.URL + "/api/loads")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRunTask(t *testing.T) {
	server := newTestServer(t, database.NewFlatFileStore(t.TempDir()), nil)

	// No archives downloaded: load succeeds with nothing to do.
	res, err := http.Post(server.URL+"/api/admin/tasks/load", "application/json", nil)
	require.NoError(t, err)
	var body map[string]string
	decode(t, res, &body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body["message"], "load")

	res, err = http.Post(server.URL+"/api/admin/tasks/deploy", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	// charts needs a metadata table first.
	res, err = http.Post(server.URL+"/api/admin/tasks/charts", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)

	res, err = http.Get(server.URL + "/api/admin/tasks/load")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
