package survey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/models"
	"github.com/stretchr/testify/require"
)

const indexPage = `<html><body>
<div class="survey" data-year="2021">
  <h2>2021 Developer Survey</h2>
  <a href="https://drive.google.com/uc?export=download&id=XYZ"><span>Download Full Data Set (CSV)</span></a>
</div>
</body></html>`

type fakeFetcher struct {
	pages map[string]string
	err   error
}

func (f fakeFetcher) FetchPage(_ context.Context, pageURL string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[pageURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(page), nil
}

func testSurveyConfig(t *testing.T) config.SurveyConfig {
	t.Helper()
	cfg := config.Default().Survey
	cfg.IndexURL = "https://example.test/survey"
	cfg.ArchiveDir = t.TempDir()
	return cfg
}

func collect(t *testing.T, seq func(func(models.Descriptor, error) bool)) ([]models.Descriptor, []error) {
	t.Helper()
	var (
		got  []models.Descriptor
		errs []error
	)
	for d, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, d)
	}
	return got, errs
}

func TestParseIndex(t *testing.T) {
	got, err := ParseIndex(strings.NewReader(indexPage), "Download Full Data Set (CSV)")
	require.NoError(t, err)
	require.Equal(t, []models.Descriptor{{ID: "XYZ", Year: 2021}}, got)
}

func TestParseIndexMultipleYears(t *testing.T) {
	page := `<ul>
<li data-year="2020"><a href="/dl?id=b2020">Download Full Data Set (CSV)</a></li>
<li data-year="2019"><a href="/dl?id=a2019">Download Full Data Set (CSV)</a></li>
<li data-year="2019"><a href="/dl?id=a2019">Download Full Data Set (CSV)</a></li>
<li data-year="2018"><a href="/dl?id=c2018">Download results (PDF)</a></li>
</ul>`
	got, err := ParseIndex(strings.NewReader(page), "Download Full Data Set (CSV)")
	require.NoError(t, err)
	require.Equal(t, []models.Descriptor{{ID: "b2020", Year: 2020}, {ID: "a2019", Year: 2019}}, got)
}

func TestParseIndexNoMatches(t *testing.T) {
	got, err := ParseIndex(strings.NewReader("<p>nothing here</p>"), "Download Full Data Set (CSV)")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestParseIndexMissingYear(t *testing.T) {
	page := `<a href="/dl?id=XYZ">Download Full Data Set (CSV)</a>`
	_, err := ParseIndex(strings.NewReader(page), "Download Full Data Set (CSV)")
	require.Error(t, err)
}

func TestCatalogRemote(t *testing.T) {
	cfg := testSurveyConfig(t)
	catalog := NewCatalog(cfg, config.DiscoveryStrict, fakeFetcher{pages: map[string]string{cfg.IndexURL: indexPage}})

	got, errs := collect(t, catalog.Remote(context.Background()))
	require.Empty(t, errs)
	require.Equal(t, []models.Descriptor{{ID: "XYZ", Year: 2021}}, got)
}

func TestCatalogRemoteUnreachable(t *testing.T) {
	cfg := testSurveyConfig(t)
	catalog := NewCatalog(cfg, config.DiscoveryStrict, fakeFetcher{err: errors.New("connection refused")})

	got, errs := collect(t, catalog.Remote(context.Background()))
	require.Empty(t, got)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrDiscovery)
}

func TestArchiveFilenameRoundTrip(t *testing.T) {
	d, err := ParseArchiveFilename("survey_results_abc123_2018.zip")
	require.NoError(t, err)
	require.Equal(t, models.Descriptor{ID: "abc123", Year: 2018}, d)
	require.Equal(t, "survey_results_abc123_2018.zip", ArchiveFilename(d))

	d, err = ParseArchiveFilename("survey_results_1a_b-c_2020.zip")
	require.NoError(t, err)
	require.Equal(t, models.Descriptor{ID: "1a_b-c", Year: 2020}, d)
}

func TestParseArchiveFilenameMalformed(t *testing.T) {
	for _, name := range []string{
		"notes.txt",
		"survey_results_2018.zip",
		"survey_results_abc_20x8.zip",
		"survey_results_abc2018.zip",
		"survey_results_.zip",
	} {
		_, err := ParseArchiveFilename(name)
		require.ErrorIs(t, err, ErrDiscovery, name)
	}
}

func TestCatalogOffline(t *testing.T) {
	cfg := testSurveyConfig(t)
	for _, name := range []string{"survey_results_abc123_2018.zip", "survey_results_def456_2019.zip", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.ArchiveDir, name), []byte("zip"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(cfg.ArchiveDir, "tmp"), 0o755))

	strict := NewCatalog(cfg, config.DiscoveryStrict, nil)
	got, errs := collect(t, strict.Offline())
	require.Equal(t, []models.Descriptor{{ID: "abc123", Year: 2018}, {ID: "def456", Year: 2019}}, got)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrDiscovery)

	lenient := NewCatalog(cfg, config.DiscoveryLenient, nil)
	got, errs = collect(t, lenient.Offline())
	require.Len(t, got, 2)
	require.Empty(t, errs)
}

func TestCatalogOfflineMissingDir(t *testing.T) {
	cfg := testSurveyConfig(t)
	cfg.ArchiveDir = filepath.Join(cfg.ArchiveDir, "missing")

	_, errs := collect(t, NewCatalog(cfg, config.DiscoveryStrict, nil).Offline())
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrDiscovery)
}
