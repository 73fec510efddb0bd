// services/pipeline.go
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/models"
	"github.com/gewnthar/surveyetl/report"
	"github.com/gewnthar/surveyetl/survey"
)

// Fetcher retrieves the index page and survey archives.
type Fetcher interface {
	survey.PageFetcher
	survey.Downloader
}

// Store is an output target that tables can be written to and read back from.
type Store interface {
	survey.TableWriter
	survey.TableReader
}

// LoadLogger is implemented by stores that keep a survey_loads table.
type LoadLogger interface {
	LogSurveyLoad(ctx context.Context, load models.SurveyLoad) error
	GetSurveyLoads(ctx context.Context) ([]models.SurveyLoad, error)
}

// ChartPublisher uploads the rendered charts of a directory.
type ChartPublisher interface {
	PublishDir(ctx context.Context, dir string) ([]string, error)
}

// ErrNoLoadLog is returned by Loads when the output target keeps no load log.
var ErrNoLoadLog = errors.New("output target does not keep a load log")

// Pipeline runs the survey tasks against one configuration.
type Pipeline struct {
	cfg       *config.Config
	fetcher   Fetcher
	store     Store
	publisher ChartPublisher
	now       func() time.Time
}

func NewPipeline(cfg *config.Config, fetcher Fetcher, store Store) *Pipeline {
	return &Pipeline{cfg: cfg, fetcher: fetcher, store: store, now: time.Now}
}

// SetPublisher sets where PublishCharts uploads to.
func (p *Pipeline) SetPublisher(publisher ChartPublisher) {
	p.publisher = publisher
}

func (p *Pipeline) catalog() *survey.Catalog {
	return survey.NewCatalog(p.cfg.Survey, p.cfg.Pipeline.DiscoveryMode, p.fetcher)
}

func (p *Pipeline) since(d models.Descriptor) bool {
	return d.Year >= p.cfg.Survey.Since
}

// forEach runs fn for every descriptor of seq accepted by keep. Discovery
// errors and fn failures are handled by the continuation policy: abort
// returns the first one, skip logs it and returns all of them joined.
func (p *Pipeline) forEach(ctx context.Context, task string, seq iter.Seq2[models.Descriptor, error], keep func(models.Descriptor) bool, fn func(*survey.Survey) error) error {
	var errs []error
	handled := 0
	for d, err := range seq {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err == nil && keep != nil && !keep(d) {
			continue
		}
		if err == nil {
			if err = fn(survey.New(d, p.cfg.Survey)); err != nil {
				err = fmt.Errorf("failed to %s survey %d: %w", task, d.Year, err)
			}
			handled++
		}
		if err == nil {
			continue
		}
		if p.cfg.Pipeline.OnError == config.ContinueAbort {
			return err
		}
		log.Printf("ERROR Service: %v (continuing)\n", err)
		errs = append(errs, err)
	}
	log.Printf("Service: %s finished for %d surveys with %d errors\n", task, handled, len(errs))
	return errors.Join(errs...)
}

// Surveys lists the catalog, either the remote index or the archives already
// downloaded, sorted by year.
func (p *Pipeline) Surveys(ctx context.Context, downloaded bool) ([]*survey.Survey, error) {
	seq := p.catalog().Remote(ctx)
	if downloaded {
		seq = p.catalog().Offline()
	}

	var (
		surveys []*survey.Survey
		errs    []error
	)
	for d, err := range seq {
		if err != nil {
			if p.cfg.Pipeline.OnError == config.ContinueAbort {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		surveys = append(surveys, survey.New(d, p.cfg.Survey))
	}
	sort.SliceStable(surveys, func(i, j int) bool { return surveys[i].Year < surveys[j].Year })
	return surveys, errors.Join(errs...)
}

// DownloadAll downloads every survey on the index published in or after the
// configured since year.
func (p *Pipeline) DownloadAll(ctx context.Context) error {
	log.Printf("Service: Downloading surveys since %d from %s\n", p.cfg.Survey.Since, p.cfg.Survey.IndexURL)
	return p.forEach(ctx, "download", p.catalog().Remote(ctx), p.since, func(s *survey.Survey) error {
		if err := s.Download(ctx, p.fetcher); err != nil {
			return err
		}
		log.Printf("Service: Finished downloading survey from %d (%s)\n", s.Year, s.ID)
		return nil
	})
}

// LoadAll loads every downloaded archive into the output target and records
// each successful load when the target keeps a load log.
func (p *Pipeline) LoadAll(ctx context.Context) error {
	logger, hasLog := p.store.(LoadLogger)
	return p.forEach(ctx, "load", p.catalog().Offline(), nil, func(s *survey.Survey) error {
		tables, err := s.Load(ctx, p.store)
		if err != nil {
			return err
		}
		if hasLog {
			err := logger.LogSurveyLoad(ctx, models.SurveyLoad{
				Year:        s.Year,
				SurveyID:    s.ID,
				ArchiveFile: survey.ArchiveFilename(s.Descriptor),
				Tables:      strings.Join(tables, ","),
				LoadedAt:    p.now(),
			})
			if err != nil {
				return fmt.Errorf("%w: %w", survey.ErrPersistence, err)
			}
		}
		log.Printf("Service: Finished extracting survey from %d (%s)\n", s.Year, s.ID)
		return nil
	})
}

// BuildMetadata summarizes every loaded survey since the configured year and
// replaces the metadata table. With the skip policy the table holds the
// years that succeeded and the failures are returned joined.
func (p *Pipeline) BuildMetadata(ctx context.Context) ([]models.ColumnMetadata, error) {
	var meta []models.ColumnMetadata
	runErr := p.forEach(ctx, "summarize", p.catalog().Offline(), p.since, func(s *survey.Survey) error {
		m, err := report.SummarizeSurvey(ctx, s, p.store)
		if err != nil {
			return err
		}
		meta = append(meta, m...)
		return nil
	})
	if runErr != nil && p.cfg.Pipeline.OnError == config.ContinueAbort {
		return nil, runErr
	}

	sort.SliceStable(meta, func(i, j int) bool { return meta[i].Year < meta[j].Year })
	if err := p.store.ReplaceTable(ctx, report.MetadataTable, report.MetadataColumns, report.MetadataRows(meta)); err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("%w: failed to replace table %s: %w", survey.ErrPersistence, report.MetadataTable, err))
	}
	log.Printf("Service: Saved %d metadata rows\n", len(meta))

	if p.cfg.Output.MetadataCSV != "" {
		if err := report.ExportCSV(p.cfg.Output.MetadataCSV, meta); err != nil {
			return meta, errors.Join(runErr, err)
		}
	}
	return meta, runErr
}

// RenderCharts renders the built in charts from the metadata table and the
// responses of the latest summarized year. It returns the written files.
func (p *Pipeline) RenderCharts(ctx context.Context) ([]string, error) {
	meta, err := report.ReadMetadata(ctx, p.store)
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("metadata table is empty, load and summarize surveys first")
	}

	dir := p.cfg.Charts.OutputDir
	var written []string
	for _, c := range []report.Chart{report.ResponsesPerYear(meta), report.NullRatePerYear(meta)} {
		path, err := report.WriteChart(dir, c)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	latest := meta[0].Year
	for _, m := range meta {
		latest = max(latest, m.Year)
	}
	s := survey.New(models.Descriptor{Year: latest}, p.cfg.Survey)
	columns, rows, err := s.Responses(ctx, p.store)
	if err != nil {
		return written, err
	}
	pie, err := report.FieldDistribution(latest, p.cfg.Charts.DistributionField, p.cfg.Charts.TopValues, columns, rows)
	if err != nil {
		log.Printf("WARN Service: Skipping %s chart: %v\n", report.FieldDistributionChart, err)
		return written, nil
	}
	path, err := report.WriteChart(dir, pie)
	if err != nil {
		return written, err
	}
	return append(written, path), nil
}

// Metadata reads back the metadata table built by BuildMetadata.
func (p *Pipeline) Metadata(ctx context.Context) ([]models.ColumnMetadata, error) {
	return report.ReadMetadata(ctx, p.store)
}

// PublishCharts uploads the rendered charts.
func (p *Pipeline) PublishCharts(ctx context.Context) ([]string, error) {
	if p.publisher == nil {
		return nil, fmt.Errorf("no chart publisher configured")
	}
	keys, err := p.publisher.PublishDir(ctx, p.cfg.Charts.OutputDir)
	if err != nil {
		return keys, fmt.Errorf("failed to publish charts: %w", err)
	}
	log.Printf("Service: Published %d charts\n", len(keys))
	return keys, nil
}

// Loads returns the load log of the output target.
func (p *Pipeline) Loads(ctx context.Context) ([]models.SurveyLoad, error) {
	logger, ok := p.store.(LoadLogger)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLoadLog, p.cfg.Output.Target)
	}
	return logger.GetSurveyLoads(ctx)
}
