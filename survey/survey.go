// survey/survey.go
package survey

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/models"
)

// State is where a Survey is in its lifecycle.
type State int

const (
	StateDescribed State = iota
	StateDownloaded
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateDescribed:
		return "described"
	case StateDownloaded:
		return "downloaded"
	case StateLoaded:
		return "loaded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Downloader saves the body of a URL to a local file, overwriting it.
type Downloader interface {
	DownloadFile(ctx context.Context, fileURL, localSavePath string) error
}

// TableWriter replaces a whole table. Rows must be consumed in order.
type TableWriter interface {
	ReplaceTable(ctx context.Context, name string, columns []string, rows iter.Seq2[models.Row, error]) error
}

// TableReader reads back persisted tables.
type TableReader interface {
	TableExists(ctx context.Context, name string) (bool, error)
	// ReadTable returns the columns of name and an iterator over its rows.
	// The rows are read when the iterator is ranged over.
	ReadTable(ctx context.Context, name string) ([]string, iter.Seq2[models.Row, error], error)
}

// Survey is one yearly survey dataset bound to its archive and tables.
type Survey struct {
	models.Descriptor
	cfg    config.SurveyConfig
	loaded bool
}

func New(d models.Descriptor, cfg config.SurveyConfig) *Survey {
	return &Survey{Descriptor: d, cfg: cfg}
}

func (s *Survey) String() string {
	return fmt.Sprintf("<Survey %d>", s.Year)
}

// URL is the remote location of the survey archive.
func (s *Survey) URL() string {
	return strings.ReplaceAll(s.cfg.DownloadURLTemplate, "{id}", url.QueryEscape(s.ID))
}

// ArchivePath is where the archive is stored locally.
func (s *Survey) ArchivePath() string {
	return filepath.Join(s.cfg.ArchiveDir, ArchiveFilename(s.Descriptor))
}

func (s *Survey) ResponsesTable() string {
	return fmt.Sprintf("survey_%d_responses", s.Year)
}

func (s *Survey) QuestionsTable() string {
	return fmt.Sprintf("survey_%d_questions", s.Year)
}

func (s *Survey) tableFor(role models.Role) string {
	if role == models.RoleSchema {
		return s.QuestionsTable()
	}
	return s.ResponsesTable()
}

// State reports Loaded once Load succeeded on this value, otherwise whether
// the archive is on disk.
func (s *Survey) State() State {
	if s.loaded {
		return StateLoaded
	}
	if _, err := os.Stat(s.ArchivePath()); err == nil {
		return StateDownloaded
	}
	return StateDescribed
}

// Download fetches the archive and writes it verbatim to ArchivePath,
// replacing any previous copy.
func (s *Survey) Download(ctx context.Context, dl Downloader) error {
	if err := dl.DownloadFile(ctx, s.URL(), s.ArchivePath()); err != nil {
		return fmt.Errorf("%w: failed to download survey %d (%s): %w", ErrRetrieval, s.Year, s.ID, err)
	}
	log.Printf("Survey: Saved survey from year %d to %s\n", s.Year, s.ArchivePath())
	return nil
}

// Load replaces the responses and questions tables with the normalized
// contents of the archive and returns the tables written. A failure stops the
// load; tables written before it are left in place.
func (s *Survey) Load(ctx context.Context, w TableWriter) ([]string, error) {
	zr, err := zip.OpenReader(s.ArchivePath())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open archive %s: %w", ErrArchive, s.ArchivePath(), err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
		names = append(names, f.Name)
	}

	members := ResolveMembers(s.Year, names)
	if len(members) == 0 {
		log.Printf("WARN Survey: archive %s has no recognized members (found %v)\n", s.ArchivePath(), names)
	}

	var written []string
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		table := s.tableFor(m.Role)
		if err := s.loadMember(ctx, files[m.Name], m.Role, table, w); err != nil {
			return written, err
		}
		log.Printf("Survey: Loaded %s from %s into %s\n", m.Role, m.Name, table)
		if !contains(written, table) {
			written = append(written, table)
		}
	}

	s.loaded = true
	return written, nil
}

func (s *Survey) loadMember(ctx context.Context, f *zip.File, role models.Role, table string, w TableWriter) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open member %s: %w", ErrArchive, f.Name, err)
	}
	defer rc.Close()

	var (
		columns []string
		rows    iter.Seq2[models.Row, error]
	)
	if role == models.RoleSchema {
		columns, rows, err = decodeQuestions(rc, s.cfg.Encoding)
	} else {
		columns, rows, err = decodeResponses(rc, s.cfg.Encoding, s.cfg.NullValues)
	}
	if err != nil {
		return fmt.Errorf("failed to decode member %s: %w", f.Name, err)
	}

	if err := w.ReplaceTable(ctx, table, columns, rows); err != nil {
		if errors.Is(err, ErrDecode) {
			return fmt.Errorf("failed to decode member %s: %w", f.Name, err)
		}
		return fmt.Errorf("%w: failed to replace table %s: %w", ErrPersistence, table, err)
	}
	return nil
}

// Questions returns the persisted questions table, or nil if it does not exist.
func (s *Survey) Questions(ctx context.Context, r TableReader) ([]models.Question, error) {
	exists, err := r.TableExists(ctx, s.QuestionsTable())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check table %s: %w", ErrPersistence, s.QuestionsTable(), err)
	}
	if !exists {
		return nil, nil
	}

	columns, rows, err := r.ReadTable(ctx, s.QuestionsTable())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read table %s: %w", ErrPersistence, s.QuestionsTable(), err)
	}
	nameIdx, textIdx := indexOf(columns, "column_name"), indexOf(columns, "question_text")

	var questions []models.Question
	for row, err := range rows {
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read table %s: %w", ErrPersistence, s.QuestionsTable(), err)
		}
		var q models.Question
		if nameIdx >= 0 {
			q.ColumnName = row[nameIdx].String
		}
		if textIdx >= 0 {
			q.QuestionText = row[textIdx].String
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Responses returns the columns and rows of the persisted responses table.
func (s *Survey) Responses(ctx context.Context, r TableReader) ([]string, iter.Seq2[models.Row, error], error) {
	columns, rows, err := r.ReadTable(ctx, s.ResponsesTable())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read table %s: %w", ErrPersistence, s.ResponsesTable(), err)
	}
	return columns, rows, nil
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func contains(values []string, want string) bool {
	return indexOf(values, want) >= 0
}
