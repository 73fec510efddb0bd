// survey/catalog.go
package survey

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/models"
	"github.com/gewnthar/surveyetl/utils"
)

const (
	archivePrefix = "survey_results_"
	archiveSuffix = ".zip"
)

// PageFetcher retrieves the raw bytes of a web page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// Catalog enumerates available survey datasets.
type Catalog struct {
	cfg     config.SurveyConfig
	mode    config.DiscoveryMode
	fetcher PageFetcher
}

func NewCatalog(cfg config.SurveyConfig, mode config.DiscoveryMode, fetcher PageFetcher) *Catalog {
	return &Catalog{cfg: cfg, mode: mode, fetcher: fetcher}
}

// Remote discovers datasets from the survey index page, in document order.
// The page is fetched and fully parsed before the first descriptor is
// yielded; any failure is yielded once as an ErrDiscovery error.
func (c *Catalog) Remote(ctx context.Context) iter.Seq2[models.Descriptor, error] {
	return func(yield func(models.Descriptor, error) bool) {
		page, err := c.fetcher.FetchPage(ctx, c.cfg.IndexURL)
		if err != nil {
			yield(models.Descriptor{}, fmt.Errorf("%w: failed to fetch survey index %s: %w", ErrDiscovery, c.cfg.IndexURL, err))
			return
		}
		descriptors, err := ParseIndex(bytes.NewReader(page), c.cfg.IndexLabel)
		if err != nil {
			yield(models.Descriptor{}, fmt.Errorf("%w: failed to parse survey index %s: %w", ErrDiscovery, c.cfg.IndexURL, err))
			return
		}
		log.Printf("Catalog: Found %d surveys on %s\n", len(descriptors), c.cfg.IndexURL)
		for _, d := range descriptors {
			if !yield(d, nil) {
				return
			}
		}
	}
}

// Offline discovers datasets from the archives already in the archive
// directory, in directory listing order. In strict mode a filename that does
// not parse is yielded as an error; in lenient mode it is logged and skipped.
func (c *Catalog) Offline() iter.Seq2[models.Descriptor, error] {
	return func(yield func(models.Descriptor, error) bool) {
		entries, err := os.ReadDir(c.cfg.ArchiveDir)
		if err != nil {
			yield(models.Descriptor{}, fmt.Errorf("%w: failed to list archive directory %s: %w", ErrDiscovery, c.cfg.ArchiveDir, err))
			return
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			d, err := ParseArchiveFilename(entry.Name())
			if err != nil {
				if c.mode == config.DiscoveryLenient {
					log.Printf("WARN Catalog: skipping %s: %v\n", entry.Name(), err)
					continue
				}
				if !yield(models.Descriptor{}, err) {
					return
				}
				continue
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

// ArchiveFilename is the name a downloaded archive is stored under.
func ArchiveFilename(d models.Descriptor) string {
	return fmt.Sprintf("%s%s_%d%s", archivePrefix, d.ID, d.Year, archiveSuffix)
}

// ParseArchiveFilename reverses ArchiveFilename:
// "survey_results_abc123_2018.zip" gives {abc123, 2018}.
func ParseArchiveFilename(name string) (models.Descriptor, error) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return models.Descriptor{}, fmt.Errorf("%w: archive filename %q does not match %s<id>_<year>%s", ErrDiscovery, name, archivePrefix, archiveSuffix)
	}
	items := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	if len(items) < 4 {
		return models.Descriptor{}, fmt.Errorf("%w: archive filename %q has no year", ErrDiscovery, name)
	}

	yearStr := items[len(items)-4:]
	year, err := utils.ParseYear(yearStr)
	if err != nil {
		return models.Descriptor{}, fmt.Errorf("%w: archive filename %q: %w", ErrDiscovery, name, err)
	}
	id, found := strings.CutSuffix(items, "_"+yearStr)
	if !found || id == "" {
		return models.Descriptor{}, fmt.Errorf("%w: archive filename %q has no survey id", ErrDiscovery, name)
	}
	return models.Descriptor{ID: id, Year: year}, nil
}

// ParseIndex finds every element whose own text equals label and reads the
// survey id from the "id" query parameter of its enclosing link and the year
// from the nearest "data-year" attribute. Duplicate (id, year) pairs are
// reported once.
func ParseIndex(r io.Reader, label string) ([]models.Descriptor, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		descriptors []models.Descriptor
		parseErr    error
		seen        = make(map[models.Descriptor]bool)
	)
	doc.Find("*").EachWithBreak(func(_ int, tag *goquery.Selection) bool {
		if !hasOwnText(tag, label) {
			return true
		}
		d, err := descriptorFromTag(tag)
		if err != nil {
			parseErr = err
			return false
		}
		if !seen[d] {
			seen[d] = true
			descriptors = append(descriptors, d)
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(descriptors) == 0 {
		log.Printf("WARN Catalog: no element with text %q found. QC: Verify the index page structure.\n", label)
	}
	return descriptors, nil
}

func hasOwnText(tag *goquery.Selection, label string) bool {
	found := false
	tag.Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if goquery.NodeName(node) == "#text" && strings.TrimSpace(node.Text()) == label {
			found = true
			return false
		}
		return true
	})
	return found
}

func descriptorFromTag(tag *goquery.Selection) (models.Descriptor, error) {
	href, ok := tag.Closest("a[href]").Attr("href")
	if !ok {
		return models.Descriptor{}, fmt.Errorf("download label is not inside a link")
	}
	u, err := url.Parse(href)
	if err != nil {
		return models.Descriptor{}, fmt.Errorf("failed to parse link %q: %w", href, err)
	}
	ids := u.Query()["id"]
	if len(ids) == 0 || ids[len(ids)-1] == "" {
		return models.Descriptor{}, fmt.Errorf("link %q has no id parameter", href)
	}

	yearStr, ok := tag.Closest("[data-year]").Attr("data-year")
	if !ok {
		return models.Descriptor{}, fmt.Errorf("link %q has no data-year attribute", href)
	}
	year, err := utils.ParseYear(yearStr)
	if err != nil {
		return models.Descriptor{}, err
	}
	return models.Descriptor{ID: ids[len(ids)-1], Year: year}, nil
}
