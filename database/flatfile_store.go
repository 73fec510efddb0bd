// database/flatfile_store.go
package database

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"path/filepath"

	"github.com/gewnthar/surveyetl/models"
)

// FlatFileStore writes each table to <dir>/<table>.csv. NULL is written as an
// empty field and read back as NULL.
type FlatFileStore struct {
	dir string
}

func NewFlatFileStore(dir string) *FlatFileStore {
	return &FlatFileStore{dir: dir}
}

func (f *FlatFileStore) path(name string) string {
	return filepath.Join(f.dir, name+".csv")
}

// ReplaceTable writes the table to a temporary file and renames it over the
// previous version.
func (f *FlatFileStore) ReplaceTable(ctx context.Context, name string, columns []string, rows iter.Seq2[models.Row, error]) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", f.dir, err)
	}

	target := f.path(name)
	partPath := target + ".part"
	outFile, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", partPath, err)
	}

	count, err := writeCSV(ctx, outFile, columns, rows)
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return err
	}
	if err := os.Rename(partPath, target); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to move %s into place: %w", partPath, err)
	}

	log.Printf("Database: Successfully saved %d rows to %s\n", count, target)
	return nil
}

func writeCSV(ctx context.Context, w io.Writer, columns []string, rows iter.Seq2[models.Row, error]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(columns))
	count := 0
	for row, err := range rows {
		if err != nil {
			return count, err
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		for i := range record {
			record[i] = ""
			if i < len(row) && row[i].Valid {
				record[i] = row[i].String
			}
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("failed to write row %d: %w", count+1, err)
		}
		count++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return count, nil
}

func (f *FlatFileStore) TableExists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", f.path(name), err)
	}
	return true, nil
}

// ReadTable reads the header eagerly; the rows are streamed from the file
// each time the iterator is ranged over.
func (f *FlatFileStore) ReadTable(_ context.Context, name string) ([]string, iter.Seq2[models.Row, error], error) {
	file, err := os.Open(f.path(name))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", f.path(name), err)
	}
	columns, err := csv.NewReader(file).Read()
	file.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", f.path(name), err)
	}

	seq := func(yield func(models.Row, error) bool) {
		file, err := os.Open(f.path(name))
		if err != nil {
			yield(nil, fmt.Errorf("failed to open %s: %w", f.path(name), err))
			return
		}
		defer file.Close()

		cr := csv.NewReader(file)
		cr.FieldsPerRecord = len(columns)
		if _, err := cr.Read(); err != nil {
			yield(nil, fmt.Errorf("failed to read header of %s: %w", f.path(name), err))
			return
		}
		for {
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to read %s: %w", f.path(name), err))
				return
			}
			row := make(models.Row, len(record))
			for i, value := range record {
				if value != "" {
					row[i] = sql.NullString{String: value, Valid: true}
				}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
	return columns, seq, nil
}
