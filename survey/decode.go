// survey/decode.go
package survey

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/gewnthar/surveyetl/models"
	"github.com/gewnthar/surveyetl/utils"
	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var questionColumns = []string{"column_name", "question_text"}

// newCSVReader decodes r from the named single-byte encoding. A leading UTF-8
// byte order mark is dropped before decoding.
func newCSVReader(r io.Reader, encoding string) (*csv.Reader, error) {
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported encoding %q: %w", ErrDecode, encoding, err)
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(transform.NewReader(br, enc.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr, nil
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: member is empty", ErrDecode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrDecode, err)
	}
	return header, nil
}

// decodeResponses returns the normalized header and a streaming iterator
// over the data rows. Short rows are padded with NULL.
func decodeResponses(r io.Reader, encoding string, nullValues []string) ([]string, iter.Seq2[models.Row, error], error) {
	cr, err := newCSVReader(r, encoding)
	if err != nil {
		return nil, nil, err
	}
	header, err := readHeader(cr)
	if err != nil {
		return nil, nil, err
	}
	columns := NormalizeHeaders(header)

	rows := func(yield func(models.Row, error) bool) {
		for {
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("%w: %w", ErrDecode, err))
				return
			}
			if len(record) > len(columns) {
				line, _ := cr.FieldPos(0)
				yield(nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrDecode, line, len(record), len(columns)))
				return
			}
			row := make(models.Row, len(columns))
			for i, value := range record {
				if !utils.IsNullValue(value, nullValues) {
					row[i] = sql.NullString{String: value, Valid: true}
				}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
	return columns, rows, nil
}

// fieldFitter pads or truncates every record to n fields.
type fieldFitter struct {
	r *csv.Reader
	n int
}

func (f fieldFitter) Read() ([]string, error) {
	record, err := f.r.Read()
	if err != nil {
		return nil, err
	}
	if len(record) >= f.n {
		return record[:f.n], nil
	}
	return append(record, make([]string, f.n-len(record))...), nil
}

// decodeQuestions reads a schema member into column_name/question_text
// pairs. Only the first two columns are kept; column names are normalized
// with SnakeCase so they match the responses header.
func decodeQuestions(r io.Reader, encoding string) ([]string, iter.Seq2[models.Row, error], error) {
	cr, err := newCSVReader(r, encoding)
	if err != nil {
		return nil, nil, err
	}
	if _, err := readHeader(cr); err != nil {
		return nil, nil, err
	}

	decoder, err := csvutil.NewDecoder(fieldFitter{r: cr, n: len(questionColumns)}, questionColumns...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create CSV decoder for questions: %w", ErrDecode, err)
	}
	var questions []models.Question
	if err := decoder.Decode(&questions); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: failed to decode questions: %w", ErrDecode, err)
	}

	rows := func(yield func(models.Row, error) bool) {
		for _, q := range questions {
			row := models.Row{
				{String: SnakeCase(q.ColumnName), Valid: true},
				{String: q.QuestionText, Valid: true},
			}
			if !yield(row, nil) {
				return
			}
		}
	}
	return questionColumns, rows, nil
}
