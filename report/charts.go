// report/charts.go
package report

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gewnthar/surveyetl/models"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartKind is the closed set of chart types that can be rendered.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartPie  ChartKind = "pie"
)

// Built in chart names. Each is written to <charts_dir>/<name>.html.
const (
	ResponsesPerYearChart  = "responses-per-year"
	NullRatePerYearChart   = "null-rate-per-year"
	FieldDistributionChart = "field-distribution"
)

// Chart is a single labelled series ready to render.
type Chart struct {
	Name   string
	Title  string
	Kind   ChartKind
	Series string
	Labels []string
	Values []float64
}

type renderer func(c Chart, w io.Writer) error

var renderers = map[ChartKind]renderer{
	ChartBar:  renderBar,
	ChartLine: renderLine,
	ChartPie:  renderPie,
}

// Render writes c as a standalone HTML page.
func Render(c Chart, w io.Writer) error {
	render, ok := renderers[c.Kind]
	if !ok {
		return fmt.Errorf("unknown chart kind %q for chart %s", c.Kind, c.Name)
	}
	if len(c.Labels) != len(c.Values) {
		return fmt.Errorf("chart %s has %d labels and %d values", c.Name, len(c.Labels), len(c.Values))
	}
	return render(c, w)
}

// WriteChart renders c into dir and returns the written path.
func WriteChart(dir string, c Chart) (string, error) {
	var buf bytes.Buffer
	if err := Render(c, &buf); err != nil {
		return "", fmt.Errorf("failed to render chart %s: %w", c.Name, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, c.Name+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write chart %s: %w", path, err)
	}
	log.Printf("Report: Wrote %s chart %s to %s\n", c.Kind, c.Name, path)
	return path, nil
}

func renderBar(c Chart, w io.Writer) error {
	items := make([]opts.BarData, len(c.Values))
	for i, v := range c.Values {
		items[i] = opts.BarData{Value: v}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: c.Title}))
	bar.SetXAxis(c.Labels).AddSeries(c.Series, items)
	return bar.Render(w)
}

func renderLine(c Chart, w io.Writer) error {
	items := make([]opts.LineData, len(c.Values))
	for i, v := range c.Values {
		items[i] = opts.LineData{Value: v}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: c.Title}))
	line.SetXAxis(c.Labels).AddSeries(c.Series, items)
	return line.Render(w)
}

func renderPie(c Chart, w io.Writer) error {
	items := make([]opts.PieData, len(c.Values))
	for i, v := range c.Values {
		items[i] = opts.PieData{Name: c.Labels[i], Value: v}
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: c.Title}))
	pie.AddSeries(c.Series, items)
	return pie.Render(w)
}

// yearly groups metadata by year in ascending order.
func yearly(meta []models.ColumnMetadata) ([]int, map[int][]models.ColumnMetadata) {
	byYear := make(map[int][]models.ColumnMetadata)
	for _, m := range meta {
		byYear[m.Year] = append(byYear[m.Year], m)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, byYear
}

// ResponsesPerYear charts the responses row count of every summarized year.
func ResponsesPerYear(meta []models.ColumnMetadata) Chart {
	years, byYear := yearly(meta)
	c := Chart{Name: ResponsesPerYearChart, Title: "Responses per year", Kind: ChartBar, Series: "responses"}
	for _, y := range years {
		c.Labels = append(c.Labels, strconv.Itoa(y))
		c.Values = append(c.Values, float64(byYear[y][0].Responses))
	}
	return c
}

// NullRatePerYear charts the mean null fraction across the columns of each year.
func NullRatePerYear(meta []models.ColumnMetadata) Chart {
	years, byYear := yearly(meta)
	c := Chart{Name: NullRatePerYearChart, Title: "Mean null rate per year", Kind: ChartLine, Series: "null rate"}
	for _, y := range years {
		var sum float64
		for _, m := range byYear[y] {
			sum += m.Nulls
		}
		c.Labels = append(c.Labels, strconv.Itoa(y))
		c.Values = append(c.Values, sum/float64(len(byYear[y])))
	}
	return c
}

// FieldDistribution charts the top answers of field in one responses table.
// Multiple answers separated by ";" are counted individually; answers past
// the top are grouped as "Other".
func FieldDistribution(year int, field string, top int, columns []string, rows iter.Seq2[models.Row, error]) (Chart, error) {
	idx := -1
	for i, c := range columns {
		if c == field {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Chart{}, fmt.Errorf("column %s not found in %d responses", field, year)
	}

	counts := make(map[string]int)
	for row, err := range rows {
		if err != nil {
			return Chart{}, fmt.Errorf("failed to read responses for %d: %w", year, err)
		}
		if idx >= len(row) || !row[idx].Valid {
			continue
		}
		for _, answer := range strings.Split(row[idx].String, ";") {
			if answer = strings.TrimSpace(answer); answer != "" {
				counts[answer]++
			}
		}
	}

	answers := make([]string, 0, len(counts))
	for a := range counts {
		answers = append(answers, a)
	}
	sort.Slice(answers, func(i, j int) bool {
		if counts[answers[i]] != counts[answers[j]] {
			return counts[answers[i]] > counts[answers[j]]
		}
		return answers[i] < answers[j]
	})

	c := Chart{
		Name:   FieldDistributionChart,
		Title:  fmt.Sprintf("%s (%d)", field, year),
		Kind:   ChartPie,
		Series: field,
	}
	other := 0
	for i, a := range answers {
		if top > 0 && i >= top {
			other += counts[a]
			continue
		}
		c.Labels = append(c.Labels, a)
		c.Values = append(c.Values, float64(counts[a]))
	}
	if other > 0 {
		c.Labels = append(c.Labels, "Other")
		c.Values = append(c.Values, float64(other))
	}
	return c, nil
}
