package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mchmarny/belong/pkg/bi"
	"github.com/mchmarny/belong/pkg/data"
	"gopkg.in/yaml.v3"
)

const (
	ScoresFileName    = "bi.tsv"
	MeansFileName     = "means.tsv"
	HistogramFileName = "histogram.tsv"

	dirMode = 0700

	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Summary is the printed result of a calculation.
type Summary struct {
	Run       *data.Run          `json:"run" yaml:"run"`
	Classes   []*bi.ClassSummary `json:"classes" yaml:"classes"`
	Histogram []*bi.Bin          `json:"histogram,omitempty" yaml:"histogram,omitempty"`
	Files     []string           `json:"files,omitempty" yaml:"files,omitempty"`
	Scores    []*bi.Score        `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// Encode writes v to w as indented JSON or YAML.
func Encode(w io.Writer, format string, v any) error {
	if format == FormatYAML || format == "yml" {
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return e.Close()
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// WriteFiles writes the score, class mean and histogram tables into dir and
// returns the written paths.
func WriteFiles(dir string, rs *bi.ResultSet, classes []*bi.ClassSummary, bins []*bi.Bin) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("creating output dir %s: %w", dir, err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{ScoresFileName, func(w io.Writer) error { return WriteScores(w, rs) }},
		{MeansFileName, func(w io.Writer) error { return WriteMeans(w, classes) }},
		{HistogramFileName, func(w io.Writer) error { return WriteHistogram(w, bins) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := writeFile(p, f.write); err != nil {
			return nil, err
		}
		slog.Debug("report written", "path", p)
		paths = append(paths, p)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (retErr error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if err := write(out); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteScores writes one ID, classification, BI row per entity.
func WriteScores(w io.Writer, rs *bi.ResultSet) error {
	cw := newWriter(w)
	if err := cw.Write([]string{"ID", "Classification", "BI"}); err != nil {
		return err
	}
	if rs != nil {
		for _, s := range rs.Scores() {
			if err := cw.Write([]string{s.ID, s.Label, formatFloat(s.Value)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMeans writes the per class summary rows.
func WriteMeans(w io.Writer, classes []*bi.ClassSummary) error {
	cw := newWriter(w)
	if err := cw.Write([]string{"Classification", "Count", "Mean", "StdDev"}); err != nil {
		return err
	}
	for _, c := range classes {
		row := []string{c.Label, strconv.Itoa(c.Count), formatFloat(c.Mean), formatFloat(c.StdDev)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistogram writes the BI distribution bins.
func WriteHistogram(w io.Writer, bins []*bi.Bin) error {
	cw := newWriter(w)
	if err := cw.Write([]string{"Lower", "Upper", "Count"}); err != nil {
		return err
	}
	for _, b := range bins {
		row := []string{formatFloat(b.Lower), formatFloat(b.Upper), strconv.Itoa(b.Count)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
