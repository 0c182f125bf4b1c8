package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/belong/pkg/bi"
)

var ErrEmptyTable = errors.New("table has no data rows")

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// readAll reads the header and the data rows of a tab separated file.
func readAll(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := newReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}

	header := trimAll(records[0])
	rows := make([][]string, 0, len(records)-1)
	for _, r := range records[1:] {
		r = trimAll(r)
		if len(r) == 0 || (len(r) == 1 && r[0] == "") {
			continue
		}
		rows = append(rows, r)
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}

	return header, rows, nil
}

func trimAll(list []string) []string {
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return list
}

// LoadClassification reads a two column (ID, classification) file.
// The header row is ignored.
func LoadClassification(path string) (*bi.Classes, error) {
	_, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(rows))
	for i, r := range rows {
		if len(r) != 2 {
			return nil, fmt.Errorf("classification %s row %d: expected 2 columns, got %d", path, i+2, len(r))
		}
		if r[0] == "" {
			return nil, fmt.Errorf("classification %s row %d: empty ID", path, i+2)
		}
		if _, ok := labels[r[0]]; ok {
			return nil, fmt.Errorf("classification %s row %d: duplicate ID %s", path, i+2, r[0])
		}
		labels[r[0]] = r[1]
	}

	c := bi.NewClasses(labels)
	slog.Debug("classification loaded", "path", path, "entities", c.Len(), "classes", len(c.Sizes()))
	return c, nil
}
