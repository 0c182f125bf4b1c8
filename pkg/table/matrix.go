package table

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
)

// Matrix is a pairwise distance matrix keyed by entity ID on both axes.
type Matrix struct {
	cols     []string
	colIndex map[string]int
	rowIndex map[string]int
	dist     [][]float64
}

// LoadMatrix reads a tab separated distance matrix. The first header cell
// labels the ID column, the remaining header cells are the column entity IDs.
// Empty cells of a triangular matrix are filled from the mirrored cell.
func LoadMatrix(path string) (*Matrix, error) {
	header, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	if len(header) < 2 {
		return nil, fmt.Errorf("matrix %s: header has no entity columns", path)
	}

	m := &Matrix{
		cols:     header[1:],
		colIndex: make(map[string]int, len(header)-1),
		rowIndex: make(map[string]int, len(rows)),
		dist:     make([][]float64, len(rows)),
	}

	for i, id := range m.cols {
		if _, ok := m.colIndex[id]; ok {
			return nil, fmt.Errorf("matrix %s: duplicate column %s", path, id)
		}
		m.colIndex[id] = i
	}

	for i, r := range rows {
		if len(r) != len(header) {
			return nil, fmt.Errorf("matrix %s row %d: expected %d columns, got %d", path, i+2, len(header), len(r))
		}
		id := r[0]
		if _, ok := m.rowIndex[id]; ok {
			return nil, fmt.Errorf("matrix %s: duplicate row %s", path, id)
		}
		m.rowIndex[id] = i

		vals := make([]float64, len(m.cols))
		for j, cell := range r[1:] {
			if cell == "" {
				vals[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("matrix %s row %s column %s: invalid distance %q: %w", path, id, m.cols[j], cell, err)
			}
			vals[j] = v
		}
		m.dist[i] = vals
	}

	if err := m.fillMirrored(); err != nil {
		return nil, fmt.Errorf("matrix %s: %w", path, err)
	}

	slog.Debug("matrix loaded", "path", path, "rows", len(rows), "cols", len(m.cols))
	return m, nil
}

func (m *Matrix) fillMirrored() error {
	for rowID, i := range m.rowIndex {
		for j, colID := range m.cols {
			if !math.IsNaN(m.dist[i][j]) {
				continue
			}
			if rowID == colID {
				m.dist[i][j] = 0
				continue
			}
			mi, okRow := m.rowIndex[colID]
			mj, okCol := m.colIndex[rowID]
			if !okRow || !okCol || math.IsNaN(m.dist[mi][mj]) {
				return fmt.Errorf("no distance between %s and %s", rowID, colID)
			}
			m.dist[i][j] = m.dist[mi][mj]
		}
	}
	return nil
}

// IDs returns the column entity IDs in file order.
func (m *Matrix) IDs() []string {
	ids := make([]string, len(m.cols))
	copy(ids, m.cols)
	return ids
}

func (m *Matrix) distance(from, to string) (float64, bool) {
	i, ok := m.rowIndex[from]
	if !ok {
		return 0, false
	}
	j, ok := m.colIndex[to]
	if !ok {
		return 0, false
	}
	return m.dist[i][j], true
}

// Neighbors returns the column IDs ordered by ascending distance from the
// entity's row. Equal distances keep column order. The entity itself is
// included.
func (m *Matrix) Neighbors(_ context.Context, id string) ([]string, error) {
	i, ok := m.rowIndex[id]
	if !ok {
		return nil, fmt.Errorf("entity %s has no matrix row", id)
	}

	row := m.dist[i]
	order := make([]int, len(row))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return row[order[a]] < row[order[b]]
	})

	ids := make([]string, len(order))
	for k, j := range order {
		ids[k] = m.cols[j]
	}
	return ids, nil
}
