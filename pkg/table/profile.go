package table

import (
	"fmt"
	"log/slog"
	"strings"
)

// Profiles is an allelic profile table: one row of locus alleles per entity.
type Profiles struct {
	Path    string
	Loci    []string
	ids     []string
	alleles map[string][]string
}

// LoadProfiles reads a tab separated profile file. The first header cell
// (usually FILE or ID) labels the ID column, the rest name the loci.
func LoadProfiles(path string) (*Profiles, error) {
	header, rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	if len(header) < 2 {
		return nil, fmt.Errorf("profiles %s: header has no loci", path)
	}

	p := &Profiles{
		Path:    path,
		Loci:    header[1:],
		ids:     make([]string, 0, len(rows)),
		alleles: make(map[string][]string, len(rows)),
	}

	for i, r := range rows {
		if len(r) != len(header) {
			return nil, fmt.Errorf("profiles %s row %d: expected %d columns, got %d", path, i+2, len(header), len(r))
		}
		id := r[0]
		if _, ok := p.alleles[id]; ok {
			return nil, fmt.Errorf("profiles %s: duplicate ID %s", path, id)
		}
		p.ids = append(p.ids, id)
		p.alleles[id] = r[1:]
	}

	slog.Debug("profiles loaded", "path", path, "profiles", len(p.ids), "loci", len(p.Loci))
	return p, nil
}

// IDs returns the profile IDs in file order.
func (p *Profiles) IDs() []string {
	ids := make([]string, len(p.ids))
	copy(ids, p.ids)
	return ids
}

// Line returns the profile as the tab joined allele calls.
func (p *Profiles) Line(id string) (string, bool) {
	a, ok := p.alleles[id]
	if !ok {
		return "", false
	}
	return strings.Join(a, "\t"), true
}
