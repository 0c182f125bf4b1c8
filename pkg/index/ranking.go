package index

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mchmarny/belong/pkg/table"
)

const (
	headerField = "FILE"
	maxLineSize = 16 * 1024 * 1024
)

// ParseRanking reads the tool's ranked result, one tab separated tuple per
// line, and returns the leading IDs in order. The header line and blank lines
// are skipped.
func ParseRanking(r io.Reader) ([]string, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	ids := make([]string, 0)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimRight(s.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		id, _, _ := strings.Cut(text, "\t")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("line %d: missing ID: %q", line, text)
		}
		if id == headerField {
			continue
		}
		ids = append(ids, id)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading ranking: %w", err)
	}
	return ids, nil
}

// Source supplies neighbor sequences by querying the index with each profile.
type Source struct {
	index    *Index
	profiles *table.Profiles
	limit    int
}

// NewSource bounds each query to half the profile length, rounded up.
func NewSource(x *Index, p *table.Profiles) *Source {
	limit := int(math.Ceil(float64(len(p.Loci)) / 2))
	if limit < 1 {
		limit = 1
	}
	return &Source{
		index:    x,
		profiles: p,
		limit:    limit,
	}
}

// Limit returns the per query result bound.
func (s *Source) Limit() int {
	return s.limit
}

func (s *Source) IDs() []string {
	return s.profiles.IDs()
}

func (s *Source) Neighbors(ctx context.Context, id string) ([]string, error) {
	line, ok := s.profiles.Line(id)
	if !ok {
		return nil, fmt.Errorf("entity %s has no profile", id)
	}
	return s.index.Query(ctx, id, line, s.limit)
}
