package bi

import (
	"fmt"
	"sort"
)

// ResultSet maps entity IDs to their scores. Entries are never overwritten.
type ResultSet struct {
	scores map[string]*Score
}

// NewResultSet creates a result set from the scores, failing on duplicate IDs.
func NewResultSet(scores ...*Score) (*ResultSet, error) {
	rs := &ResultSet{scores: make(map[string]*Score, len(scores))}
	for _, s := range scores {
		if err := rs.Add(s); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// Add records the score of one entity.
func (r *ResultSet) Add(s *Score) error {
	if s == nil {
		return nil
	}
	if r.scores == nil {
		r.scores = make(map[string]*Score)
	}
	if _, ok := r.scores[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, s.ID)
	}
	r.scores[s.ID] = s
	return nil
}

// Get returns the score of the entity, if recorded.
func (r *ResultSet) Get(id string) (*Score, bool) {
	s, ok := r.scores[id]
	return s, ok
}

func (r *ResultSet) Len() int {
	return len(r.scores)
}

// Scores returns all scores sorted by entity ID.
func (r *ResultSet) Scores() []*Score {
	list := make([]*Score, 0, len(r.scores))
	for _, s := range r.scores {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Values returns the BI values in entity ID order.
func (r *ResultSet) Values() []float64 {
	list := r.Scores()
	vals := make([]float64, len(list))
	for i, s := range list {
		vals[i] = s.Value
	}
	return vals
}
