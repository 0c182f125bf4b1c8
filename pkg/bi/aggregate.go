package bi

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ClassSummary describes the BI distribution of one classification.
type ClassSummary struct {
	Label  string  `json:"class" yaml:"class"`
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
}

func groupByClass(rs *ResultSet) map[string][]float64 {
	groups := make(map[string][]float64)
	if rs == nil {
		return groups
	}
	for _, s := range rs.Scores() {
		groups[s.Label] = append(groups[s.Label], s.Value)
	}
	return groups
}

// MeansByClass returns the mean BI per classification label observed in the
// result set. Labels without scored entities are absent.
func MeansByClass(rs *ResultSet) map[string]float64 {
	groups := groupByClass(rs)
	means := make(map[string]float64, len(groups))
	for label, vals := range groups {
		means[label] = stat.Mean(vals, nil)
	}
	return means
}

// Summarize returns count, mean and standard deviation per label, sorted by label.
func Summarize(rs *ResultSet) []*ClassSummary {
	groups := groupByClass(rs)
	list := make([]*ClassSummary, 0, len(groups))
	for label, vals := range groups {
		cs := &ClassSummary{
			Label: label,
			Count: len(vals),
		}
		if len(vals) > 1 {
			cs.Mean, cs.StdDev = stat.MeanStdDev(vals, nil)
		} else {
			cs.Mean = vals[0]
		}
		list = append(list, cs)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Label < list[j].Label
	})
	return list
}
