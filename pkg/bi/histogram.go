package bi

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultBinSize = 0.05

	// MaxBins bounds the number of histogram bins.
	MaxBins = 10000
)

// ValidateBinSize checks that the bin width is in (0, 1] and yields at most
// MaxBins bins.
func ValidateBinSize(binSize float64) error {
	if math.IsNaN(binSize) || binSize <= 0 || binSize > 1 {
		return fmt.Errorf("invalid bin size: %v (must be in (0, 1])", binSize)
	}
	if binCount(binSize) > MaxBins {
		return fmt.Errorf("invalid bin size: %v (more than %d bins)", binSize, MaxBins)
	}
	return nil
}

func binCount(binSize float64) float64 {
	return math.Ceil(1/binSize - 1e-9)
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin also
// includes its upper bound.
type Bin struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
	Count int     `json:"count" yaml:"count"`
}

// Distribution buckets all BI values of the result set into bins of the given
// width over [0, 1].
func Distribution(rs *ResultSet, binSize float64) ([]*Bin, error) {
	if err := ValidateBinSize(binSize); err != nil {
		return nil, err
	}

	n := int(binCount(binSize))
	upper := math.Max(1, float64(n)*binSize)

	bounds := floats.Span(make([]float64, n+1), 0, upper)
	dividers := make([]float64, len(bounds))
	copy(dividers, bounds)
	dividers[n] = math.Nextafter(upper, math.Inf(1))

	var vals []float64
	if rs != nil {
		vals = rs.Values()
	}
	sort.Float64s(vals)

	counts := stat.Histogram(nil, dividers, vals, nil)

	bins := make([]*Bin, n)
	for i := range bins {
		bins[i] = &Bin{
			Lower: bounds[i],
			Upper: bounds[i+1],
			Count: int(counts[i]),
		}
	}
	return bins, nil
}
