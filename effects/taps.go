package effects

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

// FilterTaps is the number of distinct coefficients of the NTSC decode
// filter. The filter is symmetric with 2*FilterTaps-1 taps in total.
const FilterTaps = 24

// Cutoffs in cycles per source pixel. The chroma carrier sits at 1/6.
const (
	LumaCutoff   = 0.12
	ChromaCutoff = 0.04
)

// LowPassTaps returns the first half (outermost first, centre last) of a
// Blackman windowed sinc low-pass with unity DC gain.
func LowPassTaps(cutoff float64) []float32 {
	n := 2*FilterTaps - 1
	center := FilterTaps - 1
	w := window.Blackman(n)

	full := make([]float64, n)
	var sum float64
	for i := range full {
		x := float64(i - center)
		s := 2 * cutoff
		if x != 0 {
			s = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
		full[i] = s * w[i]
		sum += full[i]
	}

	taps := make([]float32, FilterTaps)
	for i := range taps {
		taps[i] = float32(full[i] / sum)
	}
	return taps
}
