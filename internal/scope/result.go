package scope

import "fmt"

// Stat names a derived quantity computed from decoded waveforms.
type Stat string

const (
	StatMean          Stat = "mean"
	StatFFT           Stat = "fft"
	StatIFFT          Stat = "ifft"
	StatCorrelate     Stat = "correlate"
	StatAutocorrelate Stat = "autocorrelate"
)

// ParseStat maps a statistic name onto its Stat constant.
func ParseStat(name string) (Stat, error) {
	switch s := Stat(name); s {
	case StatMean, StatFFT, StatIFFT, StatCorrelate, StatAutocorrelate:
		return s, nil
	default:
		return "", &UnsupportedStatisticError{Name: name}
	}
}

// ParseStats maps a list of statistic names, failing on the first unknown
// one.
func ParseStats(names []string) ([]Stat, error) {
	stats := make([]Stat, 0, len(names))
	for _, name := range names {
		s, err := ParseStat(name)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// Horizontal holds the acquisition-wide horizontal scale metadata,
// retrieved once and shared across all channels of a query.
type Horizontal struct {
	TimePerDivision float64 // seconds per division
	SampleRate      float64 // samples per second
	RecordLength    int     // points per channel
}

// Result is the outcome of a waveform query. X is the shared time axis;
// Channels maps channel numbers to calibrated voltage arrays of the same
// length as X. The statistics maps are populated only for explicitly
// requested statistics and use the y<N> key convention: "y1_avg",
// "y1_std" under Means, "y1" under FFT with its real part as "y1_real"
// under FFTReal (same for IFFT), "y1y2" under Correlation with the pair
// in ascending channel order, and "y1" under Autocorrelation.
type Result struct {
	X        []float64
	Channels map[int][]float64

	Horizontal Horizontal

	Means           map[string]float64
	FFT             map[string][]complex128
	FFTReal         map[string][]float64
	IFFT            map[string][]complex128
	IFFTReal        map[string][]float64
	Correlation     map[string][]float64
	Autocorrelation map[string][]float64
}

// ChannelKey returns the result key for a channel, e.g. "y1".
func ChannelKey(channel int) string {
	return fmt.Sprintf("y%d", channel)
}

// PairKey returns the result key for a channel pair in ascending order,
// e.g. "y1y2" for (2, 1) as well as for (1, 2).
func PairKey(a, b int) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("y%dy%d", a, b)
}
