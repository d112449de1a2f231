package scope

import (
	"math"
	"slices"

	"github.com/tspspi/gomso5000/internal/dsp"
)

// ApplyStats computes the requested statistics over the decoded channel
// arrays of res and attaches them to it. It performs no instrument I/O
// and never mutates the channel arrays. When normalize is true, cross-
// and autocorrelations are divided by the geometric mean of the signal
// energies, so an autocorrelation peaks at one.
func ApplyStats(res *Result, eng dsp.Engine, normalize bool, stats ...Stat) error {
	channels := make([]int, 0, len(res.Channels))
	for ch := range res.Channels {
		channels = append(channels, ch)
	}
	slices.Sort(channels)

	for _, stat := range stats {
		switch stat {
		case StatMean:
			if res.Means == nil {
				res.Means = make(map[string]float64, 2*len(channels))
			}
			for _, ch := range channels {
				mean, std := eng.MeanStd(res.Channels[ch])
				res.Means[ChannelKey(ch)+"_avg"] = mean
				res.Means[ChannelKey(ch)+"_std"] = std
			}

		case StatFFT:
			if res.FFT == nil {
				res.FFT = make(map[string][]complex128, len(channels))
				res.FFTReal = make(map[string][]float64, len(channels))
			}
			for _, ch := range channels {
				coeffs := eng.FFT(res.Channels[ch])
				res.FFT[ChannelKey(ch)] = coeffs
				res.FFTReal[ChannelKey(ch)+"_real"] = realParts(coeffs)
			}

		case StatIFFT:
			if res.IFFT == nil {
				res.IFFT = make(map[string][]complex128, len(channels))
				res.IFFTReal = make(map[string][]float64, len(channels))
			}
			for _, ch := range channels {
				coeffs := eng.IFFT(toComplex(res.Channels[ch]))
				res.IFFT[ChannelKey(ch)] = coeffs
				res.IFFTReal[ChannelKey(ch)+"_real"] = realParts(coeffs)
			}

		case StatCorrelate:
			if res.Correlation == nil {
				res.Correlation = make(map[string][]float64)
			}
			for i := 0; i < len(channels); i++ {
				for j := i + 1; j < len(channels); j++ {
					a, b := res.Channels[channels[i]], res.Channels[channels[j]]
					if len(a) != len(b) {
						return &ShapeMismatchError{Want: len(a), Got: len(b), What: "correlate"}
					}
					c := eng.Correlate(a, b)
					if normalize {
						normalizeCorrelation(c, a, b)
					}
					res.Correlation[PairKey(channels[i], channels[j])] = c
				}
			}

		case StatAutocorrelate:
			if res.Autocorrelation == nil {
				res.Autocorrelation = make(map[string][]float64, len(channels))
			}
			for _, ch := range channels {
				y := res.Channels[ch]
				c := eng.Correlate(y, y)
				if normalize {
					normalizeCorrelation(c, y, y)
				}
				res.Autocorrelation[ChannelKey(ch)] = c
			}

		default:
			return &UnsupportedStatisticError{Name: string(stat)}
		}
	}

	return nil
}

func normalizeCorrelation(c, a, b []float64) {
	norm := math.Sqrt(energy(a) * energy(b))
	if norm == 0 {
		return
	}
	for i := range c {
		c[i] /= norm
	}
}

func energy(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func realParts(coeffs []complex128) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out
}

func toComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}
