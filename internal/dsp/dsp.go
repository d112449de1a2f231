// Package dsp provides the numeric backends used by the waveform
// statistics post-processor. Two functionally identical engines exist:
// a plain sequential implementation and a gonum-accelerated one. The
// choice is configuration only; callers depend on the Engine interface.
package dsp

import "fmt"

const (
	// EngineNaive is the plain sequential implementation.
	EngineNaive = "naive"

	// EngineGonum is the gonum-accelerated implementation.
	EngineGonum = "gonum"
)

// Engine is the numeric-array capability the acquisition and statistics
// components depend on.
type Engine interface {
	// Name returns the engine's configuration name.
	Name() string

	// MeanStd returns the arithmetic mean and the population standard
	// deviation (divide by N) of x.
	MeanStd(x []float64) (mean, std float64)

	// FFT computes the full-length discrete Fourier transform of x,
	// no windowing applied.
	FFT(x []float64) []complex128

	// IFFT computes the inverse discrete Fourier transform, scaled by
	// 1/N so that IFFT(FFT(x)) reproduces x.
	IFFT(coeffs []complex128) []complex128

	// Correlate computes the full linear cross-correlation of a and b,
	// length 2N-1, with c[k] = sum_i a[i]*b[i-(k-(N-1))]. No
	// normalization is applied.
	Correlate(a, b []float64) []float64
}

// New returns the engine registered under name.
func New(name string) (Engine, error) {
	switch name {
	case "", EngineNaive:
		return naiveEngine{}, nil
	case EngineGonum:
		return gonumEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown dsp engine %q", name)
	}
}
