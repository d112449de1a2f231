package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// gonumEngine implements Engine on top of gonum's fourier and stat
// packages. Correlation is computed via FFT convolution with the second
// operand reversed, which is algebraically identical to the sequential
// definition.
type gonumEngine struct{}

func (gonumEngine) Name() string { return EngineGonum }

func (gonumEngine) MeanStd(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	mean := stat.Mean(x, nil)
	if len(x) < 2 {
		return mean, 0
	}

	// stat.Variance is the sample variance; rescale to population.
	n := float64(len(x))
	variance := stat.Variance(x, nil) * (n - 1) / n
	return mean, math.Sqrt(variance)
}

func (gonumEngine) FFT(x []float64) []complex128 {
	seq := make([]complex128, len(x))
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	return fourier.NewCmplxFFT(len(seq)).Coefficients(nil, seq)
}

func (gonumEngine) IFFT(coeffs []complex128) []complex128 {
	n := len(coeffs)
	if n == 0 {
		return nil
	}

	out := fourier.NewCmplxFFT(n).Sequence(nil, coeffs)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

func (gonumEngine) Correlate(a, b []float64) []float64 {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil
	}

	// Linear convolution of a with reverse(b), zero padded to avoid
	// circular wraparound.
	m := nextPow2(2*n - 1)
	pa := make([]complex128, m)
	pb := make([]complex128, m)
	for i := 0; i < n; i++ {
		pa[i] = complex(a[i], 0)
		pb[i] = complex(b[n-1-i], 0)
	}

	fft := fourier.NewCmplxFFT(m)
	fa := fft.Coefficients(nil, pa)
	fb := fft.Coefficients(nil, pb)
	for i := range fa {
		fa[i] *= fb[i]
	}

	conv := fft.Sequence(nil, fa)
	out := make([]float64, 2*n-1)
	scale := 1 / float64(m)
	for k := range out {
		out[k] = real(conv[k]) * scale
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
