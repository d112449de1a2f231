package dsp

import "math"

// naiveEngine implements Engine with direct sequential loops. It is the
// reference implementation; the accelerated engine must agree with it
// within floating-point tolerance.
type naiveEngine struct{}

func (naiveEngine) Name() string { return EngineNaive }

func (naiveEngine) MeanStd(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))

	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(x)))
}

func (naiveEngine) FFT(x []float64) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var acc complex128
		for i := 0; i < n; i++ {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			acc += complex(x[i]*math.Cos(angle), x[i]*math.Sin(angle))
		}
		out[k] = acc
	}
	return out
}

func (naiveEngine) IFFT(coeffs []complex128) []complex128 {
	n := len(coeffs)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var acc complex128
		for i := 0; i < n; i++ {
			angle := 2 * math.Pi * float64(k) * float64(i) / float64(n)
			acc += coeffs[i] * complex(math.Cos(angle), math.Sin(angle))
		}
		out[k] = acc / complex(float64(n), 0)
	}
	return out
}

func (naiveEngine) Correlate(a, b []float64) []float64 {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil
	}

	out := make([]float64, 2*n-1)
	for k := range out {
		lag := k - (n - 1)
		var acc float64
		for i := 0; i < n; i++ {
			j := i - lag
			if j >= 0 && j < n {
				acc += a[i] * b[j]
			}
		}
		out[k] = acc
	}
	return out
}
