package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

const tolerance = 1e-9

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: EngineNaive},
		{name: "naive", want: EngineNaive},
		{name: "gonum", want: EngineGonum},
		{name: "numpy", wantErr: true},
	}

	for _, tt := range tests {
		eng, err := New(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error, got engine %q", tt.name, eng.Name())
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q): unexpected error: %v", tt.name, err)
			continue
		}
		if eng.Name() != tt.want {
			t.Errorf("New(%q): got engine %q, want %q", tt.name, eng.Name(), tt.want)
		}
	}
}

func engines(t *testing.T) []Engine {
	t.Helper()

	var out []Engine
	for _, name := range []string{EngineNaive, EngineGonum} {
		eng, err := New(name)
		if err != nil {
			t.Fatalf("Failed to create engine %q: %v", name, err)
		}
		out = append(out, eng)
	}
	return out
}

func TestMeanStd(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		mean float64
		std  float64
	}{
		{name: "empty", x: nil, mean: 0, std: 0},
		{name: "single", x: []float64{3.5}, mean: 3.5, std: 0},
		{name: "constant", x: []float64{2, 2, 2, 2}, mean: 2, std: 0},
		// Population standard deviation: sqrt(sum((x-mean)^2)/N)
		{name: "ramp", x: []float64{1, 2, 3, 4}, mean: 2.5, std: math.Sqrt(1.25)},
		{name: "symmetric", x: []float64{-1, 1}, mean: 0, std: 1},
	}

	for _, eng := range engines(t) {
		for _, tt := range tests {
			t.Run(eng.Name()+"/"+tt.name, func(t *testing.T) {
				mean, std := eng.MeanStd(tt.x)
				if math.Abs(mean-tt.mean) > tolerance {
					t.Errorf("mean: got %g, want %g", mean, tt.mean)
				}
				if math.Abs(std-tt.std) > tolerance {
					t.Errorf("std: got %g, want %g", std, tt.std)
				}
			})
		}
	}
}

func TestFFT_KnownValues(t *testing.T) {
	// DFT of a constant concentrates all energy in bin zero.
	constant := []float64{1, 1, 1, 1}
	// DFT of [1, 0, 0, 0] is flat ones.
	impulse := []float64{1, 0, 0, 0}

	for _, eng := range engines(t) {
		t.Run(eng.Name(), func(t *testing.T) {
			coeffs := eng.FFT(constant)
			if len(coeffs) != len(constant) {
				t.Fatalf("Expected %d coefficients, got %d", len(constant), len(coeffs))
			}
			if cmplx.Abs(coeffs[0]-4) > tolerance {
				t.Errorf("bin 0: got %v, want 4", coeffs[0])
			}
			for k := 1; k < len(coeffs); k++ {
				if cmplx.Abs(coeffs[k]) > tolerance {
					t.Errorf("bin %d: got %v, want 0", k, coeffs[k])
				}
			}

			coeffs = eng.FFT(impulse)
			for k, c := range coeffs {
				if cmplx.Abs(c-1) > tolerance {
					t.Errorf("impulse bin %d: got %v, want 1", k, c)
				}
			}
		})
	}
}

func TestIFFT_RoundTrip(t *testing.T) {
	x := make([]float64, 32)
	for i := range x {
		x[i] = math.Sin(2*math.Pi*3*float64(i)/32) + 0.25*math.Cos(2*math.Pi*7*float64(i)/32)
	}

	for _, eng := range engines(t) {
		t.Run(eng.Name(), func(t *testing.T) {
			back := eng.IFFT(eng.FFT(x))
			if len(back) != len(x) {
				t.Fatalf("Expected %d samples, got %d", len(x), len(back))
			}
			for i := range x {
				if cmplx.Abs(back[i]-complex(x[i], 0)) > 1e-9 {
					t.Errorf("sample %d: got %v, want %g", i, back[i], x[i])
				}
			}
		})
	}
}

func TestCorrelate_KnownValues(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{0, 1, 0.5}

	// Full linear cross-correlation, length 2N-1, lag from -(N-1) to N-1:
	// c[k] = sum_i a[i] * b[i-(k-(N-1))]
	want := []float64{0.5, 2, 3.5, 3, 0}

	for _, eng := range engines(t) {
		t.Run(eng.Name(), func(t *testing.T) {
			got := eng.Correlate(a, b)
			if len(got) != len(want) {
				t.Fatalf("Expected %d lags, got %d", len(want), len(got))
			}
			for k := range want {
				if math.Abs(got[k]-want[k]) > tolerance {
					t.Errorf("lag %d: got %g, want %g", k-(len(a)-1), got[k], want[k])
				}
			}
		})
	}
}

func TestCorrelate_LengthMismatch(t *testing.T) {
	for _, eng := range engines(t) {
		if got := eng.Correlate([]float64{1, 2, 3}, []float64{1, 2}); got != nil {
			t.Errorf("%s: expected nil for mismatched lengths, got %v", eng.Name(), got)
		}
	}
}

// TestEngineParity checks that both backends agree on random-ish input.
func TestEngineParity(t *testing.T) {
	x := make([]float64, 53) // deliberately not a power of two
	y := make([]float64, 53)
	for i := range x {
		x[i] = math.Sin(0.37*float64(i)) + 0.1*float64(i%5)
		y[i] = math.Cos(0.21*float64(i)) - 0.05*float64(i%7)
	}

	naive, err := New(EngineNaive)
	if err != nil {
		t.Fatalf("Failed to create naive engine: %v", err)
	}
	gonum, err := New(EngineGonum)
	if err != nil {
		t.Fatalf("Failed to create gonum engine: %v", err)
	}

	t.Run("MeanStd", func(t *testing.T) {
		m1, s1 := naive.MeanStd(x)
		m2, s2 := gonum.MeanStd(x)
		if math.Abs(m1-m2) > 1e-9 || math.Abs(s1-s2) > 1e-9 {
			t.Errorf("engines disagree: naive (%g, %g), gonum (%g, %g)", m1, s1, m2, s2)
		}
	})

	t.Run("FFT", func(t *testing.T) {
		c1 := naive.FFT(x)
		c2 := gonum.FFT(x)
		for k := range c1 {
			if cmplx.Abs(c1[k]-c2[k]) > 1e-6 {
				t.Errorf("bin %d: naive %v, gonum %v", k, c1[k], c2[k])
			}
		}
	})

	t.Run("IFFT", func(t *testing.T) {
		coeffs := gonum.FFT(x)
		c1 := naive.IFFT(coeffs)
		c2 := gonum.IFFT(coeffs)
		for k := range c1 {
			if cmplx.Abs(c1[k]-c2[k]) > 1e-6 {
				t.Errorf("sample %d: naive %v, gonum %v", k, c1[k], c2[k])
			}
		}
	})

	t.Run("Correlate", func(t *testing.T) {
		c1 := naive.Correlate(x, y)
		c2 := gonum.Correlate(x, y)
		if len(c1) != len(c2) {
			t.Fatalf("length mismatch: naive %d, gonum %d", len(c1), len(c2))
		}
		for k := range c1 {
			if math.Abs(c1[k]-c2[k]) > 1e-6 {
				t.Errorf("lag %d: naive %g, gonum %g", k-(len(x)-1), c1[k], c2[k])
			}
		}
	})
}
