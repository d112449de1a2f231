package rigol

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/tspspi/gomso5000/internal/scope"
)

func TestQueryWaveform(t *testing.T) {
	ft := newFakeTransport()
	ft.scriptChannel(1, []float64{0, 0.5, 1, 0.5})
	ft.scriptChannel(2, []float64{-0.5, 0, 0.5, 0})
	m := newTestDriver(t, ft)

	res, err := m.QueryWaveform(context.Background(), []int{1, 2}, scope.StatMean)
	if err != nil {
		t.Fatalf("QueryWaveform failed: %v", err)
	}

	// Shared time axis from the first preamble: xorig -0.0005, xinc 1e-6.
	if len(res.X) != 4 {
		t.Fatalf("Expected 4 time points, got %d", len(res.X))
	}
	if math.Abs(res.X[0]+0.0005) > 1e-15 {
		t.Errorf("X[0]: got %g, want -0.0005", res.X[0])
	}
	if math.Abs(res.X[1]-res.X[0]-1e-6) > 1e-15 {
		t.Errorf("Time step: got %g, want 1e-6", res.X[1]-res.X[0])
	}

	want := map[int][]float64{
		1: {0, 0.5, 1, 0.5},
		2: {-0.5, 0, 0.5, 0},
	}
	for ch, volts := range want {
		got, ok := res.Channels[ch]
		if !ok {
			t.Fatalf("Missing channel %d", ch)
		}
		for i := range volts {
			if math.Abs(got[i]-volts[i]) > 1e-9 {
				t.Errorf("channel %d sample %d: got %g, want %g", ch, i, got[i], volts[i])
			}
		}
	}

	if res.Horizontal.TimePerDivision != 1e-3 {
		t.Errorf("TimePerDivision: got %g, want 1e-3", res.Horizontal.TimePerDivision)
	}
	if res.Horizontal.SampleRate != 1e6 {
		t.Errorf("SampleRate: got %g, want 1e6", res.Horizontal.SampleRate)
	}
	// :ACQ:MDEP? answered AUTO, so the record length comes from the data.
	if res.Horizontal.RecordLength != 4 {
		t.Errorf("RecordLength: got %d, want 4", res.Horizontal.RecordLength)
	}

	if got := res.Means["y1_avg"]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("y1_avg: got %g, want 0.5", got)
	}
	if got := res.Means["y2_avg"]; math.Abs(got-0) > 1e-9 {
		t.Errorf("y2_avg: got %g, want 0", got)
	}
	if _, ok := res.Means["y1_std"]; !ok {
		t.Error("Expected y1_std in the means")
	}
}

// TestQueryWaveform_Tone feeds a synthetic offset sine through the whole
// pipeline and checks that the statistics land where the signal says.
func TestQueryWaveform_Tone(t *testing.T) {
	const (
		n      = 64
		offset = 0.2
		bin    = 8
	)

	volts := make([]float64, n)
	for i := range volts {
		volts[i] = offset + 0.5*math.Sin(2*math.Pi*bin*float64(i)/n)
	}

	ft := newFakeTransport()
	ft.scriptChannel(1, volts)
	m := newTestDriver(t, ft)

	res, err := m.QueryWaveform(context.Background(), []int{1}, scope.StatMean, scope.StatFFT)
	if err != nil {
		t.Fatalf("QueryWaveform failed: %v", err)
	}

	// Quantization to 10mV codes bounds the error per sample by 5mV.
	if got := res.Means["y1_avg"]; math.Abs(got-offset) > 0.005 {
		t.Errorf("y1_avg: got %g, want %g within 5mV", got, offset)
	}

	coeffs := res.FFT["y1"]
	if len(coeffs) != n {
		t.Fatalf("Expected %d coefficients, got %d", n, len(coeffs))
	}

	peak := 1
	for k := 2; k <= n/2; k++ {
		if cmplx.Abs(coeffs[k]) > cmplx.Abs(coeffs[peak]) {
			peak = k
		}
	}
	if peak != bin {
		t.Errorf("FFT peak at bin %d, want %d", peak, bin)
	}
}

func TestQueryWaveform_CorrelatePairOrder(t *testing.T) {
	ft := newFakeTransport()
	ft.scriptChannel(1, []float64{0, 0.5, 1})
	ft.scriptChannel(2, []float64{1, 0.5, 0})
	m := newTestDriver(t, ft)

	// Channels requested in descending order still key the pair ascending.
	res, err := m.QueryWaveform(context.Background(), []int{2, 1}, scope.StatCorrelate)
	if err != nil {
		t.Fatalf("QueryWaveform failed: %v", err)
	}

	if len(res.Correlation) != 1 {
		t.Fatalf("Expected one pair, got %d", len(res.Correlation))
	}
	c, ok := res.Correlation["y1y2"]
	if !ok {
		t.Fatal("Expected correlation under key y1y2")
	}
	if len(c) != 5 {
		t.Errorf("Expected 5 lags, got %d", len(c))
	}
}

func TestQueryWaveform_MemoryDepth(t *testing.T) {
	ft := newFakeTransport()
	ft.replies[":ACQ:MDEP?"] = "1000"
	ft.scriptChannel(1, []float64{0, 0.5})
	m := newTestDriver(t, ft)

	res, err := m.QueryWaveform(context.Background(), []int{1})
	if err != nil {
		t.Fatalf("QueryWaveform failed: %v", err)
	}

	// The delivered record is authoritative over the configured depth.
	if res.Horizontal.RecordLength != 2 {
		t.Errorf("RecordLength: got %d, want 2", res.Horizontal.RecordLength)
	}
}

func TestQueryWaveform_Validation(t *testing.T) {
	ft := newFakeTransport()
	ft.scriptChannel(1, []float64{0, 0.5})
	ft.replies[":CHAN3:DISP?"] = "0"
	m := newTestDriver(t, ft)

	t.Run("no channels", func(t *testing.T) {
		if _, err := m.QueryWaveform(context.Background(), nil); err == nil {
			t.Fatal("Expected an error for an empty channel list")
		}
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := m.QueryWaveform(context.Background(), []int{7})
		var invalid *scope.InvalidChannelError
		if !errors.As(err, &invalid) {
			t.Fatalf("Expected InvalidChannelError, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := m.QueryWaveform(context.Background(), []int{1, 1})
		var invalid *scope.InvalidChannelError
		if !errors.As(err, &invalid) {
			t.Fatalf("Expected InvalidChannelError, got %v", err)
		}
	})

	t.Run("disabled channel", func(t *testing.T) {
		_, err := m.QueryWaveform(context.Background(), []int{3})
		var invalid *scope.InvalidChannelError
		if !errors.As(err, &invalid) {
			t.Fatalf("Expected InvalidChannelError, got %v", err)
		}
		if invalid.Channel != 3 {
			t.Errorf("Expected channel 3 in the error, got %d", invalid.Channel)
		}
	})

	t.Run("unknown statistic", func(t *testing.T) {
		_, err := m.QueryWaveform(context.Background(), []int{1}, scope.Stat("median"))
		var unsupported *scope.UnsupportedStatisticError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Expected UnsupportedStatisticError, got %v", err)
		}
	})
}

func TestQueryWaveform_ShortBlock(t *testing.T) {
	ft := newFakeTransport()
	ft.scriptChannel(1, []float64{0, 0.5, 1, 0.5})
	// Preamble declares four points, the block carries three.
	ft.blocks[1] = ft.blocks[1][:3]
	m := newTestDriver(t, ft)

	_, err := m.QueryWaveform(context.Background(), []int{1})
	var perr *scope.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProtocolError, got %v", err)
	}
}

func TestQueryWaveform_ChannelLengthMismatch(t *testing.T) {
	ft := newFakeTransport()
	ft.scriptChannel(1, []float64{0, 0.5, 1, 0.5})
	ft.scriptChannel(2, []float64{0, 0.5})
	m := newTestDriver(t, ft)

	_, err := m.QueryWaveform(context.Background(), []int{1, 2})
	var perr *scope.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProtocolError, got %v", err)
	}
}

func TestQueryWaveform_TransferSetup(t *testing.T) {
	ft := newFakeTransport()
	ft.scriptChannel(2, []float64{0, 0.5})
	m := newTestDriver(t, ft)

	if _, err := m.QueryWaveform(context.Background(), []int{2}); err != nil {
		t.Fatalf("QueryWaveform failed: %v", err)
	}

	// The transfer setup must select the source and force single-byte
	// normal mode before reading the preamble and the data block.
	want := []string{":WAV:SOUR CHAN2", ":WAV:MODE NORM", ":WAV:FORM BYTE", ":WAV:PRE?", ":WAV:DATA?"}
	got := ft.sent[len(ft.sent)-len(want):]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if ft.sent[0] != ":CHAN2:DISP?" {
		t.Errorf("Expected the enable check first, got %q", ft.sent[0])
	}
}
