package app

import (
	"image/color"
	"testing"

	"github.com/tspspi/gomso5000/internal/scope"
)

func TestPanelBounds(t *testing.T) {
	panel := Panel{Traces: []Trace{
		{X: []float64{0, 1, 2}, Y: []float64{-1, 0, 3}},
		{X: []float64{0, 1, 2}, Y: []float64{0.5, 0.5, 0.5}},
	}}

	xMin, xMax, yMin, yMax, err := panelBounds(panel)
	if err != nil {
		t.Fatalf("panelBounds failed: %v", err)
	}
	if xMin != 0 || xMax != 2 {
		t.Errorf("x extent: got [%g, %g], want [0, 2]", xMin, xMax)
	}
	// The y extent is padded by 5% beyond the data.
	if yMin >= -1 || yMax <= 3 {
		t.Errorf("y extent [%g, %g] does not enclose the data", yMin, yMax)
	}
}

func TestPanelBounds_FlatTrace(t *testing.T) {
	panel := Panel{Traces: []Trace{
		{X: []float64{0, 1}, Y: []float64{2, 2}},
	}}

	_, _, yMin, yMax, err := panelBounds(panel)
	if err != nil {
		t.Fatalf("panelBounds failed: %v", err)
	}
	// A flat trace still gets a non-degenerate vertical range.
	if yMax <= yMin {
		t.Errorf("Expected a padded range, got [%g, %g]", yMin, yMax)
	}
}

func TestPanelBounds_Errors(t *testing.T) {
	if _, _, _, _, err := panelBounds(Panel{Title: "empty"}); err == nil {
		t.Error("Expected an error for a panel without traces")
	}

	mismatched := Panel{Traces: []Trace{
		{X: []float64{0, 1, 2}, Y: []float64{0, 1}},
	}}
	if _, _, _, _, err := panelBounds(mismatched); err == nil {
		t.Error("Expected an error for mismatched x and y lengths")
	}
}

func TestRender(t *testing.T) {
	renderer, err := NewWaveformRenderer(RenderConfig{Width: 200, Height: 100})
	if err != nil {
		t.Fatalf("NewWaveformRenderer failed: %v", err)
	}
	defer renderer.Close()

	panels := []Panel{
		{Title: "CH1", Traces: []Trace{
			{X: []float64{0, 1, 2, 3}, Y: []float64{0, 1, 0, -1}, Color: TraceColor(1)},
		}},
		{Title: "CH2", Traces: []Trace{
			{X: []float64{0, 1, 2, 3}, Y: []float64{1, 1, 1, 1}, Color: TraceColor(2)},
		}},
	}

	img, err := renderer.Render(panels)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	wantWidth := 200 + defaultLeftBorder + defaultRightBorder
	wantHeight := 2*(defaultTopBorder+100) + defaultBottomBorder
	bounds := img.Bounds()
	if bounds.Dx() != wantWidth || bounds.Dy() != wantHeight {
		t.Errorf("Image size: got %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), wantWidth, wantHeight)
	}

	// Each trace color must show up somewhere in the image.
	for _, want := range []color.RGBA{TraceColor(1), TraceColor(2)} {
		found := false
		for y := bounds.Min.Y; y < bounds.Max.Y && !found; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if img.RGBAAt(x, y) == want {
					found = true
					break
				}
			}
		}
		if !found {
			t.Errorf("Trace color %v not found in the rendered image", want)
		}
	}

	if _, err = renderer.Render(nil); err == nil {
		t.Error("Expected an error when rendering no panels")
	}
}

func TestSubtract(t *testing.T) {
	foreground := &scope.Result{Channels: map[int][]float64{1: {1, 2, 3}}}
	background := &scope.Result{Channels: map[int][]float64{1: {0.5, 0.5, 0.5}}}

	diff, err := subtract(foreground, background)
	if err != nil {
		t.Fatalf("subtract failed: %v", err)
	}
	want := []float64{0.5, 1.5, 2.5}
	for i := range want {
		if diff[1][i] != want[i] {
			t.Errorf("sample %d: got %g, want %g", i, diff[1][i], want[i])
		}
	}

	short := &scope.Result{Channels: map[int][]float64{1: {0.5}}}
	if _, err = subtract(foreground, short); err == nil {
		t.Error("Expected an error for mismatched record lengths")
	}
}
