package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi            = 120.0
	defaultFont    = 12.0
	tickMarkLength = 5

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	// Screen grid of the instrument: 10 horizontal, 8 vertical divisions
	gridColumns = 10
	gridRows    = 8
)

// channelColors matches the instrument's channel color scheme, darkened
// for a white background.
var channelColors = map[int]color.RGBA{
	1: {R: 0xb8, G: 0xa0, B: 0x00, A: 0xff}, // yellow
	2: {R: 0x00, G: 0x9a, B: 0x9a, A: 0xff}, // cyan
	3: {R: 0xc4, G: 0x00, B: 0xc4, A: 0xff}, // magenta
	4: {R: 0x00, G: 0x50, B: 0xc8, A: 0xff}, // blue
}

// TraceColor returns the plot color of a channel.
func TraceColor(channel int) color.RGBA {
	if c, ok := channelColors[channel]; ok {
		return c
	}
	return color.RGBA{A: 0xff}
}

// fade lightens a trace color, used for background traces drawn behind
// their foreground counterpart.
func fade(c color.RGBA) color.RGBA {
	lighten := func(v uint8) uint8 {
		return uint8((uint16(v) + 2*0xff) / 3)
	}
	return color.RGBA{R: lighten(c.R), G: lighten(c.G), B: lighten(c.B), A: c.A}
}

// Trace is one waveform drawn into a panel. X and Y must have the same
// length.
type Trace struct {
	Label string
	X     []float64
	Y     []float64
	Color color.RGBA
}

// Panel is one vertically stacked plot area holding one or more traces
// over a shared time axis.
type Panel struct {
	Title  string
	Traces []Trace
}

// RenderConfig holds the waveform plot options. Text annotations are
// drawn only when FontPath names a TrueType font file.
type RenderConfig struct {
	Width    int // trace area width per panel
	Height   int // trace area height per panel
	FontPath string
	FontSize float64
}

// WaveformRenderer draws acquired waveforms as a PNG-ready image.
type WaveformRenderer struct {
	config   RenderConfig
	context  *freetype.Context
	fontFace font.Face
}

// NewWaveformRenderer creates a renderer with the given configuration.
func NewWaveformRenderer(config RenderConfig) (*WaveformRenderer, error) {
	if config.Width == 0 {
		config.Width = 1024
	}
	if config.Height == 0 {
		config.Height = 480
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFont
	}

	r := WaveformRenderer{config: config}

	if config.FontPath != "" {
		fontBytes, err := os.ReadFile(config.FontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}
		parsedFont, err := freetype.ParseFont(fontBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}

		ctx := freetype.NewContext()
		ctx.SetDPI(dpi)
		ctx.SetFont(parsedFont)
		ctx.SetFontSize(config.FontSize)
		ctx.SetHinting(font.HintingNone)
		ctx.SetSrc(image.Black)

		r.context = ctx
		r.fontFace = truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		})
	}

	return &r, nil
}

func (r *WaveformRenderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Render draws the panels stacked vertically into a single image.
func (r *WaveformRenderer) Render(panels []Panel) (*image.RGBA, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("nothing to render")
	}

	panelStride := defaultTopBorder + r.config.Height
	fullWidth := r.config.Width + defaultLeftBorder + defaultRightBorder
	fullHeight := len(panels)*panelStride + defaultBottomBorder
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if r.context != nil {
		r.context.SetClip(img.Bounds())
		r.context.SetDst(img)
	}

	for i, panel := range panels {
		area := image.Rect(
			defaultLeftBorder,
			i*panelStride+defaultTopBorder,
			defaultLeftBorder+r.config.Width,
			i*panelStride+defaultTopBorder+r.config.Height,
		)
		if err := r.renderPanel(img, area, panel); err != nil {
			return nil, fmt.Errorf("rendering panel %d: %w", i, err)
		}
	}

	return img, nil
}

func (r *WaveformRenderer) renderPanel(img *image.RGBA, area image.Rectangle, panel Panel) error {
	xMin, xMax, yMin, yMax, err := panelBounds(panel)
	if err != nil {
		return err
	}

	r.drawGrid(img, area)

	for _, trace := range panel.Traces {
		r.drawTrace(img, area, trace, xMin, xMax, yMin, yMax)
	}

	if r.context == nil {
		return nil
	}
	return r.annotate(img, area, panel, xMin, xMax, yMin, yMax)
}

// panelBounds computes the shared data extent of a panel, padding the
// vertical range so flat traces stay visible.
func panelBounds(panel Panel) (xMin, xMax, yMin, yMax float64, err error) {
	if len(panel.Traces) == 0 {
		return 0, 0, 0, 0, fmt.Errorf("panel %q has no traces", panel.Title)
	}

	xMin, xMax = math.Inf(1), math.Inf(-1)
	yMin, yMax = math.Inf(1), math.Inf(-1)
	for _, trace := range panel.Traces {
		if len(trace.X) != len(trace.Y) {
			return 0, 0, 0, 0, fmt.Errorf("trace %q: x and y length differ", trace.Label)
		}
		for i := range trace.X {
			xMin = math.Min(xMin, trace.X[i])
			xMax = math.Max(xMax, trace.X[i])
			yMin = math.Min(yMin, trace.Y[i])
			yMax = math.Max(yMax, trace.Y[i])
		}
	}

	if xMax == xMin {
		xMax = xMin + 1
	}
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 0.5
	}
	yMin -= pad
	yMax += pad

	return xMin, xMax, yMin, yMax, nil
}

func (r *WaveformRenderer) drawGrid(img *image.RGBA, area image.Rectangle) {
	grid := color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	frame := color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}

	for i := 1; i < gridColumns; i++ {
		x := area.Min.X + i*area.Dx()/gridColumns
		for y := area.Min.Y; y < area.Max.Y; y++ {
			img.Set(x, y, grid)
		}
	}
	for i := 1; i < gridRows; i++ {
		y := area.Min.Y + i*area.Dy()/gridRows
		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, grid)
		}
	}

	for x := area.Min.X; x <= area.Max.X; x++ {
		img.Set(x, area.Min.Y, frame)
		img.Set(x, area.Max.Y, frame)
	}
	for y := area.Min.Y; y <= area.Max.Y; y++ {
		img.Set(area.Min.X, y, frame)
		img.Set(area.Max.X, y, frame)
	}

	// Tick marks on the left and bottom edges
	for i := 0; i <= gridRows; i++ {
		y := area.Min.Y + i*area.Dy()/gridRows
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, frame)
		}
	}
	for i := 0; i <= gridColumns; i++ {
		x := area.Min.X + i*area.Dx()/gridColumns
		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, frame)
		}
	}
}

func (r *WaveformRenderer) drawTrace(img *image.RGBA, area image.Rectangle, trace Trace, xMin, xMax, yMin, yMax float64) {
	toPx := func(x, y float64) (int, int) {
		px := area.Min.X + int((x-xMin)/(xMax-xMin)*float64(area.Dx()))
		py := area.Max.Y - int((y-yMin)/(yMax-yMin)*float64(area.Dy()))
		return px, py
	}

	var prevX, prevY int
	for i := range trace.X {
		px, py := toPx(trace.X[i], trace.Y[i])
		if i > 0 {
			drawLine(img, area, prevX, prevY, px, py, trace.Color)
		}
		prevX, prevY = px, py
	}
}

// drawLine draws a clipped line segment using the integer midpoint
// algorithm.
func drawLine(img *image.RGBA, clip image.Rectangle, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(clip) {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (r *WaveformRenderer) annotate(img *image.RGBA, area image.Rectangle, panel Panel, xMin, xMax, yMin, yMax float64) error {
	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Panel title with trace labels, above the trace area
	title := panel.Title
	for _, trace := range panel.Traces {
		if trace.Label != "" {
			title += "  " + trace.Label
		}
	}
	pt := freetype.Pt(area.Min.X, area.Min.Y-fontHeight/2)
	if _, err := r.context.DrawString(title, pt); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}

	// Time extent under the bottom edge
	left := formatSI(xMin, "s")
	pt = freetype.Pt(area.Min.X, area.Max.Y+tickMarkLength+fontHeight)
	if _, err := r.context.DrawString(left, pt); err != nil {
		return fmt.Errorf("drawing time label: %w", err)
	}

	right := formatSI(xMax, "s")
	rightWidth := font.MeasureString(r.fontFace, right)
	pt = freetype.Pt(area.Max.X-rightWidth.Round(), area.Max.Y+tickMarkLength+fontHeight)
	if _, err := r.context.DrawString(right, pt); err != nil {
		return fmt.Errorf("drawing time label: %w", err)
	}

	// Voltage extent along the left edge
	pt = freetype.Pt(2, area.Min.Y+fontHeight)
	if _, err := r.context.DrawString(formatSI(yMax, "V"), pt); err != nil {
		return fmt.Errorf("drawing voltage label: %w", err)
	}
	pt = freetype.Pt(2, area.Max.Y)
	if _, err := r.context.DrawString(formatSI(yMin, "V"), pt); err != nil {
		return fmt.Errorf("drawing voltage label: %w", err)
	}

	return nil
}

func formatSI(v float64, unit string) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	fract, suffix := humanize.ComputeSI(v)
	return fmt.Sprintf("%s%0.2f %s%s", sign, fract, suffix, unit)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
