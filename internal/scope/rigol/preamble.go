package rigol

import (
	"strconv"
	"strings"

	"github.com/tspspi/gomso5000/internal/scope"
)

// Preamble holds the scale metadata reported by :WAV:PRE? for the
// currently selected waveform source. YIncrement folds the channel's
// volts per division and probe ratio into a single volts-per-code
// factor, so the code to voltage conversion is affine:
//
//	v = (code - YOrigin - YReference) * YIncrement
//
// XIncrement is the per-sample time step derived from the timebase
// scale, XOrigin the time of the first sample relative to the trigger.
type Preamble struct {
	Format int // 0 BYTE, 1 WORD, 2 ASCII
	Type   int // 0 NORMal, 1 MAXimum, 2 RAW
	Points int
	Count  int

	XIncrement float64
	XOrigin    float64
	XReference float64
	YIncrement float64
	YOrigin    float64
	YReference float64
}

// parsePreamble decodes the ten comma-separated preamble fields.
func parsePreamble(s string) (*Preamble, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	if len(fields) != 10 {
		return nil, scope.NewProtocolErrorf("malformed preamble %q: expected 10 fields, got %d", s, len(fields))
	}

	ints := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return nil, scope.NewProtocolErrorf("malformed preamble field %d %q: %s", i, fields[i], err.Error())
		}
		ints[i] = v
	}

	floats := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+4]), 64)
		if err != nil {
			return nil, scope.NewProtocolErrorf("malformed preamble field %d %q: %s", i+4, fields[i+4], err.Error())
		}
		floats[i] = v
	}

	p := Preamble{
		Format: ints[0],
		Type:   ints[1],
		Points: ints[2],
		Count:  ints[3],

		XIncrement: floats[0],
		XOrigin:    floats[1],
		XReference: floats[2],
		YIncrement: floats[3],
		YOrigin:    floats[4],
		YReference: floats[5],
	}

	if p.Points <= 0 {
		return nil, scope.NewProtocolErrorf("preamble declares %d points", p.Points)
	}

	return &p, nil
}

// Voltage converts a single raw sample code to volts.
func (p *Preamble) Voltage(code byte) float64 {
	return (float64(code) - p.YOrigin - p.YReference) * p.YIncrement
}

// Decode converts a block payload of one-byte sample codes into a
// calibrated voltage array. The conversion is identical for every
// sample of a run.
func (p *Preamble) Decode(payload []byte) []float64 {
	y := make([]float64, len(payload))
	for i, code := range payload {
		y[i] = p.Voltage(code)
	}
	return y
}

// TimeAxis constructs the evenly spaced time axis of the acquisition,
// starting at the pre-trigger offset.
func (p *Preamble) TimeAxis() []float64 {
	x := make([]float64, p.Points)
	for i := range x {
		x[i] = p.XOrigin + float64(i)*p.XIncrement
	}
	return x
}
