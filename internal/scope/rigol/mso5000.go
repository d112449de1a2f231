// Package rigol implements the scope.Oscilloscope contract for Rigol
// MSO5000-series oscilloscopes over their SCPI network interface.
package rigol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tspspi/gomso5000/internal/dsp"
	"github.com/tspspi/gomso5000/internal/scope"
	"github.com/tspspi/gomso5000/internal/scpi"
)

const (
	Device = "MSO5000"

	// DefaultPort is the SCPI port of the instrument.
	DefaultPort = 5555

	idnPrefix   = "RIGOL TECHNOLOGIES,MSO50"
	numChannels = 4
)

// probeRatios lists the probe attenuation ratios the instrument accepts.
var probeRatios = []float64{
	0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05,
	0.1, 0.2, 0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500,
	1000, 2000, 5000, 10000, 20000, 50000,
}

// timebaseLimitsYT holds the per-model YT-mode timebase scale range in
// seconds per division. Roll mode has its own fixed range.
var timebaseLimitsYT = map[string][2]float64{
	"MSO5354": {1e-9, 1000},
	"MSO5204": {2e-9, 1000},
	"MSO5102": {5e-9, 1000},
	"MSO5104": {5e-9, 1000},
	"MSO5072": {5e-9, 1000},
	"MSO5074": {5e-9, 1000},
}

// WithLogger sets the logger for the driver.
func WithLogger(logger *slog.Logger) func(m *MSO5000) {
	return func(m *MSO5000) {
		m.logger = logger.With(slog.String("device", Device))
	}
}

// WithEngine sets the numeric engine used by the statistics
// post-processor.
func WithEngine(engine dsp.Engine) func(m *MSO5000) {
	return func(m *MSO5000) {
		m.engine = engine
	}
}

// WithNormalizedCorrelation enables energy normalization of cross- and
// autocorrelation results.
func WithNormalizedCorrelation(on bool) func(m *MSO5000) {
	return func(m *MSO5000) {
		m.normalize = on
	}
}

// MSO5000 drives a Rigol MSO5000-series oscilloscope through a
// scope.Transport. It implements scope.Oscilloscope. The driver is
// synchronous: one exchange at a time, no internal locking.
type MSO5000 struct {
	t scope.Transport

	logger    *slog.Logger
	engine    dsp.Engine
	normalize bool

	identity *scope.Identity
}

// New creates a driver on top of an existing transport. The identity is
// queried lazily on first use.
func New(t scope.Transport, options ...func(m *MSO5000)) (*MSO5000, error) {
	engine, err := dsp.New(dsp.EngineNaive)
	if err != nil {
		return nil, err
	}

	m := MSO5000{
		t:      t,
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&m)
	}

	return &m, nil
}

// Dial connects to an instrument at addr (host:port), verifies that it
// identifies as an MSO5000 and returns a ready driver. On identity
// mismatch the connection is closed before returning.
func Dial(ctx context.Context, addr string, timeout time.Duration, options ...func(m *MSO5000)) (*MSO5000, error) {
	connOpts := []func(c *scpi.Conn){}
	if timeout > 0 {
		connOpts = append(connOpts, scpi.WithTimeout(timeout))
	}

	conn, err := scpi.Dial(ctx, addr, connOpts...)
	if err != nil {
		return nil, err
	}

	m, err := New(conn, options...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err = m.Identify(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return m, nil
}

// Identify queries and caches the instrument identity. Unsupported
// devices are rejected.
func (m *MSO5000) Identify(ctx context.Context) (*scope.Identity, error) {
	if m.identity != nil {
		return m.identity, nil
	}

	resp, err := m.t.Query(ctx, "*IDN?")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(resp, idnPrefix) {
		return nil, fmt.Errorf("unsupported device, identifies as %q", resp)
	}

	parts := strings.Split(resp, ",")
	if len(parts) != 4 {
		return nil, scope.NewProtocolErrorf("malformed identity %q", resp)
	}

	m.identity = &scope.Identity{
		Manufacturer: parts[0],
		Product:      parts[1],
		Serial:       parts[2],
		Version:      parts[3],
	}

	m.logger.Info("connected",
		slog.String("product", m.identity.Product),
		slog.String("serial", m.identity.Serial))

	return m.identity, nil
}

// Close releases the underlying transport.
func (m *MSO5000) Close() error {
	return m.t.Close()
}

// Channel configuration

func (m *MSO5000) SetChannelEnable(ctx context.Context, channel int, enabled bool) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	state := "OFF"
	if enabled {
		state = "ON"
	}
	return m.t.Send(ctx, fmt.Sprintf(":CHAN%d:DISP %s", channel, state))
}

func (m *MSO5000) ChannelEnabled(ctx context.Context, channel int) (bool, error) {
	if err := validChannel(channel); err != nil {
		return false, err
	}

	resp, err := m.t.Query(ctx, fmt.Sprintf(":CHAN%d:DISP?", channel))
	if err != nil {
		return false, err
	}

	switch resp {
	case "1", "ON":
		return true, nil
	case "0", "OFF":
		return false, nil
	default:
		return false, scope.NewProtocolErrorf("unexpected channel enable state %q", resp)
	}
}

func (m *MSO5000) SetChannelCoupling(ctx context.Context, channel int, mode scope.Coupling) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	switch mode {
	case scope.CouplingDC, scope.CouplingAC, scope.CouplingGND:
		return m.t.Send(ctx, fmt.Sprintf(":CHAN%d:COUP %s", channel, mode))
	default:
		return fmt.Errorf("unsupported coupling mode %q", mode)
	}
}

func (m *MSO5000) ChannelCoupling(ctx context.Context, channel int) (scope.Coupling, error) {
	if err := validChannel(channel); err != nil {
		return "", err
	}

	resp, err := m.t.Query(ctx, fmt.Sprintf(":CHAN%d:COUP?", channel))
	if err != nil {
		return "", err
	}

	switch mode := scope.Coupling(resp); mode {
	case scope.CouplingDC, scope.CouplingAC, scope.CouplingGND:
		return mode, nil
	default:
		return "", scope.NewProtocolErrorf("unknown coupling mode %q received from device", resp)
	}
}

func (m *MSO5000) SetChannelProbeRatio(ctx context.Context, channel int, ratio float64) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	if !validProbeRatio(ratio) {
		return fmt.Errorf("probe ratio %g is not supported by this device", ratio)
	}
	return m.t.Send(ctx, fmt.Sprintf(":CHAN%d:PROB %g", channel, ratio))
}

func (m *MSO5000) ChannelProbeRatio(ctx context.Context, channel int) (float64, error) {
	if err := validChannel(channel); err != nil {
		return 0, err
	}

	resp, err := m.t.Query(ctx, fmt.Sprintf(":CHAN%d:PROB?", channel))
	if err != nil {
		return 0, err
	}

	ratio, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, scope.NewProtocolErrorf("unexpected probe ratio %q: %s", resp, err.Error())
	}
	if !validProbeRatio(ratio) {
		return 0, scope.NewProtocolErrorf("received unsupported probe ratio %g", ratio)
	}
	return ratio, nil
}

// Trigger and acquisition control

func (m *MSO5000) SetSweepMode(ctx context.Context, mode scope.SweepMode) error {
	switch mode {
	case scope.SweepAuto, scope.SweepNormal, scope.SweepSingle:
		return m.t.Send(ctx, ":TRIG:SWE "+string(mode))
	default:
		return fmt.Errorf("unsupported sweep mode %q", mode)
	}
}

func (m *MSO5000) SweepMode(ctx context.Context) (scope.SweepMode, error) {
	resp, err := m.t.Query(ctx, ":TRIG:SWE?")
	if err != nil {
		return "", err
	}

	switch mode := scope.SweepMode(resp); mode {
	case scope.SweepAuto, scope.SweepNormal, scope.SweepSingle:
		return mode, nil
	default:
		return "", scope.NewProtocolErrorf("unknown sweep mode %q received from device", resp)
	}
}

func (m *MSO5000) SetTriggerMode(ctx context.Context, mode scope.TriggerMode) error {
	switch mode {
	case scope.TriggerEdge, scope.TriggerPulse, scope.TriggerSlope:
		return m.t.Send(ctx, ":TRIG:MODE "+string(mode))
	default:
		return fmt.Errorf("unsupported trigger mode %q", mode)
	}
}

func (m *MSO5000) TriggerMode(ctx context.Context) (scope.TriggerMode, error) {
	resp, err := m.t.Query(ctx, ":TRIG:MODE?")
	if err != nil {
		return "", err
	}

	switch mode := scope.TriggerMode(resp); mode {
	case scope.TriggerEdge, scope.TriggerPulse, scope.TriggerSlope:
		return mode, nil
	default:
		return "", scope.NewProtocolErrorf("unknown trigger mode %q received from device", resp)
	}
}

func (m *MSO5000) ForceTrigger(ctx context.Context) error {
	return m.t.Send(ctx, ":TFOR")
}

func (m *MSO5000) SetRunMode(ctx context.Context, mode scope.RunMode) error {
	switch mode {
	case scope.RunStop:
		return m.t.Send(ctx, ":STOP")
	case scope.RunRun:
		return m.t.Send(ctx, ":RUN")
	case scope.RunSingle:
		return m.t.Send(ctx, ":SING")
	default:
		return fmt.Errorf("unsupported run mode %q", mode)
	}
}

func (m *MSO5000) RunMode(ctx context.Context) (scope.RunMode, error) {
	resp, err := m.t.Query(ctx, ":TRIG:STAT?")
	if err != nil {
		return "", err
	}

	switch resp {
	case "STOP":
		return scope.RunStop, nil
	case "RUN", "AUTO", "WAIT", "TD":
		return scope.RunRun, nil
	default:
		return "", scope.NewProtocolErrorf("unknown trigger state %q received from device", resp)
	}
}

// Timebase

func (m *MSO5000) SetTimebaseMode(ctx context.Context, mode scope.TimebaseMode) error {
	switch mode {
	case scope.TimebaseMain, scope.TimebaseXY, scope.TimebaseRoll:
		return m.t.Send(ctx, ":TIM:MODE "+string(mode))
	default:
		return fmt.Errorf("unsupported timebase mode %q", mode)
	}
}

func (m *MSO5000) TimebaseMode(ctx context.Context) (scope.TimebaseMode, error) {
	resp, err := m.t.Query(ctx, ":TIM:MODE?")
	if err != nil {
		return "", err
	}

	switch mode := scope.TimebaseMode(resp); mode {
	case scope.TimebaseMain, scope.TimebaseXY, scope.TimebaseRoll:
		return mode, nil
	default:
		return "", scope.NewProtocolErrorf("unknown timebase mode %q received from device", resp)
	}
}

// SetTimebaseScale validates the requested scale against the current
// timebase mode and the model's limits before applying it.
func (m *MSO5000) SetTimebaseScale(ctx context.Context, secondsPerDiv float64) error {
	mode, err := m.TimebaseMode(ctx)
	if err != nil {
		return err
	}

	if mode == scope.TimebaseRoll {
		if secondsPerDiv < 200e-3 || secondsPerDiv > 1000 {
			return fmt.Errorf("timebase scale %gs/div is out of the roll mode range 200ms/div to 1ks/div", secondsPerDiv)
		}
	} else {
		id, err := m.Identify(ctx)
		if err != nil {
			return err
		}

		limits, ok := timebaseLimitsYT[id.Product]
		if !ok {
			return fmt.Errorf("no timebase limits known for product %q", id.Product)
		}
		if secondsPerDiv < limits[0] || secondsPerDiv > limits[1] {
			return fmt.Errorf("timebase scale %gs/div is out of range %gs/div to %gs/div for %s",
				secondsPerDiv, limits[0], limits[1], id.Product)
		}
	}

	return m.t.Send(ctx, fmt.Sprintf(":TIM:SCAL %g", secondsPerDiv))
}

func (m *MSO5000) TimebaseScale(ctx context.Context) (float64, error) {
	return m.queryFloat(ctx, ":TIM:SCAL?")
}

func (m *MSO5000) queryFloat(ctx context.Context, cmd string) (float64, error) {
	resp, err := m.t.Query(ctx, cmd)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, scope.NewProtocolErrorf("unexpected response %q to %s: %s", resp, cmd, err.Error())
	}
	return v, nil
}

func validChannel(channel int) error {
	if channel < 1 || channel > numChannels {
		return &scope.InvalidChannelError{Channel: channel, Reason: fmt.Sprintf("out of range 1..%d", numChannels)}
	}
	return nil
}

func validProbeRatio(ratio float64) bool {
	for _, r := range probeRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
