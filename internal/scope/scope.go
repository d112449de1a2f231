package scope

import "context"

// Identity holds the parsed *IDN? response of an instrument.
type Identity struct {
	Manufacturer string
	Product      string
	Serial       string
	Version      string
}

// SweepMode selects how the trigger system arms between acquisitions.
type SweepMode string

const (
	SweepAuto   SweepMode = "AUTO"
	SweepNormal SweepMode = "NORM"
	SweepSingle SweepMode = "SING"
)

// TriggerMode selects the trigger detection scheme.
type TriggerMode string

const (
	TriggerEdge  TriggerMode = "EDGE"
	TriggerPulse TriggerMode = "PULS"
	TriggerSlope TriggerMode = "SLOP"
)

// TimebaseMode selects the horizontal display mode.
type TimebaseMode string

const (
	TimebaseMain TimebaseMode = "MAIN"
	TimebaseXY   TimebaseMode = "XY"
	TimebaseRoll TimebaseMode = "ROLL"
)

// RunMode reflects the acquisition run state.
type RunMode string

const (
	RunStop   RunMode = "STOP"
	RunRun    RunMode = "RUN"
	RunSingle RunMode = "SING"
)

// Coupling selects the input coupling of a channel.
type Coupling string

const (
	CouplingDC  Coupling = "DC"
	CouplingAC  Coupling = "AC"
	CouplingGND Coupling = "GND"
)

// Transport is the request/response primitive an oscilloscope driver sits
// on. Commands are ASCII lines; the terminator is appended by the
// implementation. Query returns a single trimmed reply line, QueryBlock a
// length-prefixed binary block payload. Implementations are not safe for
// concurrent exchanges; callers issue one command at a time.
type Transport interface {
	Send(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
	QueryBlock(ctx context.Context, cmd string) ([]byte, error)
	Close() error
}

// Oscilloscope is the operation surface a scope driver exposes. Channel
// numbers are 1-based. All calls block until the instrument answers or
// the transport times out; none of them retry.
type Oscilloscope interface {
	Identify(ctx context.Context) (*Identity, error)

	SetChannelEnable(ctx context.Context, channel int, enabled bool) error
	ChannelEnabled(ctx context.Context, channel int) (bool, error)
	SetChannelCoupling(ctx context.Context, channel int, mode Coupling) error
	ChannelCoupling(ctx context.Context, channel int) (Coupling, error)
	SetChannelProbeRatio(ctx context.Context, channel int, ratio float64) error
	ChannelProbeRatio(ctx context.Context, channel int) (float64, error)

	SetSweepMode(ctx context.Context, mode SweepMode) error
	SweepMode(ctx context.Context) (SweepMode, error)
	SetTriggerMode(ctx context.Context, mode TriggerMode) error
	TriggerMode(ctx context.Context) (TriggerMode, error)
	ForceTrigger(ctx context.Context) error
	SetRunMode(ctx context.Context, mode RunMode) error
	RunMode(ctx context.Context) (RunMode, error)
	SetTimebaseMode(ctx context.Context, mode TimebaseMode) error
	TimebaseMode(ctx context.Context) (TimebaseMode, error)
	SetTimebaseScale(ctx context.Context, secondsPerDiv float64) error
	TimebaseScale(ctx context.Context) (float64, error)

	QueryWaveform(ctx context.Context, channels []int, stats ...Stat) (*Result, error)

	Close() error
}
