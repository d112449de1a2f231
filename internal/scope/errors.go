package scope

import "fmt"

// ProtocolError indicates a malformed, truncated or otherwise unexpected
// instrument response. The connection state is undefined afterwards;
// callers should reconnect.
type ProtocolError struct {
	msg string
	err error
}

func NewProtocolError(msg string) *ProtocolError {
	return &ProtocolError{msg: msg}
}

func NewProtocolErrorf(format string, args ...any) *ProtocolError {
	err := fmt.Errorf(format, args...)
	return &ProtocolError{msg: err.Error(), err: err}
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.msg }

func (e *ProtocolError) Unwrap() error { return e.err }

// TimeoutError indicates the instrument did not answer within the
// transport's timeout. The pending exchange is abandoned; the connection
// should be re-established before further use.
type TimeoutError struct {
	Op  string
	err error
}

func NewTimeoutError(op string, err error) *TimeoutError {
	return &TimeoutError{Op: op, err: err}
}

func (e *TimeoutError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("timeout during %s: %s", e.Op, e.err.Error())
	}
	return "timeout during " + e.Op
}

func (e *TimeoutError) Unwrap() error { return e.err }

func (e *TimeoutError) Timeout() bool { return true }

// InvalidChannelError indicates a channel number outside the instrument's
// range, or a channel that is not currently enabled for acquisition.
type InvalidChannelError struct {
	Channel int
	Reason  string
}

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("invalid channel %d: %s", e.Channel, e.Reason)
}

// UnsupportedStatisticError indicates an unknown statistic name in a
// waveform query.
type UnsupportedStatisticError struct {
	Name string
}

func (e *UnsupportedStatisticError) Error() string {
	return fmt.Sprintf("unsupported statistic %q", e.Name)
}

// ShapeMismatchError indicates the post-processor was handed arrays of
// incompatible lengths. It never originates from instrument I/O.
type ShapeMismatchError struct {
	Want int
	Got  int
	What string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: expected length %d, got %d", e.What, e.Want, e.Got)
}
