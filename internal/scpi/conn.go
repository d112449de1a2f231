// Package scpi implements the TCP transport used to exchange SCPI
// commands with a networked instrument. Commands are newline-terminated
// ASCII lines; replies are either single text lines or binary block
// transfers prefixed with a length header.
package scpi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tspspi/gomso5000/internal/scope"
)

const (
	// DefaultTimeout bounds a single request/response exchange.
	DefaultTimeout = 5 * time.Second

	blockMarker = '#'
	terminator  = '\n'
)

// WithTimeout sets the per-exchange timeout of the connection.
func WithTimeout(d time.Duration) func(c *Conn) {
	return func(c *Conn) {
		c.timeout = d
	}
}

// WithLogger sets the logger for the connection.
func WithLogger(logger *slog.Logger) func(c *Conn) {
	return func(c *Conn) {
		c.logger = logger
	}
}

// Conn is a synchronous SCPI connection. One exchange is in flight at a
// time; callers must not issue overlapping commands from multiple
// goroutines, no internal locking is provided.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader

	timeout time.Duration
	logger  *slog.Logger
}

// Dial opens a TCP connection to an instrument.
func Dial(ctx context.Context, addr string, options ...func(c *Conn)) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	c := Conn{
		conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// Send writes a command that produces no reply.
func (c *Conn) Send(ctx context.Context, cmd string) error {
	if err := c.write(ctx, cmd); err != nil {
		return err
	}

	c.logger.Debug("command sent", slog.String("cmd", cmd))
	return nil
}

// Query writes a command and reads a single reply line, trimmed of its
// terminator.
func (c *Conn) Query(ctx context.Context, cmd string) (string, error) {
	if err := c.write(ctx, cmd); err != nil {
		return "", err
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return "", fmt.Errorf("setting read deadline: %w", err)
	}

	line, err := c.r.ReadString(terminator)
	if err != nil {
		return "", c.commError("query "+cmd, err)
	}

	reply := line[:len(line)-1]
	if n := len(reply); n > 0 && reply[n-1] == '\r' {
		reply = reply[:n-1]
	}

	c.logger.Debug("query answered", slog.String("cmd", cmd), slog.String("reply", reply))
	return reply, nil
}

// QueryBlock writes a command and reads a binary block reply: a '#'
// marker, one digit giving the length of the length field, that many
// digits giving the payload byte count, the payload itself and a
// trailing terminator. The payload must arrive in full, a short block
// is a protocol error.
func (c *Conn) QueryBlock(ctx context.Context, cmd string) ([]byte, error) {
	if err := c.write(ctx, cmd); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	op := "block query " + cmd

	marker, err := c.r.ReadByte()
	if err != nil {
		return nil, c.commError(op, err)
	}
	if marker != blockMarker {
		return nil, scope.NewProtocolErrorf("block reply starts with %q, expected '#'", marker)
	}

	digit, err := c.r.ReadByte()
	if err != nil {
		return nil, c.commError(op, err)
	}
	headerLen := int(digit - '0')
	if headerLen < 1 || headerLen > 9 {
		return nil, scope.NewProtocolErrorf("invalid block header length digit %q", digit)
	}

	header := make([]byte, headerLen)
	if _, err = io.ReadFull(c.r, header); err != nil {
		return nil, c.commError(op, err)
	}

	count, err := strconv.Atoi(string(header))
	if err != nil {
		return nil, scope.NewProtocolErrorf("invalid block length %q: %s", header, err.Error())
	}

	payload := make([]byte, count)
	if _, err = io.ReadFull(c.r, payload); err != nil {
		return nil, c.commError(op, err)
	}

	// Pop off the terminator following the payload.
	if tail, err := c.r.ReadByte(); err != nil {
		return nil, c.commError(op, err)
	} else if tail != terminator {
		return nil, scope.NewProtocolErrorf("unexpected byte %q after block payload", tail)
	}

	c.logger.Debug("block received",
		slog.String("cmd", cmd),
		slog.String("size", humanize.Bytes(uint64(count))))

	return payload, nil
}

// Close releases the underlying socket. It is safe to call on all exit
// paths, including after transport errors.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := c.conn.Write(append([]byte(cmd), terminator)); err != nil {
		return c.commError("send "+cmd, err)
	}
	return nil
}

// deadline combines the per-exchange timeout with an earlier context
// deadline, if one is set.
func (c *Conn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (c *Conn) commError(op string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return scope.NewTimeoutError(op, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return scope.NewProtocolErrorf("connection closed during %s: %s", op, err.Error())
	}
	return fmt.Errorf("%s: %w", op, err)
}
