package storage

import (
	"context"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tspspi/gomso5000/internal/scope"
)

// Store archives acquisition sessions, decoded waveforms and computed
// statistics. All write operations are atomic.
type Store interface {
	// CreateSession registers a new acquisition session for an
	// instrument and returns its identifier. config may be a string,
	// []byte or any JSON-serializable value.
	CreateSession(ctx context.Context, identity *scope.Identity, config any) (sessionID int64, err error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreResult archives every channel of a waveform query result,
	// along with its computed statistics, in a single transaction.
	StoreResult(ctx context.Context, sessionID int64, capturedAt time.Time, res *scope.Result) error

	// Waveforms returns the archived waveforms of a session in capture
	// order.
	Waveforms(ctx context.Context, sessionID int64) ([]*Waveform, error)

	// Statistics returns the archived statistics rows of a session.
	Statistics(ctx context.Context, sessionID int64) ([]*Statistic, error)

	// Close releases all database resources. It is safe to call Close
	// multiple times.
	Close() error
}

// Session describes one archived acquisition session.
type Session struct {
	ID           int64
	StartTime    time.Time
	Manufacturer string
	Product      string
	Serial       string
	Version      string
	Config       *string
}

// Waveform is one archived channel trace. Samples are calibrated volts;
// the time axis is reconstructed from XOrigin and XIncrement.
type Waveform struct {
	ID           int64
	SessionID    int64
	Channel      int
	CapturedAt   time.Time
	RecordLength int
	XIncrement   float64
	XOrigin      float64
	Samples      []float64
}

// TimeAxis reconstructs the waveform's time axis.
func (w *Waveform) TimeAxis() []float64 {
	x := make([]float64, w.RecordLength)
	for i := range x {
		x[i] = w.XOrigin + float64(i)*w.XIncrement
	}
	return x
}

// Statistic is one archived statistic value, JSON-encoded. Key follows
// the result key convention, e.g. "y1_avg" or "y1y2".
type Statistic struct {
	ID        int64
	SessionID int64
	Stat      string
	Key       string
	Value     string
}

// New creates a store backed by an SQLite database at dbPath.
func New(dbPath string) Store {
	return NewSqliteStore(dbPath)
}
