package rigol

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tspspi/gomso5000/internal/scope"
)

// QueryWaveform acquires the currently displayed waveform of each
// requested channel and assembles a scope.Result with a shared time
// axis and one calibrated voltage array per channel. Requested
// statistics are computed afterwards from the decoded arrays only; no
// further instrument I/O takes place. Any failure aborts the whole
// query, partial results are never returned.
func (m *MSO5000) QueryWaveform(ctx context.Context, channels []int, stats ...scope.Stat) (*scope.Result, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel must be requested")
	}
	for _, stat := range stats {
		if _, err := scope.ParseStat(string(stat)); err != nil {
			return nil, err
		}
	}

	seen := make(map[int]bool, len(channels))
	for _, ch := range channels {
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		if seen[ch] {
			return nil, &scope.InvalidChannelError{Channel: ch, Reason: "requested twice"}
		}
		seen[ch] = true

		enabled, err := m.ChannelEnabled(ctx, ch)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, &scope.InvalidChannelError{Channel: ch, Reason: "channel is not enabled"}
		}
	}

	horizontal, err := m.queryHorizontal(ctx)
	if err != nil {
		return nil, err
	}

	res := scope.Result{
		Channels:   make(map[int][]float64, len(channels)),
		Horizontal: *horizontal,
	}

	for _, ch := range channels {
		y, pre, err := m.fetchChannel(ctx, ch)
		if err != nil {
			return nil, err
		}

		if res.X == nil {
			res.X = pre.TimeAxis()
		} else if len(y) != len(res.X) {
			return nil, scope.NewProtocolErrorf("channel %d returned %d samples, expected %d", ch, len(y), len(res.X))
		}

		res.Channels[ch] = y
	}

	res.Horizontal.RecordLength = len(res.X)

	if err := scope.ApplyStats(&res, m.engine, m.normalize, stats...); err != nil {
		return nil, err
	}

	return &res, nil
}

// queryHorizontal retrieves the acquisition-wide horizontal metadata,
// shared across all channels of a query.
func (m *MSO5000) queryHorizontal(ctx context.Context) (*scope.Horizontal, error) {
	tdiv, err := m.queryFloat(ctx, ":TIM:SCAL?")
	if err != nil {
		return nil, err
	}

	srate, err := m.queryFloat(ctx, ":ACQ:SRAT?")
	if err != nil {
		return nil, err
	}

	// Memory depth answers AUTO until the instrument has settled on a
	// record length; the per-channel preamble is authoritative then.
	depth, err := m.t.Query(ctx, ":ACQ:MDEP?")
	if err != nil {
		return nil, err
	}

	var points int
	if !strings.EqualFold(strings.TrimSpace(depth), "AUTO") {
		v, err := strconv.ParseFloat(strings.TrimSpace(depth), 64)
		if err != nil {
			return nil, scope.NewProtocolErrorf("unexpected memory depth %q: %s", depth, err.Error())
		}
		points = int(v)
	}

	return &scope.Horizontal{
		TimePerDivision: tdiv,
		SampleRate:      srate,
		RecordLength:    points,
	}, nil
}

// fetchChannel runs the per-channel acquisition exchange: source select,
// transfer mode and format, preamble, block transfer, decode.
func (m *MSO5000) fetchChannel(ctx context.Context, channel int) ([]float64, *Preamble, error) {
	if err := m.t.Send(ctx, fmt.Sprintf(":WAV:SOUR CHAN%d", channel)); err != nil {
		return nil, nil, err
	}
	if err := m.t.Send(ctx, ":WAV:MODE NORM"); err != nil {
		return nil, nil, err
	}
	if err := m.t.Send(ctx, ":WAV:FORM BYTE"); err != nil {
		return nil, nil, err
	}

	resp, err := m.t.Query(ctx, ":WAV:PRE?")
	if err != nil {
		return nil, nil, err
	}

	pre, err := parsePreamble(resp)
	if err != nil {
		return nil, nil, err
	}

	payload, err := m.t.QueryBlock(ctx, ":WAV:DATA?")
	if err != nil {
		return nil, nil, err
	}
	if len(payload) != pre.Points {
		return nil, nil, scope.NewProtocolErrorf("channel %d block carries %d samples, preamble declares %d",
			channel, len(payload), pre.Points)
	}

	m.logger.Debug("channel acquired",
		slog.Int("channel", channel),
		slog.Int("points", pre.Points))

	return pre.Decode(payload), pre, nil
}
