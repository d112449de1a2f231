package app

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tspspi/gomso5000/internal/dsp"
	"github.com/tspspi/gomso5000/internal/scope"
	"github.com/tspspi/gomso5000/internal/scope/rigol"
	"github.com/tspspi/gomso5000/internal/storage"
)

// Run connects to the instrument, acquires the requested waveforms and
// writes the configured outputs.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if err := config.Validate(); err != nil {
		return err
	}

	stats, err := scope.ParseStats(config.Acquire.Stats)
	if err != nil {
		return err
	}

	engine, err := dsp.New(config.Acquire.Engine)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(config.Scope.Host, strconv.Itoa(config.Scope.Port))
	timeout := time.Duration(config.Scope.TimeoutSeconds * float64(time.Second))

	logger.Debug("connecting", slog.String("addr", addr))
	mso, err := rigol.Dial(ctx, addr, timeout,
		rigol.WithLogger(logger),
		rigol.WithEngine(engine),
		rigol.WithNormalizedCorrelation(config.Acquire.NormalizeCorrelation))
	if err != nil {
		return fmt.Errorf("connecting to instrument: %w", err)
	}
	defer mso.Close()

	identity, err := mso.Identify(ctx)
	if err != nil {
		return err
	}

	if config.Acquire.EnableChannels {
		if err = switchChannels(ctx, mso, config.Acquire.Channels, logger); err != nil {
			return err
		}
	}

	logger.Info("gathering data", slog.Any("channels", config.Acquire.Channels))
	foreground, err := mso.QueryWaveform(ctx, config.Acquire.Channels, stats...)
	if err != nil {
		return fmt.Errorf("querying waveform: %w", err)
	}
	foregroundAt := time.Now()

	var background *scope.Result
	var backgroundAt time.Time
	var diff map[int][]float64

	if config.Acquire.Differential {
		delay := time.Duration(config.Acquire.SettleDelaySeconds * float64(time.Second))
		logger.Info("waiting before background measurement", slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		logger.Info("gathering background data")
		if background, err = mso.QueryWaveform(ctx, config.Acquire.Channels, stats...); err != nil {
			return fmt.Errorf("querying background waveform: %w", err)
		}
		backgroundAt = time.Now()

		if diff, err = subtract(foreground, background); err != nil {
			return err
		}
	}

	if config.Output.DataDirectory != "" {
		if err = archive(ctx, config, identity, foreground, foregroundAt, background, backgroundAt, logger); err != nil {
			return err
		}
	}

	if config.Output.PlotPath != "" {
		if err = writePlot(config, foreground, background, diff); err != nil {
			return err
		}
		logger.Info("plot written", slog.String("path", config.Output.PlotPath))
	}

	return nil
}

// switchChannels enables the requested channels and disables all others.
func switchChannels(ctx context.Context, mso scope.Oscilloscope, channels []int, logger *slog.Logger) error {
	requested := make(map[int]bool, len(channels))
	for _, ch := range channels {
		requested[ch] = true
	}

	for ch := 1; ch <= 4; ch++ {
		if requested[ch] {
			logger.Info("enabling channel", slog.Int("channel", ch))
		} else {
			logger.Info("disabling channel", slog.Int("channel", ch))
		}
		if err := mso.SetChannelEnable(ctx, ch, requested[ch]); err != nil {
			return fmt.Errorf("switching channel %d: %w", ch, err)
		}
	}
	return nil
}

// subtract computes the per-channel difference of two acquisitions.
func subtract(foreground, background *scope.Result) (map[int][]float64, error) {
	diff := make(map[int][]float64, len(foreground.Channels))
	for ch, fg := range foreground.Channels {
		bg, ok := background.Channels[ch]
		if !ok || len(bg) != len(fg) {
			return nil, &scope.ShapeMismatchError{Want: len(fg), Got: len(bg), What: fmt.Sprintf("differential channel %d", ch)}
		}

		d := make([]float64, len(fg))
		for i := range fg {
			d[i] = fg[i] - bg[i]
		}
		diff[ch] = d
	}
	return diff, nil
}

func archive(ctx context.Context, config *Config, identity *scope.Identity,
	foreground *scope.Result, foregroundAt time.Time,
	background *scope.Result, backgroundAt time.Time, logger *slog.Logger) (err error) {

	dataDir := config.Output.DataDirectory
	stat, err := os.Stat(dataDir)
	if err != nil {
		return fmt.Errorf("data directory '%s' is not accessible: %w", dataDir, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("invalid data directory '%s'", dataDir)
	}

	dbPath := filepath.Join(dataDir, fmt.Sprintf("mso_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	store := storage.New(dbPath)
	defer closeWithError(store, &err)

	sessionID, err := store.CreateSession(ctx, identity, config.Acquire)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	if err = store.StoreResult(ctx, sessionID, foregroundAt, foreground); err != nil {
		return fmt.Errorf("archiving waveform: %w", err)
	}
	if background != nil {
		if err = store.StoreResult(ctx, sessionID, backgroundAt, background); err != nil {
			return fmt.Errorf("archiving background waveform: %w", err)
		}
	}

	logger.Info("acquisition archived", slog.String("path", dbPath))
	return nil
}

func writePlot(config *Config, foreground, background *scope.Result, diff map[int][]float64) (err error) {
	renderer, err := NewWaveformRenderer(RenderConfig{
		Width:    config.Output.PlotWidth,
		Height:   config.Output.PlotHeight,
		FontPath: config.Output.FontPath,
		FontSize: config.Output.FontSize,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	defer closeWithError(renderer, &err)

	main := Panel{Title: config.Output.PlotTitle}
	for _, ch := range config.Acquire.Channels {
		main.Traces = append(main.Traces, Trace{
			Label: fmt.Sprintf("CH%d", ch),
			X:     foreground.X,
			Y:     foreground.Channels[ch],
			Color: TraceColor(ch),
		})
		if background != nil {
			main.Traces = append(main.Traces, Trace{
				Label: fmt.Sprintf("CH%d bg", ch),
				X:     background.X,
				Y:     background.Channels[ch],
				Color: fade(TraceColor(ch)),
			})
		}
	}

	panels := []Panel{main}
	if diff != nil {
		diffPanel := Panel{Title: "Difference"}
		for _, ch := range config.Acquire.Channels {
			diffPanel.Traces = append(diffPanel.Traces, Trace{
				Label: fmt.Sprintf("CH%d diff", ch),
				X:     foreground.X,
				Y:     diff[ch],
				Color: TraceColor(ch),
			})
		}
		panels = append(panels, diffPanel)
	}

	img, err := renderer.Render(panels)
	if err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}

	f, err := os.Create(config.Output.PlotPath)
	if err != nil {
		return fmt.Errorf("creating plot file: %w", err)
	}
	defer closeWithError(f, &err)

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding plot: %w", err)
	}
	return nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
