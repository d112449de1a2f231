package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tspspi/gomso5000/cmd/msofetch/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath   string
		host         string
		port         int
		timeout      float64
		channels     string
		stats        string
		engine       string
		normalize    bool
		endis        bool
		differential bool
		delay        float64
		plotPath     string
		dataDir      string
	)

	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&host, "host", "", "Hostname or IP address of the oscilloscope")
	flag.IntVar(&port, "port", 0, "SCPI port of the oscilloscope")
	flag.Float64Var(&timeout, "timeout", 0, "Exchange timeout in seconds")
	flag.StringVar(&channels, "chan", "", "Comma separated channels to acquire, e.g. 1,2")
	flag.StringVar(&stats, "stat", "", "Comma separated statistics: mean, fft, ifft, correlate, autocorrelate")
	flag.StringVar(&engine, "engine", "", "Numeric backend: naive or gonum")
	flag.BoolVar(&normalize, "normalize", false, "Normalize correlation results by signal energy")
	flag.BoolVar(&endis, "endis", false, "Enable the requested channels and disable all others")
	flag.BoolVar(&differential, "differential", false, "Acquire a background waveform and subtract it")
	flag.Float64Var(&delay, "delay", 0, "Settle delay in seconds before the background measurement")
	flag.StringVar(&plotPath, "o", "", "PNG plot output file")
	flag.StringVar(&dataDir, "data", "", "Directory receiving the acquisition archive")
	flag.Parse()

	var config *app.Config
	var err error

	if configPath != "" {
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	} else {
		config = app.DefaultConfig()
	}

	if host != "" {
		config.Scope.Host = host
	}
	if port != 0 {
		config.Scope.Port = port
	}
	if timeout > 0 {
		config.Scope.TimeoutSeconds = timeout
	}
	if channels != "" {
		if config.Acquire.Channels, err = parseIntList(channels); err != nil {
			logger.Error(fmt.Sprintf("invalid channel list: %s", err.Error()))
			os.Exit(1)
		}
	}
	if stats != "" {
		config.Acquire.Stats = splitList(stats)
	}
	if engine != "" {
		config.Acquire.Engine = engine
	}
	if normalize {
		config.Acquire.NormalizeCorrelation = true
	}
	if endis {
		config.Acquire.EnableChannels = true
	}
	if differential {
		config.Acquire.Differential = true
	}
	if delay > 0 {
		config.Acquire.SettleDelaySeconds = delay
	}
	if plotPath != "" {
		config.Output.PlotPath = plotPath
	}
	if dataDir != "" {
		config.Output.DataDirectory = dataDir
	}

	if err = logLevel.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
		logger.Error(fmt.Sprintf("invalid log level: %s", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntList(s string) ([]int, error) {
	parts := splitList(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
