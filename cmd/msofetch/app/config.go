package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tspspi/gomso5000/internal/dsp"
	"github.com/tspspi/gomso5000/internal/scope"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Scope    ScopeConfig   `yaml:"scope"`
	Acquire  AcquireConfig `yaml:"acquire"`
	Output   OutputConfig  `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// ScopeConfig locates the instrument on the network
type ScopeConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	TimeoutSeconds float64 `yaml:"timeoutSeconds"`
}

// AcquireConfig describes what to acquire and which statistics to
// compute over the decoded waveforms
type AcquireConfig struct {
	Channels []int    `yaml:"channels"`
	Stats    []string `yaml:"stats"`

	// Engine selects the numeric backend, "naive" or "gonum".
	Engine               string `yaml:"engine"`
	NormalizeCorrelation bool   `yaml:"normalizeCorrelation"`

	// EnableChannels enables the requested channels on the instrument
	// and disables all others before acquiring.
	EnableChannels bool `yaml:"enableChannels"`

	// Differential acquires a second (background) waveform after
	// SettleDelaySeconds and subtracts it from the foreground.
	Differential       bool    `yaml:"differential"`
	SettleDelaySeconds float64 `yaml:"settleDelaySeconds"`
}

// OutputConfig represents output settings
type OutputConfig struct {
	// PlotPath is the PNG trace plot destination; empty disables it.
	PlotPath string `yaml:"plotPath"`

	// DataDirectory receives the SQLite acquisition archive; empty
	// disables archiving.
	DataDirectory string `yaml:"dataDirectory"`

	// FontPath points to a TrueType font used for plot annotations.
	// Without it the plot carries traces and ticks only.
	FontPath  string  `yaml:"fontPath"`
	FontSize  float64 `yaml:"fontSize"`
	PlotTitle string  `yaml:"plotTitle"`

	PlotWidth  int `yaml:"plotWidth"`
	PlotHeight int `yaml:"plotHeight"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Scope: ScopeConfig{
			Port:           5555,
			TimeoutSeconds: 5,
		},
		Acquire: AcquireConfig{
			Channels:           []int{1},
			Engine:             dsp.EngineNaive,
			SettleDelaySeconds: 10,
		},
		Output: OutputConfig{
			PlotTitle:  "MSO5000",
			FontSize:   12,
			PlotWidth:  1024,
			PlotHeight: 480,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	return config, nil
}

// Validate rejects configurations the instrument or the pipeline cannot
// serve.
func (c *Config) Validate() error {
	if c.Scope.Host == "" {
		return fmt.Errorf("no instrument host specified")
	}
	if c.Scope.Port <= 0 || c.Scope.Port > 65535 {
		return fmt.Errorf("port %d is invalid", c.Scope.Port)
	}
	if len(c.Acquire.Channels) == 0 {
		return fmt.Errorf("no channels requested")
	}
	for _, ch := range c.Acquire.Channels {
		if ch < 1 || ch > 4 {
			return fmt.Errorf("invalid channel number %d", ch)
		}
	}
	if _, err := scope.ParseStats(c.Acquire.Stats); err != nil {
		return err
	}
	if _, err := dsp.New(c.Acquire.Engine); err != nil {
		return err
	}
	if c.Output.PlotPath == "" && c.Output.DataDirectory == "" {
		return fmt.Errorf("no output requested, specify a plot path or a data directory")
	}
	return nil
}
