package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gpsreceiver/internal/gnss/acquisition"
	"gpsreceiver/internal/gnss/tracking"
	"gpsreceiver/internal/sdr"
)

// Config holds the complete receiver configuration: every default here
// matches spec §6's enumerated configuration options.
type Config struct {
	DeviceIndex  int     `yaml:"deviceIndex"`
	SampleRateHz float64 `yaml:"sampleRateHz"`
	CenterFreqHz float64 `yaml:"centerFreqHz"`
	PRNList      []int   `yaml:"prnList"`

	DopplerSearchHz    float64 `yaml:"dopplerSearchHz"`
	DopplerStepHz      float64 `yaml:"dopplerStepHz"`
	AcqThreshold       float64 `yaml:"acqThreshold"`
	ReacquireIntervalS int     `yaml:"reacquireIntervalS"`

	PLLBandwidthHz   float64 `yaml:"pllBandwidthHz"`
	DLLBandwidthHz   float64 `yaml:"dllBandwidthHz"`
	IntegrationMs    int     `yaml:"integrationMs"`
	ELSpacingChips   float64 `yaml:"elSpacingChips"`
	CN0LossThreshold float64 `yaml:"cn0LossThresholdDbHz"`
	LossDwellMs      int     `yaml:"lossDwellMs"`

	LogDir       string `yaml:"logDir"`
	LogRotateUTC bool   `yaml:"logRotateUTC"`
	Verbose      bool   `yaml:"verbose"`

	EphemerisDBPath string `yaml:"ephemerisDbPath"`

	ShowVersion bool `yaml:"-"`
}

// NewConfig returns a Config populated with spec-mandated defaults.
func NewConfig() Config {
	prns := make([]int, 32)
	for i := range prns {
		prns[i] = i + 1
	}

	return Config{
		DeviceIndex:  0,
		SampleRateHz: sdr.DefaultSampleRateHz,
		CenterFreqHz: sdr.L1CAFrequencyHz,
		PRNList:      prns,

		DopplerSearchHz:    acquisition.DefaultDopplerSearchHz,
		DopplerStepHz:      acquisition.DefaultDopplerStepHz,
		AcqThreshold:       acquisition.DefaultThresholdPeakRatio,
		ReacquireIntervalS: 5,

		PLLBandwidthHz:   tracking.DefaultPLLBandwidthHz,
		DLLBandwidthHz:   tracking.DefaultDLLBandwidthHz,
		IntegrationMs:    tracking.DefaultIntegrationMs,
		ELSpacingChips:   tracking.DefaultELSpacingChips,
		CN0LossThreshold: tracking.DefaultCN0LossDbHz,
		LossDwellMs:      tracking.DefaultLossDwellMs,

		LogDir:       "./logs",
		LogRotateUTC: true,
	}
}

// LoadConfigFile overlays YAML settings from path onto c. Fields absent
// from the file are left at their current (default) values.
func (c *Config) LoadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate enforces the programmer-contract checks spec §7 calls out as
// failing loudly rather than being self-healed.
func (c *Config) Validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("config: sampleRateHz must be positive")
	}
	if c.CenterFreqHz <= 0 {
		return fmt.Errorf("config: centerFreqHz must be positive")
	}
	if len(c.PRNList) == 0 {
		return fmt.Errorf("config: prnList must not be empty")
	}
	for _, p := range c.PRNList {
		if p < 1 || p > 32 {
			return fmt.Errorf("config: invalid prn %d in prnList (must be 1..32)", p)
		}
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("config: deviceIndex must not be negative")
	}
	return nil
}

func (c Config) trackingConfig() tracking.Config {
	return tracking.Config{
		SampleRateHz:     c.SampleRateHz,
		PLLBandwidthHz:   c.PLLBandwidthHz,
		DLLBandwidthHz:   c.DLLBandwidthHz,
		IntegrationMs:    c.IntegrationMs,
		ELSpacingChips:   c.ELSpacingChips,
		CN0LossThreshold: c.CN0LossThreshold,
		LossDwellMs:      c.LossDwellMs,
	}
}

func (c Config) acquisitionConfig() acquisition.Config {
	return acquisition.Config{
		SampleRateHz:       c.SampleRateHz,
		DopplerSearchHz:    c.DopplerSearchHz,
		DopplerStepHz:      c.DopplerStepHz,
		ThresholdPeakRatio: c.AcqThreshold,
	}
}
