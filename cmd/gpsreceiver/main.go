package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gpsreceiver/internal/app"
)

func main() {
	config := app.NewConfig()
	var configPath string
	var prnList []int

	rootCmd := &cobra.Command{
		Use:   "gpsreceiver",
		Short: "GPS L1 C/A software-defined receiver",
		Long: `GPS L1 C/A software-defined receiver.

Captures I/Q samples from an RTL-SDR at L1 (1575.42MHz), acquires and
tracks the C/A code on a configurable set of PRNs, decodes the
navigation message, and reports observables and ephemeris updates.

Example usage:
  gpsreceiver --center-freq 1575420000 --sample-rate 2048000 --device 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}

			if configPath != "" {
				changed := cmd.Flags().Changed
				flagOverrides := config
				if err := config.LoadConfigFile(configPath); err != nil {
					return err
				}
				if changed("prn-list") {
					config.PRNList = prnList
				}
				if changed("device") {
					config.DeviceIndex = flagOverrides.DeviceIndex
				}
				if changed("sample-rate") {
					config.SampleRateHz = flagOverrides.SampleRateHz
				}
				if changed("center-freq") {
					config.CenterFreqHz = flagOverrides.CenterFreqHz
				}
				if changed("log-dir") {
					config.LogDir = flagOverrides.LogDir
				}
				if changed("utc") {
					config.LogRotateUTC = flagOverrides.LogRotateUTC
				}
				if changed("verbose") {
					config.Verbose = flagOverrides.Verbose
				}
				if changed("ephemeris-db") {
					config.EphemerisDBPath = flagOverrides.EphemerisDBPath
				}
			} else if cmd.Flags().Changed("prn-list") {
				config.PRNList = prnList
			}

			application := app.NewApplication(config)
			return application.Start()
		},
	}

	rootCmd.Flags().IntVarP(&config.DeviceIndex, "device", "d", config.DeviceIndex, "RTL-SDR device index")
	rootCmd.Flags().Float64VarP(&config.SampleRateHz, "sample-rate", "s", config.SampleRateHz, "Sample rate (Hz)")
	rootCmd.Flags().Float64VarP(&config.CenterFreqHz, "center-freq", "f", config.CenterFreqHz, "Center frequency (Hz)")
	rootCmd.Flags().IntSliceVar(&prnList, "prn-list", config.PRNList, "PRNs to search and track (1-32)")
	rootCmd.Flags().Float64Var(&config.DopplerSearchHz, "doppler-search", config.DopplerSearchHz, "Acquisition Doppler search half-width (Hz)")
	rootCmd.Flags().Float64Var(&config.DopplerStepHz, "doppler-step", config.DopplerStepHz, "Acquisition Doppler bin step (Hz)")
	rootCmd.Flags().Float64Var(&config.AcqThreshold, "acq-threshold", config.AcqThreshold, "Acquisition threshold on the ratio of the highest correlation peak to the second-highest")
	rootCmd.Flags().IntVar(&config.ReacquireIntervalS, "reacquire-interval", config.ReacquireIntervalS, "Seconds between reacquisition sweeps")
	rootCmd.Flags().Float64Var(&config.PLLBandwidthHz, "pll-bandwidth", config.PLLBandwidthHz, "Carrier tracking loop noise bandwidth (Hz)")
	rootCmd.Flags().Float64Var(&config.DLLBandwidthHz, "dll-bandwidth", config.DLLBandwidthHz, "Code tracking loop noise bandwidth (Hz)")
	rootCmd.Flags().Float64Var(&config.CN0LossThreshold, "cn0-loss-threshold", config.CN0LossThreshold, "C/N0 loss-of-lock threshold (dB-Hz)")
	rootCmd.Flags().StringVarP(&config.LogDir, "log-dir", "l", config.LogDir, "Log directory")
	rootCmd.Flags().BoolVarP(&config.LogRotateUTC, "utc", "u", config.LogRotateUTC, "Use UTC for log rotation")
	rootCmd.Flags().BoolVarP(&config.Verbose, "verbose", "v", config.Verbose, "Verbose logging")
	rootCmd.Flags().StringVar(&config.EphemerisDBPath, "ephemeris-db", config.EphemerisDBPath, "Path to sqlite ephemeris checkpoint store (empty disables it)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
