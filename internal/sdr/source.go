// Package sdr defines the sample source contract the receiver core
// consumes: any IQ producer — RTL-SDR hardware, a file player, a test
// fixture — that can be initialized, started, pulled from, and
// stopped.
package sdr

import (
	"errors"
	"time"
)

// ErrTimedOut is returned by PullSamples when no samples arrive within
// the requested timeout.
var ErrTimedOut = errors.New("sdr: pull_samples timed out")

// ErrClosed is returned once the producer has stopped; the
// application's capture loop treats this as a graceful shutdown
// signal, not a fault.
var ErrClosed = errors.New("sdr: source closed")

// Source is the external collaborator interface consumed by the core.
// Samples returned by PullSamples are unit-normalized complex IQ; the
// source owns any DC removal and gain control before handing samples
// to the core.
type Source interface {
	// Initialize prepares the device at deviceIndex for the given
	// sample rate and center frequency, without starting capture.
	Initialize(deviceIndex int, sampleRateHz, centerFreqHz float64) error

	// Start begins sample capture. Capture runs until Stop is called
	// or the source's context is canceled.
	Start() error

	// Stop ends capture. After Stop, PullSamples returns ErrClosed
	// once buffered samples are drained.
	Stop() error

	// PullSamples blocks for up to timeout waiting for n samples,
	// returning fewer only if the source has been stopped and drained.
	PullSamples(n int, timeout time.Duration) ([]complex64, error)
}

// L1CAFrequencyHz is the GPS L1 C/A carrier frequency the core expects
// a Source to be tuned to.
const L1CAFrequencyHz = 1575.42e6

// DefaultSampleRateHz is the receiver's nominal IQ sample rate.
const DefaultSampleRateHz = 2.048e6
