//go:build !cgo

package rtlsdr

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gpsreceiver/internal/sdr"
)

// Device is a stub used on builds without cgo (e.g. cross-compiled
// Windows binaries). Initialize and Start return an error and
// PullSamples always returns sdr.ErrClosed, so it never pretends to
// produce samples; Stop and Close are no-ops that return nil.
type Device struct{}

var _ sdr.Source = (*Device)(nil)

// New returns a stub device. logger is accepted for signature parity
// with the cgo-backed Device and otherwise unused.
func New(logger *logrus.Logger) *Device {
	return &Device{}
}

func (d *Device) Initialize(deviceIndex int, sampleRateHz, centerFreqHz float64) error {
	return fmt.Errorf("rtlsdr: hardware support requires a cgo build")
}

func (d *Device) Start() error {
	return fmt.Errorf("rtlsdr: hardware support requires a cgo build")
}

func (d *Device) Stop() error { return nil }

func (d *Device) PullSamples(n int, timeout time.Duration) ([]complex64, error) {
	return nil, sdr.ErrClosed
}

func (d *Device) Close() error { return nil }
