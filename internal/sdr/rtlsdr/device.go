//go:build cgo

// Package rtlsdr drives RTL2832-based dongles as a GPS L1 C/A sample
// source, tuned to 1575.42 MHz at the receiver's nominal sample rate.
package rtlsdr

import (
	"context"
	"fmt"
	"time"

	rtlsdr "github.com/jpoirier/gortlsdr"
	"github.com/sirupsen/logrus"

	"gpsreceiver/internal/gnss/channel"
	"gpsreceiver/internal/sdr"
)

const (
	bufferChunkSize      = 16384
	ringCapacitySamples  = 1 << 20 // spec default: 1M-sample ring between producer and core
	asyncReadBufferChunks = 16
)

// Device is a gortlsdr-backed sdr.Source.
type Device struct {
	device  *rtlsdr.Context
	logger  *logrus.Logger
	index   int
	isOpen  bool
	started bool
	ring    *channel.Ring
	cancel  context.CancelFunc
}

var _ sdr.Source = (*Device)(nil)

// New returns an unopened Device. Call Initialize before Start.
func New(logger *logrus.Logger) *Device {
	if logger == nil {
		logger = logrus.New()
	}
	return &Device{logger: logger, ring: channel.NewRing(ringCapacitySamples)}
}

// Initialize opens deviceIndex and tunes it to sampleRateHz/centerFreqHz
// with automatic gain control, per spec §6.
func (d *Device) Initialize(deviceIndex int, sampleRateHz, centerFreqHz float64) error {
	count := rtlsdr.GetDeviceCount()
	if count == 0 {
		return fmt.Errorf("rtlsdr: no devices found")
	}
	if deviceIndex < 0 || deviceIndex >= count {
		return fmt.Errorf("rtlsdr: device index %d out of range (0-%d)", deviceIndex, count-1)
	}

	dev, err := rtlsdr.Open(deviceIndex)
	if err != nil {
		return fmt.Errorf("rtlsdr: open: %w", err)
	}
	d.device = dev
	d.isOpen = true
	d.index = deviceIndex

	if err := d.device.SetCenterFreq(int(centerFreqHz)); err != nil {
		return fmt.Errorf("rtlsdr: set center freq: %w", err)
	}
	if err := d.device.SetSampleRate(int(sampleRateHz)); err != nil {
		return fmt.Errorf("rtlsdr: set sample rate: %w", err)
	}
	if err := d.device.SetTunerGainMode(false); err != nil {
		return fmt.Errorf("rtlsdr: set auto gain: %w", err)
	}
	if err := d.device.ResetBuffer(); err != nil {
		return fmt.Errorf("rtlsdr: reset buffer: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"device_index":   deviceIndex,
		"center_freq_hz": centerFreqHz,
		"sample_rate_hz": sampleRateHz,
	}).Info("rtl-sdr device initialized for GPS L1 C/A")
	return nil
}

// Start begins async capture, converting each raw 8-bit IQ chunk to
// unit-normalized complex64 and pushing it into the ring.
func (d *Device) Start() error {
	if !d.isOpen {
		return fmt.Errorf("rtlsdr: device not initialized")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.started = true

	callback := func(data []byte) {
		select {
		case <-ctx.Done():
			return
		default:
			d.ring.Push(bytesToIQ(data))
		}
	}

	go func() {
		defer func() {
			if p := recover(); p != nil {
				d.logger.WithField("panic", p).Error("rtlsdr capture panic")
			}
		}()
		if err := d.device.ReadAsync(callback, nil, 0, asyncReadBufferChunks*bufferChunkSize); err != nil {
			d.logger.WithError(err).Error("rtlsdr read async failed")
		}
	}()

	d.logger.Info("rtl-sdr capture started")
	return nil
}

// Stop ends capture; buffered samples remain available to PullSamples
// until drained.
func (d *Device) Stop() error {
	if !d.started {
		return nil
	}
	d.cancel()
	d.started = false
	if d.device != nil {
		if err := d.device.CancelAsync(); err != nil {
			return fmt.Errorf("rtlsdr: cancel async: %w", err)
		}
	}
	return nil
}

// PullSamples polls the ring until n samples are available or timeout
// elapses. Once the device has stopped it returns whatever is left in
// the ring (possibly fewer than n), then sdr.ErrClosed when the ring is
// empty; while running, it returns sdr.ErrTimedOut on timeout.
func (d *Device) PullSamples(n int, timeout time.Duration) ([]complex64, error) {
	deadline := time.Now().Add(timeout)
	for {
		if d.ring.Len() >= n {
			return d.ring.Pull(n), nil
		}
		if !d.started {
			if left := d.ring.Len(); left > 0 {
				return d.ring.Pull(left), nil
			}
			return nil, sdr.ErrClosed
		}
		if time.Now().After(deadline) {
			return nil, sdr.ErrTimedOut
		}
		time.Sleep(time.Millisecond)
	}
}

// Close stops capture if running and releases the device.
func (d *Device) Close() error {
	if d.started {
		_ = d.Stop()
	}
	if d.device != nil && d.isOpen {
		if err := d.device.Close(); err != nil {
			return fmt.Errorf("rtlsdr: close: %w", err)
		}
		d.isOpen = false
		d.logger.Info("rtl-sdr device closed")
	}
	return nil
}

// bytesToIQ converts RTL-SDR's unsigned 8-bit IQ pairs to unit-normalized
// complex64, per spec §6's "unit-normalized complex floats" contract.
func bytesToIQ(data []byte) []complex64 {
	n := len(data) / 2
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		iSample := (float32(data[2*i]) - 127.5) / 127.5
		qSample := (float32(data[2*i+1]) - 127.5) / 127.5
		out[i] = complex(iSample, qSample)
	}
	return out
}
