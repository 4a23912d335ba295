//go:build cgo

package rtlsdr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gpsreceiver/internal/gnss/channel"
	"gpsreceiver/internal/sdr"
)

func TestBytesToIQ_NormalizesToUnitRange(t *testing.T) {
	// 0 -> -1.0, 255 -> ~1.0, 127.5ish midpoint -> ~0
	data := []byte{0, 255, 128, 127}
	out := bytesToIQ(data)
	assert.Len(t, out, 2)
	assert.InDelta(t, -1.0, real(out[0]), 1e-6)
	assert.InDelta(t, 1.0, imag(out[0]), 1e-6)
	assert.InDelta(t, 0.5/127.5, real(out[1]), 1e-6)
	assert.InDelta(t, -0.5/127.5, imag(out[1]), 1e-6)
}

func TestDevice_PullSamplesTimesOutWhenEmpty(t *testing.T) {
	d := &Device{ring: channel.NewRing(1024), started: true}
	_, err := d.PullSamples(10, 5*time.Millisecond)
	assert.ErrorIs(t, err, sdr.ErrTimedOut)
}

func TestDevice_PullSamplesReturnsClosedAfterStop(t *testing.T) {
	d := &Device{ring: channel.NewRing(1024), started: false}
	_, err := d.PullSamples(10, 5*time.Millisecond)
	assert.ErrorIs(t, err, sdr.ErrClosed)
}

func TestDevice_PullSamplesReturnsBufferedData(t *testing.T) {
	d := &Device{ring: channel.NewRing(1024), started: true}
	d.ring.Push(make([]complex64, 5))
	out, err := d.PullSamples(5, time.Second)
	assert.NoError(t, err)
	assert.Len(t, out, 5)
}

func TestDevice_CloseOnUnopenedDeviceIsSafe(t *testing.T) {
	d := &Device{ring: channel.NewRing(16)}
	assert.NoError(t, d.Close())
	assert.False(t, d.isOpen)
}

func TestDevice_StopOnUnstartedDeviceIsSafe(t *testing.T) {
	d := &Device{ring: channel.NewRing(16)}
	assert.NoError(t, d.Stop())
}

func TestDevice_StartRequiresInitialize(t *testing.T) {
	d := &Device{ring: channel.NewRing(16)}
	err := d.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestDevice_SatisfiesSourceInterface(t *testing.T) {
	var _ sdr.Source = New(nil)
}
