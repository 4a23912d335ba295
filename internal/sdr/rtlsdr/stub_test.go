//go:build !cgo

package rtlsdr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gpsreceiver/internal/sdr"
)

func TestStubDevice_AlwaysFailsLoudly(t *testing.T) {
	d := New(nil)

	err := d.Initialize(0, sdr.DefaultSampleRateHz, sdr.L1CAFrequencyHz)
	assert.Error(t, err)

	err = d.Start()
	assert.Error(t, err)

	assert.NoError(t, d.Stop())

	_, err = d.PullSamples(10, time.Millisecond)
	assert.ErrorIs(t, err, sdr.ErrClosed)

	assert.NoError(t, d.Close())
}

func TestStubDevice_SatisfiesSourceInterface(t *testing.T) {
	var _ sdr.Source = New(nil)
}
