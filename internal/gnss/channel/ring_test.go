package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seqSamples(start, n int) []complex64 {
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		out[i] = complex(float32(start+i), 0)
	}
	return out
}

func TestRing_PushPullPreservesOrder(t *testing.T) {
	r := NewRing(10)
	r.Push(seqSamples(0, 5))
	out := r.Pull(5)
	assert.Equal(t, seqSamples(0, 5), out)
	assert.Equal(t, uint64(0), r.Overflow())
}

func TestRing_PullReturnsOnlyWhatsAvailable(t *testing.T) {
	r := NewRing(10)
	r.Push(seqSamples(0, 3))
	out := r.Pull(100)
	assert.Equal(t, seqSamples(0, 3), out)
	assert.Nil(t, r.Pull(1))
}

func TestRing_WraparoundPreservesOrder(t *testing.T) {
	r := NewRing(4)
	r.Push(seqSamples(0, 3))
	r.Pull(2)             // head now at 2, size 1
	r.Push(seqSamples(10, 3)) // wraps tail around
	out := r.Pull(4)
	assert.Equal(t, []complex64{2, 10, 11, 12}, out)
}

func TestRing_OverflowDropsOldest(t *testing.T) {
	r := NewRing(4)
	r.Push(seqSamples(0, 4))
	r.Push(seqSamples(4, 2)) // capacity 4, pushing 2 more drops 2 oldest
	assert.Equal(t, uint64(2), r.Overflow())
	out := r.Pull(4)
	assert.Equal(t, seqSamples(2, 4), out)
}

func TestRing_BatchLargerThanCapacityKeepsTail(t *testing.T) {
	r := NewRing(3)
	r.Push(seqSamples(0, 10))
	assert.Equal(t, uint64(7), r.Overflow())
	out := r.Pull(3)
	assert.Equal(t, seqSamples(7, 3), out)
}

func TestRing_LenTracksSize(t *testing.T) {
	r := NewRing(10)
	assert.Equal(t, 0, r.Len())
	r.Push(seqSamples(0, 4))
	assert.Equal(t, 4, r.Len())
	r.Pull(2)
	assert.Equal(t, 2, r.Len())
}

func TestRing_PushEmptyIsNoop(t *testing.T) {
	r := NewRing(4)
	r.Push(nil)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, uint64(0), r.Overflow())
}
