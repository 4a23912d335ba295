package navdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// bitWriter is the write-side mirror of bitCursor, used only by tests
// to construct synthetic, ICD-valid subframe data words.
type bitWriter struct {
	words [subframeWords]uint32
	pos   int
}

func (w *bitWriter) putUnsigned(value uint32, length int) {
	for i := 0; i < length; i++ {
		p := w.pos + i
		word := p / dataBitsPerWord
		b := p % dataBitsPerWord
		bit := (value >> uint(length-1-i)) & 1
		w.words[word] |= bit << uint(dataBitsPerWord-1-b)
	}
	w.pos += length
}

func (w *bitWriter) putSigned(value int32, length int) {
	mask := uint32(1)<<uint(length) - 1
	w.putUnsigned(uint32(value)&mask, length)
}

func (w *bitWriter) skip(n int) { w.pos += n }

// computeParityBits mirrors decodeWord's parity-equation evaluation on
// an already-de-inverted (true) composite word.
func computeParityBits(trueComposite uint32) uint32 {
	var parity uint32
	for i := 0; i < 6; i++ {
		parity <<= 1
		var bit uint32
		for w := (trueComposite & parityMasks[i]) >> 6; w > 0; w >>= 1 {
			bit ^= w & 1
		}
		parity |= bit
	}
	return parity
}

// encodeWord builds the 30 transmitted bits for one word given its
// true 24-bit data and the preceding word's D29*/D30*, returning them
// plus the D29/D30 this word contributes to the next one.
func encodeWord(trueData24 uint32, prevD29, prevD30 int8) (transmitted [wordBits]int8, d29, d30 int8) {
	trueComposite := uint32(prevD29)<<31 | uint32(prevD30)<<30 | (trueData24&0xFFFFFF)<<6
	parity := computeParityBits(trueComposite)

	txData := trueData24 & 0xFFFFFF
	if prevD30 == 1 {
		txData ^= 0xFFFFFF
	}
	word30 := txData<<6 | parity

	for i := 0; i < wordBits; i++ {
		transmitted[i] = int8((word30 >> uint(wordBits-1-i)) & 1)
	}
	d29 = int8((parity >> 1) & 1)
	d30 = int8(parity & 1)
	return
}

// encodeSubframe builds a full 300-bit transmitted subframe from 10
// true data words, chaining polarity from prevD29/prevD30.
func encodeSubframe(data [subframeWords]uint32, prevD29, prevD30 int8) (bits []int8, d29, d30 int8) {
	d29, d30 = prevD29, prevD30
	bits = make([]int8, 0, subframeBits)
	for w := 0; w < subframeWords; w++ {
		var tx [wordBits]int8
		tx, d29, d30 = encodeWord(data[w], d29, d30)
		bits = append(bits, tx[:]...)
	}
	return
}

func howWord(tow17 uint32, subframeID int) uint32 {
	var w bitWriter
	w.putUnsigned(tow17, 17)
	w.putUnsigned(0, 1) // alert
	w.putUnsigned(0, 1) // anti-spoof
	w.putUnsigned(uint32(subframeID), 3)
	w.putUnsigned(0, 2) // reserved
	return w.words[0]
}

func tlmWord() uint32 {
	var w bitWriter
	w.putUnsigned(PreamblePattern, 8)
	w.putUnsigned(0, 14) // TLM message
	w.putUnsigned(0, 2)  // reserved
	return w.words[0]
}

func buildSubframe1(tow uint32, week, iodc int) [subframeWords]uint32 {
	var data [subframeWords]uint32
	data[0] = tlmWord()
	data[1] = howWord(tow, 1)

	var w bitWriter
	w.pos = 24
	w.skip(17 + 2)
	w.skip(3 + 2)
	w.putUnsigned(uint32(week), 10)
	w.skip(2)
	w.putUnsigned(0, 4) // ura
	w.putUnsigned(0, 6) // health
	w.putUnsigned(uint32(iodc>>8)&0x3, 2)
	w.skip(1 + 87)
	w.putSigned(0, 8) // tgd
	w.putUnsigned(uint32(iodc)&0xFF, 8)
	w.putUnsigned(0, 16) // toc
	w.putSigned(0, 8)    // af2
	w.putSigned(0, 16)   // af1
	w.putSigned(0, 22)   // af0
	for i := 2; i < subframeWords; i++ {
		data[i] = w.words[i]
	}
	return data
}

func buildSubframe2(tow uint32, iode int) [subframeWords]uint32 {
	var data [subframeWords]uint32
	data[0] = tlmWord()
	data[1] = howWord(tow, 2)

	var w bitWriter
	w.pos = 24
	w.skip(17 + 2)
	w.skip(3 + 2)
	w.putUnsigned(uint32(iode), 8)
	w.putSigned(0, 16)   // crs
	w.putSigned(0, 16)   // deltaN
	w.putSigned(0, 32)   // m0
	w.putSigned(0, 16)   // cuc
	w.putUnsigned(0, 32) // ecc
	w.putSigned(0, 16)   // cus
	w.putUnsigned(0, 32) // sqrtA
	w.putUnsigned(0, 16) // toe
	w.putUnsigned(1, 1)  // fit flag
	for i := 2; i < subframeWords; i++ {
		data[i] = w.words[i]
	}
	return data
}

func buildSubframe3(tow uint32, iode int) [subframeWords]uint32 {
	var data [subframeWords]uint32
	data[0] = tlmWord()
	data[1] = howWord(tow, 3)

	var w bitWriter
	w.pos = 24
	w.skip(17 + 2)
	w.skip(3 + 2)
	w.putSigned(0, 16)   // cic
	w.putSigned(0, 32)   // omega0
	w.putSigned(0, 16)   // cis
	w.putSigned(0, 32)   // i0
	w.putSigned(0, 16)   // crc
	w.putSigned(0, 32)   // omega
	w.putSigned(0, 24)   // omegaDot
	w.putUnsigned(uint32(iode), 8)
	w.putSigned(0, 14) // idot
	for i := 2; i < subframeWords; i++ {
		data[i] = w.words[i]
	}
	return data
}

func TestEncodeDecodeWord_RoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		d29, d30   int8
		data       uint32
	}{
		{"no inversion", 0, 0, 0x123456},
		{"inverted by prior D30", 0, 1, 0x123456},
		{"all zero data", 1, 1, 0},
		{"all one data", 0, 0, 0xFFFFFF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, _, _ := encodeWord(tc.data, tc.d29, tc.d30)
			var transmitted uint32
			for _, b := range tx {
				transmitted = transmitted<<1 | uint32(b)
			}
			composite := uint32(tc.d29)<<31 | uint32(tc.d30)<<30 | transmitted
			decoded, ok := decodeWord(composite)
			assert.True(t, ok)
			assert.Equal(t, tc.data&0xFFFFFF, decoded)
		})
	}
}

func TestDecodeWord_CorruptedBitFailsParity(t *testing.T) {
	tx, _, _ := encodeWord(0xABCDEF, 0, 0)
	var transmitted uint32
	for _, b := range tx {
		transmitted = transmitted<<1 | uint32(b)
	}
	transmitted ^= 1 << 10 // flip one data bit
	_, ok := decodeWord(transmitted)
	assert.False(t, ok)
}

func TestHasPreamble(t *testing.T) {
	var words [subframeWords]uint32
	words[0] = tlmWord()
	assert.True(t, hasPreamble(words))

	words[0] = 0
	assert.False(t, hasPreamble(words))
}

func TestSubframeID(t *testing.T) {
	var words [subframeWords]uint32
	words[1] = howWord(12345, 3)
	assert.Equal(t, 3, subframeID(words))
}

func TestFeed_InvalidPRN(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(0, true, 0)
	assert.ErrorIs(t, err, ErrInvalidPRN)
	_, err = d.Feed(33, true, 0)
	assert.ErrorIs(t, err, ErrInvalidPRN)
}

func TestFeed_AssemblesEphemerisFromThreeSubframes(t *testing.T) {
	d := NewDecoder()
	const prn = 5
	const iode = 42

	sf1 := buildSubframe1(100, 2200, iode)
	sf2 := buildSubframe2(100, iode)
	sf3 := buildSubframe3(100, iode)

	var d29, d30 int8
	var allBits []int8

	for _, sf := range [][subframeWords]uint32{sf1, sf2, sf3} {
		bits, nd29, nd30 := encodeSubframe(sf, d29, d30)
		allBits = append(allBits, bits...)
		d29, d30 = nd29, nd30
	}
	// repeat subframe 3 once more so the trailing subframe also gets
	// its required second-preamble confirmation.
	bits, _, _ := encodeSubframe(sf3, d29, d30)
	allBits = append(allBits, bits...)

	var update *EphemerisUpdate
	for i, b := range allBits {
		u, err := d.Feed(prn, b == 1, float64(i)*0.02)
		assert.NoError(t, err)
		if u != nil {
			update = u
		}
	}

	assert.NotNil(t, update)
	assert.Equal(t, prn, update.PRN)
	assert.Equal(t, iode, update.Ephemeris.IODE)
	assert.Equal(t, iode, update.Ephemeris.IODC&0xFF)

	eph, ok := d.Ephemeris(prn)
	assert.True(t, ok)
	assert.Equal(t, iode, eph.IODE)
}

func TestFeed_MismatchedIODEDoesNotAssemble(t *testing.T) {
	d := NewDecoder()
	const prn = 9

	sf1 := buildSubframe1(50, 2200, 1)
	sf2 := buildSubframe2(50, 1)
	sf3 := buildSubframe3(50, 2) // mismatched IODE

	var d29, d30 int8
	var allBits []int8
	for _, sf := range [][subframeWords]uint32{sf1, sf2, sf3, sf3} {
		bits, nd29, nd30 := encodeSubframe(sf, d29, d30)
		allBits = append(allBits, bits...)
		d29, d30 = nd29, nd30
	}

	var update *EphemerisUpdate
	for i, b := range allBits {
		u, _ := d.Feed(prn, b == 1, float64(i)*0.02)
		if u != nil {
			update = u
		}
	}

	assert.Nil(t, update)
	_, ok := d.Ephemeris(prn)
	assert.False(t, ok)
}

func TestAlmanac_NotPresentBeforeDecode(t *testing.T) {
	d := NewDecoder()
	_, ok := d.Almanac(1, 5)
	assert.False(t, ok)
}
