// Package prn generates the GPS L1 C/A pseudo-random noise sequences.
//
// The code is produced by two 10-bit linear feedback shift registers,
// G1 and G2, both seeded to all-ones. G1 runs a fixed polynomial; G2's
// output is combined from a per-satellite tap pair per ICD-GPS-200
// Appendix II. The resulting 1023-chip sequence repeats every
// millisecond at the nominal 1.023 MHz chipping rate.
package prn

import (
	"fmt"
	"sync"
)

// CodeLength is the number of chips in one GPS C/A code period.
const CodeLength = 1023

// ChipRateHz is the nominal C/A code chipping rate.
const ChipRateHz = 1.023e6

// MinPRN and MaxPRN bound the valid GPS satellite identifier range.
const (
	MinPRN = 1
	MaxPRN = 32
)

// ErrInvalidPRN is returned when a PRN falls outside 1..32.
type ErrInvalidPRN int

func (e ErrInvalidPRN) Error() string {
	return fmt.Sprintf("prn: invalid PRN %d, must be in 1..32", int(e))
}

// g2Taps holds the (s1, s2) 1-indexed G2 tap pair for each PRN, 1..32,
// per ICD-GPS-200 Appendix II. Index 0 is PRN 1.
var g2Taps = [MaxPRN][2]int{
	{2, 6}, {3, 7}, {4, 8}, {5, 9}, {1, 9},
	{2, 10}, {1, 8}, {2, 9}, {3, 10}, {2, 3},
	{3, 4}, {5, 6}, {6, 7}, {7, 8}, {8, 9},
	{9, 10}, {1, 4}, {2, 5}, {3, 6}, {4, 7},
	{5, 8}, {6, 9}, {1, 3}, {4, 6}, {5, 7},
	{6, 8}, {7, 9}, {8, 10}, {1, 6}, {2, 7},
	{3, 8}, {4, 9},
}

// Generator produces and caches C/A codes. The zero value is not usable;
// construct with NewGenerator.
type Generator struct {
	mu    sync.RWMutex
	cache map[int][CodeLength]int8
}

// NewGenerator returns a ready-to-use, empty-cache code generator.
func NewGenerator() *Generator {
	return &Generator{cache: make(map[int][CodeLength]int8)}
}

func validatePRN(prn int) error {
	if prn < MinPRN || prn > MaxPRN {
		return ErrInvalidPRN(prn)
	}
	return nil
}

// Bipolar returns the cached {-1,+1} C/A code for prn, generating and
// caching it on first use. The returned array is a copy; callers may
// freely mutate it without affecting the cache.
func (g *Generator) Bipolar(prn int) ([CodeLength]int8, error) {
	if err := validatePRN(prn); err != nil {
		return [CodeLength]int8{}, err
	}

	g.mu.RLock()
	code, ok := g.cache[prn]
	g.mu.RUnlock()
	if ok {
		return code, nil
	}

	bin := generateBinary(prn)
	for i, b := range bin {
		if b == 0 {
			code[i] = 1
		} else {
			code[i] = -1
		}
	}

	g.mu.Lock()
	g.cache[prn] = code
	g.mu.Unlock()

	return code, nil
}

// Binary returns the {0,1} form of the code for prn.
func (g *Generator) Binary(prn int) ([CodeLength]int8, error) {
	if err := validatePRN(prn); err != nil {
		return [CodeLength]int8{}, err
	}
	return generateBinary(prn), nil
}

// generateBinary runs the G1/G2 LFSR pair for one full code period and
// returns the {0,1} chip sequence. prn must already be validated.
func generateBinary(prn int) [CodeLength]int8 {
	var g1, g2 [10]int8 // all-ones seed
	for i := range g1 {
		g1[i] = 1
		g2[i] = 1
	}

	taps := g2Taps[prn-1]
	s1, s2 := taps[0]-1, taps[1]-1

	var code [CodeLength]int8
	for i := 0; i < CodeLength; i++ {
		g1Out := g1[9]
		g2Out := g2[s1] ^ g2[s2]
		code[i] = g1Out ^ g2Out

		fb1 := g1[2] ^ g1[9]
		fb2 := g2[1] ^ g2[2] ^ g2[5] ^ g2[7] ^ g2[8] ^ g2[9]
		for j := 9; j > 0; j-- {
			g1[j] = g1[j-1]
			g2[j] = g2[j-1]
		}
		g1[0] = fb1
		g2[0] = fb2
	}

	return code
}

// FinalRegisterState runs the LFSR for CodeLength steps and returns the
// final contents of both registers. Per spec, both must return to
// all-ones after one full 1023-chip period; used as a self-test.
func FinalRegisterState(prn int) (g1, g2 [10]int8, err error) {
	if err = validatePRN(prn); err != nil {
		return
	}
	for i := range g1 {
		g1[i] = 1
		g2[i] = 1
	}
	for i := 0; i < CodeLength; i++ {
		fb1 := g1[2] ^ g1[9]
		fb2 := g2[1] ^ g2[2] ^ g2[5] ^ g2[7] ^ g2[8] ^ g2[9]
		for j := 9; j > 0; j-- {
			g1[j] = g1[j-1]
			g2[j] = g2[j-1]
		}
		g1[0] = fb1
		g2[0] = fb2
	}
	return g1, g2, nil
}

// Resample returns a bipolar code sampled at sampleRateHz for the
// requested number of samples, using nearest-neighbor chip lookup:
// chip_index = floor(i * chipRate / sampleRate) mod CodeLength.
func (g *Generator) Resample(prn int, sampleRateHz float64, numSamples int) ([]float32, error) {
	code, err := g.Bipolar(prn)
	if err != nil {
		return nil, err
	}

	out := make([]float32, numSamples)
	ratio := ChipRateHz / sampleRateHz
	for i := 0; i < numSamples; i++ {
		idx := int(float64(i)*ratio) % CodeLength
		out[i] = float32(code[idx])
	}
	return out, nil
}
