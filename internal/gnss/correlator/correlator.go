// Package correlator implements the early-prompt-late code/carrier
// correlator for one tracking epoch. It is pure: given a batch of IQ
// samples and the NCO state to use, it reports the three complex
// accumulators without advancing or otherwise mutating that state.
// Advancing NCO state afterward is the tracking channel's job.
package correlator

import (
	"math"

	"gpsreceiver/internal/gnss/prncode"
)

// DefaultELSpacingChips is the standard early/late tap offset from
// prompt, in chips.
const DefaultELSpacingChips = 0.5

// NCO describes the phase/frequency pair for either the carrier or
// code numerically controlled oscillator at the start of an
// integration interval.
type NCO struct {
	Phase float64 // carrier: radians mod 2*pi; code: chips mod prn.CodeLength
	Freq  float64 // carrier: Hz; code: chips/s
}

// Result holds the three correlator accumulators and their powers for
// one integration period.
type Result struct {
	Early, Prompt, Late             complex128
	PowerEarly, PowerPrompt, PowerLate float64
}

// Correlate runs one integration period of N = len(samples) samples
// against the given PRN code, carrier NCO, and code NCO, both supplied
// at their value for sample 0 of this batch. It does not mutate carrier
// or code. elSpacingChips of 0 selects the default 0.5-chip spacing.
func Correlate(samples []complex64, sampleRateHz float64, carrier, code NCO, code1023 *[prn.CodeLength]int8, elSpacingChips float64) Result {
	if elSpacingChips == 0 {
		elSpacingChips = DefaultELSpacingChips
	}

	var early, prompt, late complex128
	const twoPi = 2 * math.Pi

	for k, s := range samples {
		t := float64(k) / sampleRateHz

		carrierPhase := math.Mod(carrier.Phase+twoPi*carrier.Freq*t, twoPi)
		if carrierPhase < 0 {
			carrierPhase += twoPi
		}
		sinP, cosP := math.Sincos(carrierPhase)
		localCarrier := complex(cosP, -sinP) // exp(-j*phase), wipe-off conjugate

		mixed := complex128(s) * localCarrier

		codePhase := math.Mod(code.Phase+code.Freq*t, float64(prn.CodeLength))
		if codePhase < 0 {
			codePhase += float64(prn.CodeLength)
		}

		promptIdx := int(math.Floor(codePhase))
		earlyIdx := wrapChip(int(math.Floor(codePhase+elSpacingChips)))
		lateIdx := wrapChip(int(math.Floor(codePhase - elSpacingChips + float64(prn.CodeLength))))

		promptChip := float64(code1023[promptIdx])
		earlyChip := float64(code1023[earlyIdx])
		lateChip := float64(code1023[lateIdx])

		early += mixed * complex(earlyChip, 0)
		prompt += mixed * complex(promptChip, 0)
		late += mixed * complex(lateChip, 0)
	}

	return Result{
		Early:        early,
		Prompt:       prompt,
		Late:         late,
		PowerEarly:   real(early)*real(early) + imag(early)*imag(early),
		PowerPrompt:  real(prompt)*real(prompt) + imag(prompt)*imag(prompt),
		PowerLate:    real(late)*real(late) + imag(late)*imag(late),
	}
}

func wrapChip(idx int) int {
	idx %= prn.CodeLength
	if idx < 0 {
		idx += prn.CodeLength
	}
	return idx
}

// FinalPhase returns the NCO's accumulated chip position after N
// samples at the given chip rate and integration time, wrapped to
// modulus (prn.CodeLength). The code NCO's Freq is already chips/s, so
// no additional scaling applies. Carrier phase does not use this
// helper: Freq is in Hz, so advancing it needs an explicit 2*pi
// scaling, done by the tracking channel rather than here.
func FinalPhase(start NCO, integrationSeconds, modulus float64) float64 {
	p := math.Mod(start.Phase+start.Freq*integrationSeconds, modulus)
	if p < 0 {
		p += modulus
	}
	return p
}
