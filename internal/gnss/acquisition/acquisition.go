// Package acquisition implements the FFT-based parallel code-phase and
// Doppler search used to coarsely locate a satellite's signal before
// handing it to a tracking channel.
package acquisition

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"gpsreceiver/internal/gnss/prncode"
)

// ErrBufferTooShort is returned when fewer samples than one code period
// (at the configured sample rate) are supplied.
var ErrBufferTooShort = errors.New("acquisition: buffer shorter than one code period")

// Config holds the search parameters. Zero-value fields are replaced by
// their documented defaults in Search.
type Config struct {
	SampleRateHz      float64
	DopplerSearchHz   float64 // +/- search half-width
	DopplerStepHz     float64
	ThresholdPeakRatio float64
	Deadline          time.Duration // default 2s per full-grid scan
}

const (
	DefaultDopplerSearchHz    = 5000.0
	DefaultDopplerStepHz      = 500.0
	DefaultThresholdPeakRatio = 2.5
	DefaultDeadline           = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.DopplerSearchHz == 0 {
		c.DopplerSearchHz = DefaultDopplerSearchHz
	}
	if c.DopplerStepHz == 0 {
		c.DopplerStepHz = DefaultDopplerStepHz
	}
	if c.ThresholdPeakRatio == 0 {
		c.ThresholdPeakRatio = DefaultThresholdPeakRatio
	}
	if c.Deadline == 0 {
		c.Deadline = DefaultDeadline
	}
	return c
}

// Result is the outcome of a single-PRN search.
type Result struct {
	Found         bool
	PRN           int
	CodePhaseChips float64
	DopplerHz     float64
	PeakRatio     float64
	SNRdB         float64
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// gridLength returns the FFT length M for one code period at
// sampleRateHz: sampleRateHz*0.001 if integral, else the next power of
// two at or above it.
func gridLength(sampleRateHz float64) int {
	exact := sampleRateHz * 0.001
	m := int(math.Round(exact))
	if math.Abs(exact-float64(m)) < 1e-6 {
		return m
	}
	return nextPow2(int(math.Ceil(exact)))
}

// Search runs the parallel code-phase/Doppler grid search for one PRN
// against one code period of samples. samples must contain at least
// gridLength(cfg.SampleRateHz) complex IQ samples; any samples beyond
// that length are ignored. Search honors cfg.Deadline: if exceeded
// before the grid completes, it returns the best candidate found so
// far with Found=false.
func Search(prnID int, samples []complex64, code *[prn.CodeLength]int8, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()

	m := gridLength(cfg.SampleRateHz)
	if len(samples) < m {
		return Result{}, ErrBufferTooShort
	}

	localCode := resampleForFFT(code, cfg.SampleRateHz, m)
	fft := fourier.NewCmplxFFT(m)

	codeSpectrum := fft.Coefficients(nil, localCode)
	conjCodeSpectrum := make([]complex128, m)
	for i, c := range codeSpectrum {
		conjCodeSpectrum[i] = complex(real(c), -imag(c))
	}

	deadline := time.Now().Add(cfg.Deadline)

	numSteps := int(2*cfg.DopplerSearchHz/cfg.DopplerStepHz) + 1

	var bestPeak float64 = -1
	var bestTau int
	var bestDoppler float64
	var bestSecondPeak float64
	timedOut := false

	baseband := make([]complex128, m)

	for step := 0; step < numSteps; step++ {
		if time.Now().After(deadline) {
			timedOut = true
			break
		}

		fd := -cfg.DopplerSearchHz + float64(step)*cfg.DopplerStepHz

		for k := 0; k < m; k++ {
			t := float64(k) / cfg.SampleRateHz
			sinP, cosP := math.Sincos(2 * math.Pi * fd * t)
			localOsc := complex(cosP, -sinP)
			baseband[k] = complex128(samples[k]) * localOsc
		}

		spectrum := fft.Coefficients(nil, baseband)
		for i := range spectrum {
			spectrum[i] *= conjCodeSpectrum[i]
		}

		correlation := fft.Sequence(nil, spectrum)

		peak, secondPeak, tau := findPeak(correlation, m)
		if peak > bestPeak {
			bestPeak = peak
			bestSecondPeak = secondPeak
			bestTau = tau
			bestDoppler = fd
		}
	}

	if bestPeak < 0 {
		// deadline hit before even one Doppler bin completed.
		return Result{Found: false, PRN: prnID}, nil
	}

	peakRatio := bestPeak / bestSecondPeak
	codePhase := float64(bestTau) * float64(prn.CodeLength) / float64(m)

	res := Result{
		PRN:           prnID,
		CodePhaseChips: codePhase,
		DopplerHz:     bestDoppler,
		PeakRatio:     peakRatio,
		SNRdB:         10 * math.Log10(peakRatio),
	}
	res.Found = !timedOut && peakRatio >= cfg.ThresholdPeakRatio
	return res, nil
}

// findPeak scans correlation (length m, power = |x|^2) for the largest
// peak and the second-largest peak outside +/-1 chip of the first,
// measured in FFT bins proportional to m/CodeLength. Ties on the
// primary peak resolve to the smallest index.
func findPeak(correlation []complex128, m int) (peak, secondPeak float64, tauIdx int) {
	power := make([]float64, m)
	peak = -1
	for i, c := range correlation {
		p := real(c)*real(c) + imag(c)*imag(c)
		power[i] = p
		if p > peak {
			peak = p
			tauIdx = i
		}
	}

	exclusion := int(math.Round(float64(m) / float64(prn.CodeLength)))
	if exclusion < 1 {
		exclusion = 1
	}

	secondPeak = 0
	for i, p := range power {
		d := i - tauIdx
		if d < 0 {
			d = -d
		}
		dWrapped := d
		if m-d < dWrapped {
			dWrapped = m - d
		}
		if dWrapped <= exclusion {
			continue
		}
		if p > secondPeak {
			secondPeak = p
		}
	}
	if secondPeak == 0 {
		secondPeak = 1e-300 // avoid division by zero on a degenerate all-flat grid
	}
	return peak, secondPeak, tauIdx
}

// resampleForFFT returns the complex-conjugate-ready local code (as
// complex128 with zero imaginary part) resampled to length m at
// sampleRateHz, via the same nearest-neighbor lookup the PRN generator
// uses for its own Resample.
func resampleForFFT(code *[prn.CodeLength]int8, sampleRateHz float64, m int) []complex128 {
	out := make([]complex128, m)
	ratio := prn.ChipRateHz / sampleRateHz
	for i := 0; i < m; i++ {
		idx := int(float64(i)*ratio) % prn.CodeLength
		out[i] = complex(float64(code[idx]), 0)
	}
	return out
}
