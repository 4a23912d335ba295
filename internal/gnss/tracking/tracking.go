// Package tracking implements the per-satellite code/carrier tracking
// channel: discriminators, loop filters, bit synchronization, C/N0
// estimation, and the IDLE/PULL_IN/TRACKING/LOST state machine.
package tracking

import (
	"math"

	"gpsreceiver/internal/gnss/correlator"
	"gpsreceiver/internal/gnss/prncode"
)

// State tags the channel's lifecycle position.
type State int

const (
	IDLE State = iota
	PullIn
	Tracking
	Lost
)

func (s State) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case PullIn:
		return "PULL_IN"
	case Tracking:
		return "TRACKING"
	case Lost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// Defaults per the receiver's configuration surface.
const (
	DefaultPLLBandwidthHz  = 18.0
	DefaultDLLBandwidthHz  = 2.0
	DefaultIntegrationMs   = 1
	DefaultELSpacingChips  = correlator.DefaultELSpacingChips
	DefaultCN0LossDbHz     = 28.0
	DefaultLossDwellMs     = 500
	DefaultFLLDurationMs   = 100
	bitSyncHistogramBins   = 20
	bitSyncMinEpochs       = 200
	bitSyncPeakToMeanRatio = 4.0
	pullInEpochs           = 200
	phaseErrSustainedCap   = math.Pi / 4
	phaseErrSustainedMs    = 200

	l1FreqHz         = 1575.42e6
	nominalChipRate  = prn.ChipRateHz
)

// Config parameterizes one channel's loop behavior.
type Config struct {
	SampleRateHz     float64
	PLLBandwidthHz   float64
	DLLBandwidthHz   float64
	IntegrationMs    int
	ELSpacingChips   float64
	CN0LossThreshold float64
	LossDwellMs      int
}

func (c Config) withDefaults() Config {
	if c.PLLBandwidthHz == 0 {
		c.PLLBandwidthHz = DefaultPLLBandwidthHz
	}
	if c.DLLBandwidthHz == 0 {
		c.DLLBandwidthHz = DefaultDLLBandwidthHz
	}
	if c.IntegrationMs == 0 {
		c.IntegrationMs = DefaultIntegrationMs
	}
	if c.ELSpacingChips == 0 {
		c.ELSpacingChips = DefaultELSpacingChips
	}
	if c.CN0LossThreshold == 0 {
		c.CN0LossThreshold = DefaultCN0LossDbHz
	}
	if c.LossDwellMs == 0 {
		c.LossDwellMs = DefaultLossDwellMs
	}
	return c
}

// Seed is the acquisition hand-off: initial code phase and Doppler.
type Seed struct {
	PRN            int
	CodePhaseChips float64
	DopplerHz      float64
}

// Observable is published once per tracking epoch.
type Observable struct {
	CodePhaseChips float64
	CarrierPhaseCy float64
	CarrierFreqHz  float64
	CN0dBHz        float64
	EpochTimeS     float64
}

// Bit is emitted once per 20 epochs once bit sync is achieved.
type Bit struct {
	Value      bool
	EpochTimeS float64
}

// loopFilter holds the 2nd-order PLL integrator state. The 1st-order
// DLL keeps no state of its own.
type loopFilter struct {
	// PLL (2nd order, Bn/zeta parameterized).
	pllIntegrator float64
}

// Channel is one satellite's tracking state machine. It shares no
// mutable state with any other channel.
type Channel struct {
	cfg  Config
	code [prn.CodeLength]int8
	prn  int

	state State

	carrier correlator.NCO
	codeNCO correlator.NCO

	loop loopFilter

	epochCount     int
	epochTimeS     float64
	prevPrompt     complex128
	havePrevPrompt bool

	// bit sync
	bitHistogram    [bitSyncHistogramBins]int
	bitPhase        int
	bitSynced       bool
	bitAccumulator  float64
	prevPromptSign  bool
	havePrevSign    bool

	// C/N0, over a rolling 20-epoch window
	nbpWindow []complex128

	// loss-of-lock dwell tracking
	lowCN0Ms     int
	highPhaseErrMs int

	pullInEpochsDone int
}

// NewChannel constructs an IDLE channel for prn using the given code
// table (typically from prn.Generator.Bipolar).
func NewChannel(prnID int, code [prn.CodeLength]int8, cfg Config) *Channel {
	return &Channel{
		cfg:   cfg.withDefaults(),
		code:  code,
		prn:   prnID,
		state: IDLE,
	}
}

// PRN returns the satellite identifier this channel tracks.
func (c *Channel) PRN() int { return c.prn }

// State returns the channel's current lifecycle state.
func (c *Channel) State() State { return c.state }

// Seed transitions an IDLE (or LOST, on operator retry) channel into
// PULL_IN using an acquisition result.
func (c *Channel) Seed(s Seed) {
	c.carrier = correlator.NCO{Phase: 0, Freq: s.DopplerHz}
	c.codeNCO = correlator.NCO{Phase: s.CodePhaseChips, Freq: nominalChipRate}
	c.state = PullIn
	c.epochCount = 0
	c.pullInEpochsDone = 0
	c.havePrevPrompt = false
	c.havePrevSign = false
	c.bitSynced = false
	c.bitHistogram = [bitSyncHistogramBins]int{}
	c.bitAccumulator = 0
	c.lowCN0Ms = 0
	c.highPhaseErrMs = 0
}

// Step advances the channel by one integration epoch given a batch of
// samples (length sampleRateHz*integrationMs/1000). It returns the
// published observable (nil while IDLE or LOST) and any navigation bit
// emitted this epoch.
func (c *Channel) Step(samples []complex64) (*Observable, *Bit) {
	if c.state == IDLE || c.state == Lost {
		return nil, nil
	}

	tInt := float64(c.cfg.IntegrationMs) / 1000.0

	res := correlator.Correlate(samples, c.cfg.SampleRateHz, c.carrier, c.codeNCO, &c.code, c.cfg.ELSpacingChips)

	phaseErr := c.carrierDiscriminator(res)
	codeErr := codeDiscriminator(res)

	c.applyLoopFilters(phaseErr, codeErr, tInt)
	c.advanceNCOs(tInt)

	cn0 := c.updateCN0(res.Prompt, tInt)

	c.epochTimeS += tInt
	c.epochCount++

	var bit *Bit
	switch c.state {
	case PullIn:
		c.pullInEpochsDone++
		c.updateBitSync(res.Prompt)
		if c.pullInEpochsDone >= pullInEpochs && c.bitSynced {
			c.state = Tracking
		}
	case Tracking:
		c.updateBitSync(res.Prompt)
		bit = c.accumulateBit(res.Prompt)
		c.checkLossOfLock(cn0, phaseErr, tInt)
	}

	obs := &Observable{
		CodePhaseChips: c.codeNCO.Phase,
		CarrierPhaseCy: c.carrier.Phase / (2 * math.Pi),
		CarrierFreqHz:  c.carrier.Freq,
		CN0dBHz:        cn0,
		EpochTimeS:     c.epochTimeS,
	}

	c.prevPrompt = res.Prompt
	c.havePrevPrompt = true

	return obs, bit
}

// carrierDiscriminator selects Costas, decision-directed, or
// frequency-lock discriminator per state and elapsed time, per the
// channel's discriminator policy.
func (c *Channel) carrierDiscriminator(res correlator.Result) float64 {
	if c.state == PullIn && float64(c.epochCount)*float64(c.cfg.IntegrationMs) < DefaultFLLDurationMs && c.havePrevPrompt {
		return c.frequencyLockDiscriminator(res.Prompt)
	}
	if c.state == PullIn {
		return decisionDirectedDiscriminator(res.Prompt)
	}
	return costasDiscriminator(res.Prompt)
}

// costasDiscriminator is the two-quadrant arctangent carrier phase
// error, insensitive to the data-bit sign ambiguity.
func costasDiscriminator(p complex128) float64 {
	i := real(p)
	if i == 0 {
		return 0
	}
	return math.Atan(imag(p) / i)
}

// decisionDirectedDiscriminator is used during PULL_IN at low SNR.
func decisionDirectedDiscriminator(p complex128) float64 {
	sign := 1.0
	if real(p) < 0 {
		sign = -1.0
	}
	return sign * imag(p)
}

// frequencyLockDiscriminator is the cross-product frequency error
// between this epoch's and the previous epoch's prompt correlation.
func (c *Channel) frequencyLockDiscriminator(p complex128) float64 {
	prev := c.prevPrompt
	cross := real(prev)*imag(p) - real(p)*imag(prev)
	magProd := modulus(prev) * modulus(p)
	if magProd == 0 {
		return 0
	}
	tInt := float64(c.cfg.IntegrationMs) / 1000.0
	return cross / magProd / tInt
}

func modulus(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// codeDiscriminator is the normalized early-minus-late envelope.
func codeDiscriminator(res correlator.Result) float64 {
	eMag := modulus(res.Early)
	lMag := modulus(res.Late)
	denom := eMag + lMag
	if denom == 0 {
		return 0
	}
	return 0.5 * (eMag - lMag) / denom
}

// applyLoopFilters runs the 2nd-order PLL and 1st-order DLL and
// updates carrier/code NCO frequencies in place.
func (c *Channel) applyLoopFilters(phaseErr, codeErr, tInt float64) {
	// 2nd-order PLL, natural frequency from noise bandwidth at zeta=1/sqrt(2).
	const zeta = 0.70710678
	wn := c.cfg.PLLBandwidthHz / 0.53
	a1 := 2 * zeta * wn
	a2 := wn * wn

	c.loop.pllIntegrator += a2 * phaseErr * tInt
	c.carrier.Freq += (a1*phaseErr + c.loop.pllIntegrator) * tInt

	// 1st-order DLL: code-rate correction proportional to the code error.
	dllGain := 4 * c.cfg.DLLBandwidthHz
	dllCorrection := dllGain * codeErr

	// Carrier-aided code rate: code tracks carrier Doppler proportionally.
	c.codeNCO.Freq = nominalChipRate*(1+c.carrier.Freq/l1FreqHz) + dllCorrection
}

// advanceNCOs moves carrier and code phase forward by one integration
// period, wrapping to their natural moduli. The carrier's rate is in Hz
// (cycles/s), so advancing its phase in radians needs the 2*pi
// factor the correlator itself applies per-sample (correlator.go); the
// code NCO's rate is already in chips/s, so FinalPhase's bare
// Phase+Freq*t applies unscaled.
func (c *Channel) advanceNCOs(tInt float64) {
	c.carrier.Phase = math.Mod(c.carrier.Phase+2*math.Pi*c.carrier.Freq*tInt, 2*math.Pi)
	if c.carrier.Phase < 0 {
		c.carrier.Phase += 2 * math.Pi
	}
	c.codeNCO.Phase = correlator.FinalPhase(c.codeNCO, tInt, float64(prn.CodeLength))
}

// updateBitSync counts prompt-I sign transitions into the 20-bin
// histogram and, once enough epochs have accumulated, checks for a
// dominant bin to declare bit sync.
func (c *Channel) updateBitSync(prompt complex128) {
	sign := real(prompt) >= 0
	if c.havePrevSign && sign != c.prevPromptSign {
		bin := c.epochCount % bitSyncHistogramBins
		c.bitHistogram[bin]++
	}
	c.prevPromptSign = sign
	c.havePrevSign = true

	if c.bitSynced || c.epochCount < bitSyncMinEpochs {
		return
	}

	maxBin, maxVal := 0, 0
	sum := 0
	for i, v := range c.bitHistogram {
		sum += v
		if v > maxVal {
			maxVal = v
			maxBin = i
		}
	}
	others := sum - maxVal
	meanOthers := float64(others) / float64(bitSyncHistogramBins-1)
	if meanOthers == 0 {
		if maxVal > 0 {
			c.bitSynced = true
			c.bitPhase = maxBin
		}
		return
	}
	if float64(maxVal)/meanOthers > bitSyncPeakToMeanRatio {
		c.bitSynced = true
		c.bitPhase = maxBin
	}
}

// accumulateBit sums prompt-I over 20 epochs aligned to the bit phase
// and emits a bit at the close of each 20-epoch window, once synced.
func (c *Channel) accumulateBit(prompt complex128) *Bit {
	if !c.bitSynced {
		return nil
	}
	c.bitAccumulator += real(prompt)

	if (c.epochCount-c.bitPhase)%bitSyncHistogramBins != 0 {
		return nil
	}

	value := c.bitAccumulator > 0
	c.bitAccumulator = 0
	return &Bit{Value: value, EpochTimeS: c.epochTimeS}
}

// updateCN0 maintains a rolling 20-epoch NBP/WBP window and returns the
// current C/N0 estimate in dB-Hz.
func (c *Channel) updateCN0(prompt complex128, tInt float64) float64 {
	c.nbpWindow = append(c.nbpWindow, prompt)
	if len(c.nbpWindow) > bitSyncHistogramBins {
		c.nbpWindow = c.nbpWindow[1:]
	}
	if len(c.nbpWindow) < bitSyncHistogramBins {
		return 0
	}

	var sumP complex128
	var wbp float64
	for _, p := range c.nbpWindow {
		sumP += p
		wbp += real(p)*real(p) + imag(p)*imag(p)
	}
	nbp := real(sumP)*real(sumP) + imag(sumP)*imag(sumP)

	if wbp == 0 || nbp <= wbp {
		return 0
	}
	return 10 * math.Log10((nbp-wbp)/(wbp*tInt))
}

// checkLossOfLock applies the dwell-timer rules for low C/N0 and
// sustained large phase error, transitioning to LOST when exceeded.
func (c *Channel) checkLossOfLock(cn0, phaseErr, tInt float64) {
	epochMs := int(tInt * 1000)

	if cn0 > 0 && cn0 < c.cfg.CN0LossThreshold {
		c.lowCN0Ms += epochMs
	} else {
		c.lowCN0Ms = 0
	}

	if math.Abs(phaseErr) > phaseErrSustainedCap {
		c.highPhaseErrMs += epochMs
	} else {
		c.highPhaseErrMs = 0
	}

	if c.lowCN0Ms > c.cfg.LossDwellMs || c.highPhaseErrMs > phaseErrSustainedMs {
		c.state = Lost
	}
}

// Retry returns a LOST channel to IDLE so the operator (channel
// manager) may re-seed it from a fresh acquisition.
func (c *Channel) Retry() {
	if c.state == Lost {
		c.state = IDLE
	}
}
