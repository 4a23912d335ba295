package channel

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gpsreceiver/internal/gnss/acquisition"
	"gpsreceiver/internal/gnss/navdata"
	"gpsreceiver/internal/gnss/prncode"
	"gpsreceiver/internal/gnss/tracking"
)

// PRNObservable tags a tracking observable with the satellite it came from.
type PRNObservable struct {
	PRN        int
	Observable tracking.Observable
}

// ManagerConfig collects the knobs a Manager needs to run channels and
// the acquisition pool.
type ManagerConfig struct {
	SampleRateHz      float64
	TrackingConfig    tracking.Config
	AcquisitionConfig acquisition.Config
	Logger            *logrus.Logger
}

// Manager owns the set of active tracking channels, the nav-message
// decoder they feed, and the acquisition worker pool that seeds new
// channels. Channels share no mutable state with each other, so a
// batch is fanned out to all of them concurrently.
type Manager struct {
	cfg    ManagerConfig
	logger *logrus.Logger
	prnGen *prn.Generator
	nav    *navdata.Decoder

	mu       sync.RWMutex
	channels map[int]*tracking.Channel

	observables chan PRNObservable
	ephemeris   chan navdata.EphemerisUpdate
}

// NewManager returns a Manager with no active channels.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		cfg:         cfg,
		logger:      logger,
		prnGen:      prn.NewGenerator(),
		nav:         navdata.NewDecoder(),
		channels:    make(map[int]*tracking.Channel),
		observables: make(chan PRNObservable, 256),
		ephemeris:   make(chan navdata.EphemerisUpdate, 32),
	}
}

// Observables is the lock-free publication path for per-epoch tracking
// results; a full channel drops the observable rather than blocking
// the real-time loop.
func (m *Manager) Observables() <-chan PRNObservable { return m.observables }

// EphemerisUpdates delivers freshly assembled ephemerides as the nav
// decoder completes them.
func (m *Manager) EphemerisUpdates() <-chan navdata.EphemerisUpdate { return m.ephemeris }

// ActivePRNs returns the PRNs with a channel currently allocated,
// regardless of tracking state.
func (m *Manager) ActivePRNs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.channels))
	for p := range m.channels {
		out = append(out, p)
	}
	return out
}

// ChannelState returns the tracking state for prn, if a channel exists.
func (m *Manager) ChannelState(prnID int) (tracking.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[prnID]
	if !ok {
		return tracking.IDLE, false
	}
	return ch.State(), true
}

// Ephemeris returns the most recently assembled ephemeris for prn.
func (m *Manager) Ephemeris(prnID int) (navdata.Ephemeris, bool) {
	return m.nav.Ephemeris(prnID)
}

// Acquire runs the acquisition search for every PRN in prnList against
// samples, in parallel across min(len(prnList), GOMAXPROCS) workers,
// and seeds a tracking channel for every satellite found. It returns
// the acquisition results for satellites that were found.
func (m *Manager) Acquire(ctx context.Context, samples []complex64, prnList []int) []acquisition.Result {
	workers := runtime.GOMAXPROCS(0)
	if len(prnList) < workers {
		workers = len(prnList)
	}
	if workers <= 0 {
		return nil
	}

	jobs := make(chan int, len(prnList))
	for _, p := range prnList {
		jobs <- p
	}
	close(jobs)

	results := make(chan acquisition.Result, len(prnList))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for prnID := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				m.acquireOne(prnID, samples, results)
			}
		}()
	}
	wg.Wait()
	close(results)

	var found []acquisition.Result
	for res := range results {
		found = append(found, res)
		m.seedChannel(res)
	}
	return found
}

func (m *Manager) acquireOne(prnID int, samples []complex64, out chan<- acquisition.Result) {
	code, err := m.prnGen.Bipolar(prnID)
	if err != nil {
		m.logger.WithError(err).WithField("prn", prnID).Warn("acquisition skipped: bad prn")
		return
	}
	res, err := acquisition.Search(prnID, samples, &code, m.cfg.AcquisitionConfig)
	if err != nil {
		m.logger.WithError(err).WithField("prn", prnID).Warn("acquisition search failed")
		return
	}
	if res.Found {
		m.logger.WithFields(logrus.Fields{
			"prn":        res.PRN,
			"doppler_hz": res.DopplerHz,
			"code_phase": res.CodePhaseChips,
			"peak_ratio": res.PeakRatio,
		}).Info("acquisition found satellite")
		out <- res
	}
}

func (m *Manager) seedChannel(res acquisition.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[res.PRN]
	if !ok {
		code, err := m.prnGen.Bipolar(res.PRN)
		if err != nil {
			return
		}
		ch = tracking.NewChannel(res.PRN, code, m.cfg.TrackingConfig)
		m.channels[res.PRN] = ch
	}
	ch.Seed(tracking.Seed{
		PRN:            res.PRN,
		CodePhaseChips: res.CodePhaseChips,
		DopplerHz:      res.DopplerHz,
	})
}

// LostPRNs returns the PRNs whose channel has declared loss of lock,
// so the host can decide whether to re-acquire them.
func (m *Manager) LostPRNs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int
	for p, ch := range m.channels {
		if ch.State() == tracking.Lost {
			out = append(out, p)
		}
	}
	return out
}

// Drop removes a channel entirely, freeing it for a future Acquire to
// re-seed from scratch.
func (m *Manager) Drop(prnID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, prnID)
}

// Run is the real-time loop: once a millisecond it pulls one epoch of
// samples from ring, steps every active channel concurrently, and
// routes the resulting observables and nav bits. It returns when ctx
// is canceled.
func (m *Manager) Run(ctx context.Context, ring *Ring) {
	epochSamples := int(m.cfg.SampleRateHz * 0.001)
	if epochSamples <= 0 {
		epochSamples = 1
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := ring.Pull(epochSamples)
			if len(batch) == 0 {
				continue
			}
			m.stepEpoch(batch)
		}
	}
}

type stepResult struct {
	prn int
	obs *tracking.Observable
	bit *tracking.Bit
}

func (m *Manager) stepEpoch(samples []complex64) {
	m.mu.RLock()
	prns := make([]int, 0, len(m.channels))
	chans := make([]*tracking.Channel, 0, len(m.channels))
	for p, c := range m.channels {
		prns = append(prns, p)
		chans = append(chans, c)
	}
	m.mu.RUnlock()

	results := make([]stepResult, len(chans))
	var wg sync.WaitGroup
	for i := range chans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obs, bit := chans[i].Step(samples)
			results[i] = stepResult{prn: prns[i], obs: obs, bit: bit}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r.obs != nil {
			select {
			case m.observables <- PRNObservable{PRN: r.prn, Observable: *r.obs}:
			default:
				m.logger.WithField("prn", r.prn).Debug("observable channel full, dropping")
			}
		}
		if r.bit != nil {
			update, err := m.nav.Feed(r.prn, r.bit.Value, r.bit.EpochTimeS)
			if err != nil {
				m.logger.WithError(err).WithField("prn", r.prn).Warn("nav feed rejected bit")
				continue
			}
			if update != nil {
				m.logger.WithFields(logrus.Fields{
					"prn":  update.PRN,
					"iode": update.Ephemeris.IODE,
				}).Info("ephemeris updated")
				select {
				case m.ephemeris <- *update:
				default:
					m.logger.WithField("prn", r.prn).Warn("ephemeris channel full, dropping")
				}
			}
		}
	}
}
