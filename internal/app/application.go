package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gpsreceiver/internal/ephstore"
	"gpsreceiver/internal/gnss/channel"
	"gpsreceiver/internal/logging"
	"gpsreceiver/internal/sdr"
	"gpsreceiver/internal/sdr/rtlsdr"
)

const (
	trackRingCapacity = 1 << 20
	acqRingCapacity   = 1 << 16
	pullBatchMs       = 10
	pullTimeout       = 100 * time.Millisecond
)

// Application wires the sample source, acquisition/tracking core, the
// navigation decoder's published updates, and the two logging sinks
// (structured stderr logs and the rotating receiver log) into a single
// runnable receiver.
type Application struct {
	config      Config
	logger      *logrus.Logger
	device      *rtlsdr.Device
	manager     *channel.Manager
	receiverLog *logging.ReceiverLog
	ephStore    ephstore.Store

	trackRing *channel.Ring
	acqRing   *channel.Ring

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication creates a new application instance.
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start initializes every component, runs until a shutdown signal
// arrives, then shuts down gracefully.
func (app *Application) Start() error {
	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("starting GPS L1 C/A receiver")

	if err := app.initializeComponents(); err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.run(); err != nil {
		app.logger.WithError(err).Error("application error")
		return err
	}

	<-sigChan
	app.logger.Info("received shutdown signal")
	app.shutdown()

	return nil
}

func (app *Application) initializeComponents() error {
	app.trackRing = channel.NewRing(trackRingCapacity)
	app.acqRing = channel.NewRing(acqRingCapacity)

	app.device = rtlsdr.New(app.logger)
	if err := app.device.Initialize(app.config.DeviceIndex, app.config.SampleRateHz, app.config.CenterFreqHz); err != nil {
		return fmt.Errorf("failed to initialize sdr device: %w", err)
	}

	app.manager = channel.NewManager(channel.ManagerConfig{
		SampleRateHz:      app.config.SampleRateHz,
		TrackingConfig:    app.config.trackingConfig(),
		AcquisitionConfig: app.config.acquisitionConfig(),
		Logger:            app.logger,
	})

	var err error
	app.receiverLog, err = logging.NewReceiverLog(app.config.LogDir, app.config.LogRotateUTC, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize receiver log: %w", err)
	}

	if app.config.EphemerisDBPath != "" {
		app.ephStore = ephstore.NewSqliteStore(app.config.EphemerisDBPath)
	}

	return nil
}

func (app *Application) run() error {
	app.logger.Info("starting sample capture")

	if err := app.device.Start(); err != nil {
		return fmt.Errorf("failed to start sdr device: %w", err)
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.pullSamples()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.receiverLog.Start(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.manager.Run(app.ctx, app.trackRing)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.acquireLoop()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.publishLoop()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	app.logger.Info("all components started")
	return nil
}

// pullSamples drains the sdr.Source in small batches and fans each
// batch out to both the tracking ring and the acquisition scratch ring.
func (app *Application) pullSamples() {
	batchSize := int(app.config.SampleRateHz * pullBatchMs / 1000)
	if batchSize <= 0 {
		batchSize = 1
	}

	for {
		select {
		case <-app.ctx.Done():
			return
		default:
		}

		samples, err := app.device.PullSamples(batchSize, pullTimeout)
		switch {
		case err == sdr.ErrTimedOut:
			continue
		case err == sdr.ErrClosed:
			app.logger.Info("sample source closed, stopping capture")
			return
		case err != nil:
			app.logger.WithError(err).Warn("pull samples failed")
			continue
		}

		app.trackRing.Push(samples)
		app.acqRing.Push(samples)
	}
}

// acquireLoop periodically searches for PRNs that don't yet have an
// active tracking channel, using whatever is buffered in acqRing.
func (app *Application) acquireLoop() {
	interval := time.Duration(app.config.ReacquireIntervalS) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	onePeriodSamples := int(app.config.SampleRateHz * 0.001)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			pending := app.pendingPRNs()
			if len(pending) == 0 {
				continue
			}

			buf := app.acqRing.Pull(app.acqRing.Len())
			if len(buf) < onePeriodSamples {
				continue
			}

			results := app.manager.Acquire(app.ctx, buf, pending)
			app.logger.WithFields(logrus.Fields{
				"searched": len(pending),
				"found":    len(results),
			}).Info("acquisition sweep complete")
		}
	}
}

func (app *Application) pendingPRNs() []int {
	active := make(map[int]bool)
	for _, p := range app.manager.ActivePRNs() {
		active[p] = true
	}

	var pending []int
	for _, p := range app.config.PRNList {
		if !active[p] {
			pending = append(pending, p)
		}
	}
	return pending
}

// publishLoop drains the manager's observable and ephemeris channels,
// recording state transitions and ephemeris updates into the receiver
// log and, when configured, the ephemeris checkpoint store.
func (app *Application) publishLoop() {
	lastState := make(map[int]string)

	for {
		select {
		case <-app.ctx.Done():
			return
		case obs, ok := <-app.manager.Observables():
			if !ok {
				return
			}
			state, _ := app.manager.ChannelState(obs.PRN)
			newState := state.String()
			if lastState[obs.PRN] != newState {
				app.receiverLog.LogStateTransition(obs.PRN, lastState[obs.PRN], newState, uint64(obs.Observable.EpochTimeS*1000))
				lastState[obs.PRN] = newState
			}
		case update, ok := <-app.manager.EphemerisUpdates():
			if !ok {
				return
			}
			app.receiverLog.LogEphemerisUpdate(update.PRN, update.Ephemeris.IODE, update.Ephemeris.IODC)
			if app.ephStore != nil {
				if err := app.ephStore.SaveEphemeris(app.ctx, update.Ephemeris); err != nil {
					app.logger.WithError(err).WithField("prn", update.PRN).Warn("failed to checkpoint ephemeris")
				}
			}
		}
	}
}

// reportStatistics reports processing statistics periodically.
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			active := app.manager.ActivePRNs()
			lost := app.manager.LostPRNs()
			app.logger.WithFields(logrus.Fields{
				"active_channels":  len(active),
				"lost_channels":    len(lost),
				"track_ring_drops": app.trackRing.Overflow(),
				"acq_ring_drops":   app.acqRing.Overflow(),
			}).Info("receiver status")

			for _, p := range lost {
				app.manager.Drop(p)
			}
		}
	}
}

// shutdown gracefully shuts down the application.
func (app *Application) shutdown() {
	app.logger.Info("shutting down application")
	app.cancel()

	if err := app.device.Stop(); err != nil {
		app.logger.WithError(err).Warn("failed to stop sdr device")
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("all goroutines finished")
	case <-time.After(5 * time.Second):
		app.logger.Warn("shutdown timeout, forcing exit")
	}

	if err := app.device.Close(); err != nil {
		app.logger.WithError(err).Warn("failed to close sdr device")
	}
	if app.receiverLog != nil {
		_ = app.receiverLog.Close()
	}
	if app.ephStore != nil {
		_ = app.ephStore.Close()
	}

	app.logger.Info("shutdown completed")
}
