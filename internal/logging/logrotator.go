// Package logging provides the rotating, gzip-compressed record of
// receiver events (tracking state transitions, decoded ephemeris
// updates) kept alongside the core's structured stderr/stdout logging.
// It is a host-facing audit trail, independent of the lock-free
// observable publication path in internal/gnss/channel.
package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ReceiverLog rotates a daily, gzip-compressed log file recording
// tracking-channel lifecycle events and navigation message decodes.
type ReceiverLog struct {
	logDir      string
	useUTC      bool
	logger      *logrus.Logger
	entryLogger *logrus.Logger
	currentFile *os.File
	currentDate string
	mutex       sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewReceiverLog creates logDir if needed and opens today's log file.
func NewReceiverLog(logDir string, useUTC bool, logger *logrus.Logger) (*ReceiverLog, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &ReceiverLog{
		logDir: logDir,
		useUTC: useUTC,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := r.rotateLogFile(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	entryLogger := logrus.New()
	entryLogger.SetFormatter(&logrus.JSONFormatter{})
	entryLogger.SetOutput(&rotatingWriter{r: r})
	r.entryLogger = entryLogger

	return r, nil
}

// rotatingWriter forwards Write to whatever file ReceiverLog currently
// has open, so entryLogger keeps working across a midnight rollover.
type rotatingWriter struct {
	r *ReceiverLog
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	writer, err := w.r.GetWriter()
	if err != nil {
		return 0, err
	}
	return writer.Write(p)
}

// Start runs the rotation scheduler until ctx or the log's own Close
// ends it.
func (r *ReceiverLog) Start(ctx context.Context) {
	r.logger.Info("starting receiver log rotator")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("receiver log rotator stopping")
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.checkRotation()
		}
	}
}

func (r *ReceiverLog) checkRotation() {
	currentDate := r.now().Format("2006-01-02")

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentDate != currentDate {
		r.logger.WithFields(logrus.Fields{
			"old_date": r.currentDate,
			"new_date": currentDate,
		}).Info("rotating receiver log file")

		if err := r.rotateLogFile(); err != nil {
			r.logger.WithError(err).Error("failed to rotate receiver log file")
		}
	}
}

func (r *ReceiverLog) now() time.Time {
	if r.useUTC {
		return time.Now().UTC()
	}
	return time.Now()
}

func (r *ReceiverLog) rotateLogFile() error {
	newDate := r.now().Format("2006-01-02")

	if r.currentFile != nil && r.currentDate == newDate {
		return nil
	}

	if r.currentFile != nil {
		oldFile := r.currentFile
		oldDate := r.currentDate

		if err := oldFile.Close(); err != nil {
			r.logger.WithError(err).Error("failed to close old receiver log file")
		}

		go r.compressLogFile(oldDate)
	}

	filename := fmt.Sprintf("gps_%s.log", newDate)
	path := filepath.Join(r.logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = newDate

	r.logger.WithField("file", path).Info("created new receiver log file")
	return nil
}

func (r *ReceiverLog) compressLogFile(date string) {
	logFile := filepath.Join(r.logDir, fmt.Sprintf("gps_%s.log", date))
	gzipFile := filepath.Join(r.logDir, fmt.Sprintf("gps_%s.log.gz", date))

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		r.logger.WithField("file", logFile).Debug("receiver log file doesn't exist, skipping compression")
		return
	}

	src, err := os.Open(logFile)
	if err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("failed to open source file for compression")
		return
	}
	defer src.Close()

	dst, err := os.Create(gzipFile)
	if err != nil {
		r.logger.WithError(err).WithField("file", gzipFile).Error("failed to create compressed file")
		return
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	gzWriter.Name = filepath.Base(logFile)
	gzWriter.ModTime = time.Now()

	if _, err := io.Copy(gzWriter, src); err != nil {
		r.logger.WithError(err).Error("failed to compress receiver log file")
		return
	}
	if err := gzWriter.Close(); err != nil {
		r.logger.WithError(err).Error("failed to close gzip writer")
		return
	}
	if err := dst.Close(); err != nil {
		r.logger.WithError(err).Error("failed to close compressed file")
		return
	}
	if err := os.Remove(logFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("failed to remove original receiver log file")
		return
	}

	r.logger.WithField("file", gzipFile).Info("receiver log file compressed")
}

// GetWriter returns the currently open log file for direct writes.
func (r *ReceiverLog) GetWriter() (io.Writer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentFile == nil {
		return nil, fmt.Errorf("no current log file")
	}
	return r.currentFile, nil
}

// LogStateTransition records a tracking channel's state change.
func (r *ReceiverLog) LogStateTransition(prn int, from, to string, epoch uint64) {
	r.entryLogger.WithFields(logrus.Fields{
		"event": "state_transition",
		"prn":   prn,
		"from":  from,
		"to":    to,
		"epoch": epoch,
	}).Info("tracking state change")
}

// LogEphemerisUpdate records a freshly assembled ephemeris set.
func (r *ReceiverLog) LogEphemerisUpdate(prn, iode, iodc int) {
	r.entryLogger.WithFields(logrus.Fields{
		"event": "ephemeris_update",
		"prn":   prn,
		"iode":  iode,
		"iodc":  iodc,
	}).Info("ephemeris decoded")
}

// Close stops the rotation scheduler and closes the open file.
func (r *ReceiverLog) Close() error {
	r.logger.Info("closing receiver log")

	r.cancel()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile != nil {
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("failed to close current receiver log file")
			return err
		}
		r.currentFile = nil
	}
	return nil
}

// GetCurrentLogFile returns the path of the currently open log file.
func (r *ReceiverLog) GetCurrentLogFile() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentDate == "" {
		return ""
	}
	return filepath.Join(r.logDir, fmt.Sprintf("gps_%s.log", r.currentDate))
}

// GetLogFiles lists every receiver log file, rotated or not.
func (r *ReceiverLog) GetLogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, "gps_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes rotated log files older than maxDays,
// leaving the currently open file untouched.
func (r *ReceiverLog) CleanupOldLogs(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}

	files, err := r.GetLogFiles()
	if err != nil {
		return fmt.Errorf("failed to get log files: %w", err)
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.GetCurrentLogFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("failed to stat log file")
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("failed to remove old log file")
			} else {
				r.logger.WithField("file", file).Info("removed old receiver log file")
				removed++
			}
		}
	}

	r.logger.WithField("count", removed).Info("cleaned up old receiver log files")
	return nil
}
