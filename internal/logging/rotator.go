// Package logging provides daily rotating output files for the SBS feed.
// Finished days are gzip compressed in the background.
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

// DefaultPrefix names the files written by the feeder
const DefaultPrefix = "sbs"

const (
	dateLayout    = "2006-01-02"
	checkInterval = time.Minute
)

// Rotator writes to one file per day and compresses the previous day's
// file on rotation. It is safe for concurrent use.
type Rotator struct {
	logDir string
	prefix string
	useUTC bool
	logger *logrus.Logger
	now    func() time.Time

	currentFile *os.File
	currentDate string
	mutex       sync.Mutex

	compressing sync.WaitGroup
}

// Option configures a Rotator
type Option func(*Rotator)

// WithPrefix sets the file name prefix, files are named <prefix>_<date>.log
func WithPrefix(prefix string) Option {
	return func(r *Rotator) { r.prefix = prefix }
}

// WithClock sets the clock that decides the current date
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) { r.now = now }
}

// NewRotator creates the log directory and opens today's file
func NewRotator(logDir string, useUTC bool, logger *logrus.Logger, opts ...Option) (*Rotator, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{
		logDir: logDir,
		prefix: DefaultPrefix,
		useUTC: useUTC,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if err := r.rotateLocked(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return r, nil
}

// Start checks for a date change every minute until ctx is cancelled
func (r *Rotator) Start(ctx context.Context) {
	r.logger.Info("Starting log rotator")

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Log rotator stopping")
			return
		case <-ticker.C:
			r.CheckRotation()
		}
	}
}

func (r *Rotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

// CheckRotation rotates to a new file when the date has changed
func (r *Rotator) CheckRotation() {
	currentDate := r.today()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil || r.currentDate == currentDate {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"old_date": r.currentDate,
		"new_date": currentDate,
	}).Info("Rotating log file")

	if err := r.rotateLocked(); err != nil {
		r.logger.WithError(err).Error("Failed to rotate log file")
	}
}

func (r *Rotator) rotateLocked() error {
	newDate := r.today()

	if r.currentFile != nil {
		oldDate := r.currentDate
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old log file")
		}
		r.currentFile = nil

		r.compressing.Add(1)
		go func() {
			defer r.compressing.Done()
			r.compress(oldDate)
		}()
	}

	path := r.path(newDate)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = newDate

	r.logger.WithField("file", path).Info("Created new log file")
	return nil
}

func (r *Rotator) path(date string) string {
	return filepath.Join(r.logDir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

// compress gzips the file for date and removes the original
func (r *Rotator) compress(date string) {
	logFile := r.path(date)
	gzipFile := logFile + ".gz"

	log := r.logger.WithFields(logrus.Fields{
		"source": logFile,
		"target": gzipFile,
	})
	log.Info("Compressing log file")

	if err := gzipFileTo(logFile, gzipFile, r.now()); err != nil {
		if os.IsNotExist(err) {
			log.Debug("Log file doesn't exist, skipping compression")
			return
		}
		log.WithError(err).Error("Failed to compress log file")
		return
	}

	if err := os.Remove(logFile); err != nil {
		log.WithError(err).Error("Failed to remove original log file")
		return
	}

	log.Info("Log file compressed successfully")
}

func gzipFileTo(source, target string, modTime time.Time) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(source)
	gz.ModTime = modTime

	if _, err := io.Copy(gz, src); err != nil {
		return err
	}
	// Close gzip writer to flush data
	if err := gz.Close(); err != nil {
		return err
	}
	return dst.Close()
}

// Write writes to the current day's file
func (r *Rotator) Write(p []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return 0, fmt.Errorf("no current log file")
	}
	return r.currentFile.Write(p)
}

// GetWriter returns a writer that always targets the current file
func (r *Rotator) GetWriter() (io.Writer, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return nil, fmt.Errorf("no current log file")
	}
	return r, nil
}

// Close closes the current file and waits for pending compression
func (r *Rotator) Close() error {
	r.logger.Info("Closing log rotator")

	r.mutex.Lock()
	var err error
	if r.currentFile != nil {
		if err = r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close current log file")
		}
		r.currentFile = nil
	}
	r.mutex.Unlock()

	r.compressing.Wait()
	return err
}

// GetCurrentLogFile returns the current log file path
func (r *Rotator) GetCurrentLogFile() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentDate == "" {
		return ""
	}
	return r.path(r.currentDate)
}

// GetLogFiles returns a list of all log files (including compressed ones)
func (r *Rotator) GetLogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes log files older than the specified number of days
func (r *Rotator) CleanupOldLogs(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive")
	}

	files, err := r.GetLogFiles()
	if err != nil {
		return 0, fmt.Errorf("failed to get log files: %w", err)
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
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat log file")
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("Failed to remove old log file")
				continue
			}
			r.logger.WithField("file", file).Info("Removed old log file")
			removed++
		}
	}

	r.logger.WithField("count", removed).Info("Cleaned up old log files")
	return removed, nil
}
