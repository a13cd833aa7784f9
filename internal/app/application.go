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

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/basestation"
	"adsbsynth/internal/beast"
	"adsbsynth/internal/detection"
	"adsbsynth/internal/feed"
	"adsbsynth/internal/logging"
	"adsbsynth/internal/server"
)

const (
	statsInterval   = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Application represents the main application
type Application struct {
	config Config
	logger *logrus.Logger
	now    func() time.Time
	epoch  time.Time

	manager     *aircraft.Manager
	registry    *detection.Registry
	synthesizer *detection.Synthesizer
	server      *server.Server
	broadcaster *beast.Broadcaster
	logRotator  *logging.Rotator
	baseStation *basestation.Writer
	feeder      *feed.Feeder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	return &Application{
		config: config,
		logger: NewLogger(config.Verbose),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
}

// NewLogger creates the application logger
func NewLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// Logger returns the application logger
func (app *Application) Logger() *logrus.Logger {
	return app.logger
}

// Start starts the application and blocks until a shutdown signal or Stop
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting synthetic ADS-B and radar generator")

	// Initialize components
	if err := app.initializeComponents(); err != nil {
		app.closeOutputs()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := app.run(); err != nil {
		app.logger.WithError(err).Error("Application error")
		app.shutdown()
		return err
	}

	select {
	case <-sigChan:
		app.logger.Info("Received shutdown signal")
	case <-app.ctx.Done():
	}
	app.shutdown()

	return nil
}

// Ready is closed once every component has started
func (app *Application) Ready() <-chan struct{} {
	return app.ready
}

// Stop requests shutdown of a running application
func (app *Application) Stop() {
	app.cancel()
}

// ResolveSeed replaces a zero seed with one taken from the clock
func ResolveSeed(seed int64, now time.Time) int64 {
	if seed != 0 {
		return seed
	}
	return now.UnixNano()
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app.epoch = app.now()

	aircraftCfg := app.config.Aircraft
	if aircraftCfg.Seed == 0 {
		aircraftCfg.Seed = ResolveSeed(0, app.epoch)
		app.logger.WithField("seed", aircraftCfg.Seed).Info("No random seed configured, seeded from clock")
	}

	var err error
	app.manager, err = aircraft.NewManager(aircraftCfg, nil, app.logger)
	if err != nil {
		return fmt.Errorf("failed to generate aircraft: %w", err)
	}

	app.registry, err = detection.NewRegistry(app.config.Detection)
	if err != nil {
		return fmt.Errorf("failed to build radar registry: %w", err)
	}
	app.synthesizer = detection.NewSynthesizer(app.config.Detection, app.logger)

	app.server = server.New(app.config.HTTP, server.Backend{
		Fleet:       app.manager,
		Synthesizer: app.synthesizer,
		Registry:    app.registry,
		Transmitter: app.config.Detection.Transmitter,
		Epoch:       app.epoch,
	}, app.logger)

	var feedOpts []feed.Option

	if app.config.SBS.Enabled {
		app.logRotator, err = logging.NewRotator(app.config.SBS.LogDir, app.config.SBS.UTC, app.logger,
			logging.WithPrefix(app.config.SBS.Prefix))
		if err != nil {
			return fmt.Errorf("failed to initialize log rotator: %w", err)
		}
		app.baseStation = basestation.NewWriter(app.logRotator, app.logger)
		feedOpts = append(feedOpts, feed.WithReportWriter(app.baseStation))
	}

	if app.config.Beast.Enabled {
		app.broadcaster = beast.NewBroadcaster(app.config.Beast.Addr, app.logger)
		feedOpts = append(feedOpts, feed.WithFrameSink(app.broadcaster))
	}

	app.feeder = feed.NewFeeder(app.config.feedConfig(), app.manager, app.epoch, app.logger, feedOpts...)

	return nil
}

// run starts every component in the background
func (app *Application) run() error {
	if app.broadcaster != nil {
		if err := app.broadcaster.Start(); err != nil {
			return fmt.Errorf("failed to start beast output: %w", err)
		}
	}

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if app.logRotator != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logRotator.Start(app.ctx)
		}()

		if app.config.SBS.MaxAgeDays > 0 {
			if _, err := app.logRotator.CleanupOldLogs(app.config.SBS.MaxAgeDays); err != nil {
				app.logger.WithError(err).Warn("Failed to clean up old log files")
			}
		}
	}

	if err := app.feeder.Validate(); err == nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.feeder.Run(app.ctx); err != nil {
				app.logger.WithError(err).Error("Feeder failed")
			}
		}()
	} else {
		app.logger.Info("No transponder outputs enabled, feeder not started")
	}

	// Start statistics reporting
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	app.logger.WithFields(logrus.Fields{
		"aircraft": app.manager.Len(),
		"radars":   len(app.registry.Radars()),
	}).Info("All components started successfully")
	close(app.ready)
	return nil
}

// reportStatistics reports output statistics periodically
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.logStatistics()
		}
	}
}

func (app *Application) logStatistics() {
	fs := app.feeder.Stats()
	fields := logrus.Fields{
		"ticks":           fs.Ticks,
		"reports":         fs.Reports,
		"frames":          fs.Frames,
		"write_errors":    fs.WriteErrors,
		"encode_errors":   fs.EncodeErrors,
		"verify_failures": fs.VerifyFailures,
	}
	if app.broadcaster != nil {
		bs := app.broadcaster.Stats()
		fields["beast_clients"] = bs.Clients
		fields["beast_sent"] = bs.Sent
		fields["beast_dropped"] = bs.Dropped
	}
	app.logger.WithFields(fields).Info("Output statistics")
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("HTTP shutdown incomplete")
		}
		cancel()
	}
	app.closeOutputs()

	app.logger.Info("Shutdown completed")
}

func (app *Application) closeOutputs() {
	if app.broadcaster != nil {
		app.broadcaster.Stop()
	}
	if app.logRotator != nil {
		app.logRotator.Close()
	}
}
