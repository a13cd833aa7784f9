package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/detection"
)

// Snapshot is every view of the scenario at one instant, used to capture
// fixtures for downstream tests
type Snapshot struct {
	Time       float64                          `json:"t"`
	Seed       int64                            `json:"seed"`
	Reported   []aircraft.Report                `json:"reported"`
	Truth      []aircraft.State                 `json:"truth"`
	Detections map[string][]detection.Detection `json:"detections"`
}

// TakeSnapshot builds the scenario from cfg and samples it at t seconds.
// Detections are produced for the named radars, or every radar when none
// are named. A zero seed is replaced from the clock and reported in the
// result so the snapshot can be replayed.
func TakeSnapshot(cfg Config, t float64, radarIDs []string, logger *logrus.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	aircraftCfg := cfg.Aircraft
	aircraftCfg.Seed = ResolveSeed(aircraftCfg.Seed, time.Now())

	manager, err := aircraft.NewManager(aircraftCfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to generate aircraft: %w", err)
	}
	registry, err := detection.NewRegistry(cfg.Detection)
	if err != nil {
		return nil, fmt.Errorf("failed to build radar registry: %w", err)
	}

	radars := registry.Radars()
	if len(radarIDs) > 0 {
		radars = radars[:0]
		for _, id := range radarIDs {
			radar, err := registry.Lookup(id)
			if err != nil {
				return nil, err
			}
			radars = append(radars, radar)
		}
	}

	synth := detection.NewSynthesizer(cfg.Detection, logger)
	truth := manager.TrueStates(t)

	snap := &Snapshot{
		Time:       t,
		Seed:       aircraftCfg.Seed,
		Reported:   manager.ReportedFeed(t),
		Truth:      truth,
		Detections: make(map[string][]detection.Detection, len(radars)),
	}
	for _, radar := range radars {
		snap.Detections[radar.ID] = synth.Synthesize(truth, radar)
	}
	return snap, nil
}
