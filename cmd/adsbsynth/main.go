package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"adsbsynth/internal/app"
	"adsbsynth/internal/detection"
)

// flags holds command line overrides; only flags the user set are applied
type flags struct {
	configPath   string
	verbose      bool
	showVersion  bool
	host         string
	port         int
	beastAddr    string
	noBeast      bool
	logDir       string
	noSBS        bool
	utc          bool
	intervalMS   int
	verify       bool
	seed         int64
	normal       int
	anomalous    int
	dopplerModel string
}

func main() {
	if err := newRootCmd(&flags{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(f *flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adsbsynth",
		Short: "Synthetic ADS-B and multistatic radar fixture generator",
		Long: `Synthetic ADS-B and multistatic radar fixture generator.

Simulates normal aircraft circling a fixed point and anomalous aircraft
(supersonic, instant direction change, instant acceleration, misreporting
transponders), and serves:

  - tar1090 aircraft.json and the true states over HTTP
  - blah2 detection and config endpoints per radar
  - Beast binary frames on a TCP port (dump1090 port 30005 style)
  - BaseStation (SBS) lines in daily rotating files

Configuration is layered: defaults, then --config JSON, then environment
(TX_LAT, TX_LON, TX_ALT, FC_MHZ, RADIUS_DEG, ANGULAR_SPEED, ALT_BARO_FT,
ICAO_HEX, HOST, PORT, RADARS, ...), then flags.

Example usage:
  adsbsynth --port 5001 --beast-addr :30005 --log-dir ./logs --seed 42`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}

			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			application := app.NewApplication(cfg)
			return application.Start()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "JSON configuration file")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose logging")
	pf.Int64Var(&f.seed, "seed", 0, "Random seed for anomalous aircraft (0 seeds from the clock)")
	pf.IntVar(&f.normal, "normal", 0, "Number of normal aircraft")
	pf.IntVar(&f.anomalous, "anomalous", 0, "Number of anomalous aircraft")
	pf.StringVar(&f.dopplerModel, "doppler-model", "", "Doppler model: total_speed or projected")

	rf := rootCmd.Flags()
	rf.BoolVar(&f.showVersion, "version", false, "Show version information")
	rf.StringVar(&f.host, "host", "", "HTTP listen host")
	rf.IntVarP(&f.port, "port", "p", 0, "HTTP listen port")
	rf.StringVar(&f.beastAddr, "beast-addr", "", "Beast TCP output address")
	rf.BoolVar(&f.noBeast, "no-beast", false, "Disable the Beast TCP output")
	rf.StringVarP(&f.logDir, "log-dir", "l", "", "BaseStation log directory")
	rf.BoolVar(&f.noSBS, "no-sbs", false, "Disable the BaseStation log output")
	rf.BoolVarP(&f.utc, "utc", "u", true, "Use UTC for log rotation")
	rf.IntVar(&f.intervalMS, "interval", 0, "Transponder output interval in milliseconds")
	rf.BoolVar(&f.verify, "verify", false, "Decode emitted positions and warn on mismatch")

	rootCmd.AddCommand(newSnapshotCmd(f), newListenCmd(f))
	return rootCmd
}

// loadConfig layers flags the user set over file and environment settings
func loadConfig(cmd *cobra.Command, f *flags) (app.Config, error) {
	cfg, err := app.Load(f.configPath)
	if err != nil {
		return app.Config{}, err
	}

	set := func(name string) bool {
		return changed(cmd.Flags(), name) || changed(cmd.InheritedFlags(), name)
	}

	if set("verbose") {
		cfg.Verbose = f.verbose
	}
	if set("seed") {
		cfg.Aircraft.Seed = f.seed
	}
	if set("normal") {
		cfg.Aircraft.NormalCount = f.normal
	}
	if set("anomalous") {
		cfg.Aircraft.AnomalousCount = f.anomalous
	}
	if set("doppler-model") {
		cfg.Detection.DopplerModel = detection.DopplerModel(f.dopplerModel)
	}
	if set("host") {
		cfg.HTTP.Host = f.host
	}
	if set("port") {
		cfg.HTTP.Port = f.port
	}
	if set("beast-addr") {
		cfg.Beast.Addr = f.beastAddr
	}
	if set("no-beast") {
		cfg.Beast.Enabled = !f.noBeast
	}
	if set("log-dir") {
		cfg.SBS.LogDir = f.logDir
	}
	if set("no-sbs") {
		cfg.SBS.Enabled = !f.noSBS
	}
	if set("utc") {
		cfg.SBS.UTC = f.utc
	}
	if set("interval") {
		cfg.Feed.IntervalMS = f.intervalMS
	}
	if set("verify") {
		cfg.Feed.Verify = f.verify
	}

	return cfg, nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	fl := fs.Lookup(name)
	return fl != nil && fl.Changed
}

func newSnapshotCmd(f *flags) *cobra.Command {
	var (
		t      float64
		radars []string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the reported feed, true states and detections at one instant as JSON",
		Long: `Print the reported feed, true states and detections at scenario time t
(seconds since start) as JSON. Use a fixed --seed to get a reproducible
fixture; with no seed the chosen one is included in the output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Verbose)
			logger.SetOutput(cmd.ErrOrStderr())

			snap, err := app.TakeSnapshot(cfg, t, radars, logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(snap)
		},
	}

	cmd.Flags().Float64VarP(&t, "time", "t", 0, "Scenario time in seconds")
	cmd.Flags().StringSliceVarP(&radars, "radar", "r", nil, "Radar ids to synthesize detections for (default all)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

func newListenCmd(f *flags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect to a Beast TCP feed and print decoded messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := app.NewLogger(f.verbose)
			logger.SetOutput(cmd.ErrOrStderr())

			return app.Listen(ctx, addr, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:30005", "Beast feed address")
	return cmd
}
