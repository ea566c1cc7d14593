package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/liveexport/internal/automation"
	"github.com/audiolibrelab/liveexport/internal/config"
	"github.com/audiolibrelab/liveexport/internal/exporter"
	"github.com/audiolibrelab/liveexport/internal/osc"
	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

// connectivityError marks failures to reach AbletonOSC so Execute can map
// them to a distinct exit code.
type connectivityError struct {
	err error
}

func (e *connectivityError) Error() string { return e.err.Error() }
func (e *connectivityError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "liveexport",
	Short: "Batch stem exporter for Ableton Live",
	Long: `LiveExport queries the open Ableton Live set over OSC (via the
AbletonOSC remote script) and drives Live's export dialog through GUI
automation to render tracks and whole groups to audio files.

Live must be running with AbletonOSC enabled, and the terminal needs
macOS accessibility permission for the export commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI. Exit code 2 means Live was unreachable; 1 is any
// other failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var connErr *connectivityError
		if errors.As(err, &connErr) || errors.Is(err, osc.ErrTimeout) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/liveexport.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=debug plus OSC tracing")
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// dialClient opens the OSC client from the loaded configuration.
func dialClient() (*osc.Client, error) {
	return osc.Dial(osc.Options{
		Host:         cfg.OSC.Host,
		SendPort:     cfg.OSC.SendPort,
		ReceivePort:  cfg.OSC.ReceivePort,
		QueryTimeout: cfg.OSC.QueryTimeout,
	})
}

// requireConnection probes Live and returns a connectivityError when it does
// not answer.
func requireConnection(client *osc.Client) error {
	if !client.TestConnection() {
		return &connectivityError{err: fmt.Errorf(
			"could not reach Ableton Live on %s:%d, make sure Live is running with AbletonOSC enabled",
			cfg.OSC.Host, cfg.OSC.SendPort)}
	}
	return nil
}

// requireAutomation checks that GUI automation can run on this system.
func requireAutomation() error {
	runner := automation.NewRunner(cfg.Automation.ScriptTimeout)
	if err := runner.Available(); err != nil {
		return fmt.Errorf("GUI automation needs macOS with osascript: %w", err)
	}
	return nil
}

// newExporter wires the full export stack over an open client.
func newExporter(client *osc.Client, view session.View) *exporter.Exporter {
	runner := automation.NewRunner(cfg.Automation.ScriptTimeout)
	driver := automation.NewAutomator(runner, cfg.Automation.AppName, cfg.Automation.ProcessName)
	machine := automation.NewMachine(driver, automation.Options{
		ProcessName:       cfg.Automation.ProcessName,
		ActivationRetries: cfg.Automation.ActivationRetries,
		SettleDelay:       cfg.Automation.SettleDelay,
		DialogDelay:       cfg.Automation.DialogDelay,
		PollInterval:      cfg.Automation.PollInterval,
		CompletionTimeout: cfg.Automation.CompletionTimeout,
	})
	analyzer := session.NewAnalyzer(client, view)
	return exporter.New(analyzer, client, machine, exporter.Options{
		OutputDir:   cfg.Output.Directory,
		Format:      cfg.Output.Format,
		ExportDelay: cfg.Automation.ExportDelay,
	})
}
