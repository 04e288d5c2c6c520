package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/nap-alarm/internal/config"
	"github.com/bnema/nap-alarm/internal/logger"
)

var (
	verbose bool
	cfgFile string

	// Version information
	version    string
	commitHash string
	buildTime  string
)

var rootCmd = &cobra.Command{
	Use:   "nap-alarm",
	Short: "Set a calendar alarm once your Fitbit reports you fell asleep",
	Long: `nap-alarm watches your Fitbit sleep log and, as soon as it reports that you
are asleep, creates a short Google Calendar event with a popup reminder so your
phone wakes you up after a fixed nap length.

It authorizes both accounts interactively on every run, polls the sleep summary
at a fixed interval, schedules exactly one alarm and exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, commit, buildTimeStr string) {
	version = v
	commitHash = commit
	buildTime = buildTimeStr

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commitHash, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/nap-alarm/config.toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	logger.Init(verbose)
}

// loadConfig reads the config file and environment. Validation is left to the caller.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "path", cfgFile)
	return cfg, nil
}
