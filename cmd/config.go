package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bnema/nap-alarm/internal/config"
)

var configDirFlag string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config.toml",
	Long: `Write a default config.toml to the configuration directory.

An existing file is never overwritten. Fill in the Fitbit and Google OAuth
client credentials before the first run.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVar(&configDirFlag, "dir", "", "directory to write config.toml to (default: $XDG_CONFIG_HOME/nap-alarm)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteDefault(configDirFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file: %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printConfig(out, cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "\n%s\n", highlight(out, "Invalid: "+err.Error()))
	}
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "[fitbit]")
	fmt.Fprintf(w, "  client_id      = %q\n", cfg.Fitbit.ClientID)
	fmt.Fprintf(w, "  client_secret  = %q\n", mask(cfg.Fitbit.ClientSecret))
	fmt.Fprintf(w, "  redirect_url   = %q\n", cfg.Fitbit.RedirectURL)
	fmt.Fprintf(w, "  scopes         = %q\n", cfg.Fitbit.Scopes)
	fmt.Fprintf(w, "  access_token   = %q\n", mask(cfg.Fitbit.AccessToken))
	fmt.Fprintf(w, "  api_base_url   = %q\n", cfg.Fitbit.APIBaseURL)

	fmt.Fprintln(w, "[google]")
	fmt.Fprintf(w, "  client_id      = %q\n", cfg.Google.ClientID)
	fmt.Fprintf(w, "  client_secret  = %q\n", mask(cfg.Google.ClientSecret))
	fmt.Fprintf(w, "  callback_host  = %q\n", cfg.Google.CallbackHost)
	fmt.Fprintf(w, "  scopes         = %q\n", cfg.Google.Scopes)
	fmt.Fprintf(w, "  calendar_id    = %q\n", cfg.Google.CalendarID)
	fmt.Fprintf(w, "  access_token   = %q\n", mask(cfg.Google.AccessToken))

	fmt.Fprintln(w, "[auth]")
	fmt.Fprintf(w, "  timeout        = %q\n", cfg.Auth.Timeout.String())
	fmt.Fprintf(w, "  open_browser   = %t\n", cfg.Auth.OpenBrowser)

	fmt.Fprintln(w, "[sleep]")
	fmt.Fprintf(w, "  threshold_minutes = %d\n", cfg.Sleep.ThresholdMinutes)
	fmt.Fprintf(w, "  time_zone         = %q\n", cfg.Sleep.TimeZone)

	fmt.Fprintln(w, "[poll]")
	fmt.Fprintf(w, "  interval               = %q\n", cfg.Poll.Interval.String())
	fmt.Fprintf(w, "  request_timeout        = %q\n", cfg.Poll.RequestTimeout.String())
	fmt.Fprintf(w, "  max_consecutive_errors = %d\n", cfg.Poll.MaxConsecutiveErrors)

	fmt.Fprintln(w, "[alarm]")
	fmt.Fprintf(w, "  summary   = %q\n", cfg.Alarm.Summary)
	fmt.Fprintf(w, "  lead      = %q\n", cfg.Alarm.Lead.String())
	fmt.Fprintf(w, "  duration  = %q\n", cfg.Alarm.Duration.String())
	fmt.Fprintf(w, "  time_zone = %q\n", cfg.Alarm.TimeZone)

	fmt.Fprintln(w, "[notify]")
	fmt.Fprintf(w, "  enabled = %t\n", cfg.Notify.Enabled)

	fmt.Fprintln(w, "[metrics]")
	fmt.Fprintf(w, "  address = %q\n", cfg.Metrics.Address)
}

// mask keeps the last four characters of a secret
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// highlight colors s red when w is a terminal
func highlight(w io.Writer, s string) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[31m" + s + "\033[0m"
	}
	return s
}
