package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bnema/nap-alarm/internal/alarm"
	"github.com/bnema/nap-alarm/internal/auth"
	"github.com/bnema/nap-alarm/internal/config"
	"github.com/bnema/nap-alarm/internal/fitbit"
	"github.com/bnema/nap-alarm/internal/logger"
	"github.com/bnema/nap-alarm/internal/metrics"
	"github.com/bnema/nap-alarm/internal/notifier"
	"github.com/bnema/nap-alarm/internal/orchestrator"
	"github.com/bnema/nap-alarm/internal/sleep"
	"github.com/bnema/nap-alarm/internal/transport"
)

var (
	intervalFlag    time.Duration
	thresholdFlag   int
	leadFlag        time.Duration
	noBrowserFlag   bool
	metricsAddrFlag string
	notifyFlag      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Authorize, wait for sleep and schedule the alarm",
	Long: `Authorize Fitbit and Google Calendar, then poll today's sleep summary until
it reports you asleep and create one alarm event.

Fitbit authorization is completed by pasting the redirect URL back into this
terminal. Google authorization opens a browser and receives the code on a local
loopback listener.

Examples:
  nap-alarm run                          # Use the configured defaults
  nap-alarm run --lead=20m               # Short power nap
  nap-alarm run --interval=1m --notify   # Poll faster and show a desktop notification
  nap-alarm run --no-browser             # Print the Google consent URL instead of opening it`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&intervalFlag, "interval", 0, "time between sleep polls (overrides poll.interval)")
	runCmd.Flags().IntVar(&thresholdFlag, "threshold", 0, "minutes asleep that count as asleep (overrides sleep.threshold_minutes)")
	runCmd.Flags().DurationVar(&leadFlag, "lead", 0, "time from detection to the alarm (overrides alarm.lead)")
	runCmd.Flags().BoolVar(&noBrowserFlag, "no-browser", false, "do not open the browser for Google authorization")
	runCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.address)")
	runCmd.Flags().BoolVar(&notifyFlag, "notify", false, "send a desktop notification once the alarm is set")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = transport.WithClient(ctx, transport.NewHTTPClient())

	var recorder *metrics.Recorder
	if cfg.Metrics.Address != "" {
		recorder = metrics.NewRecorder()
		if _, err := recorder.Serve(ctx, cfg.Metrics.Address); err != nil {
			return err
		}
	}

	orch, err := newOrchestrator(cfg, cmd, recorder)
	if err != nil {
		return err
	}

	_, err = orch.Run(ctx)
	return err
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Poll.Interval = intervalFlag
	}
	if flags.Changed("threshold") {
		cfg.Sleep.ThresholdMinutes = thresholdFlag
	}
	if flags.Changed("lead") {
		cfg.Alarm.Lead = leadFlag
	}
	if flags.Changed("no-browser") {
		cfg.Auth.OpenBrowser = !noBrowserFlag
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = metricsAddrFlag
	}
	if flags.Changed("notify") {
		cfg.Notify.Enabled = notifyFlag
	}
}

func newOrchestrator(cfg *config.Config, cmd *cobra.Command, recorder *metrics.Recorder) (*orchestrator.Orchestrator, error) {
	alarmLoc, err := cfg.AlarmLocation()
	if err != nil {
		return nil, err
	}
	sleepLoc, err := cfg.SleepLocation()
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()

	fitbitAuth := &auth.Authenticator{
		Provider: auth.ProviderFitbit,
		Config:   auth.NewFitbitConfig(cfg.Fitbit.ClientID, cfg.Fitbit.ClientSecret, cfg.Fitbit.RedirectURL, cfg.Fitbit.Scopes),
		Timeout:  cfg.Auth.Timeout,
	}
	if cfg.Fitbit.AccessToken != "" {
		fitbitAuth.Flow = &auth.StaticFlow{AccessToken: cfg.Fitbit.AccessToken}
	} else {
		fitbitAuth.Flow = &auth.ConsoleFlow{In: cmd.InOrStdin(), Out: out}
	}

	googleAuth := &auth.Authenticator{
		Provider: auth.ProviderGoogle,
		Config:   auth.NewGoogleConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.Scopes),
		Timeout:  cfg.Auth.Timeout,
	}
	if cfg.Google.AccessToken != "" {
		googleAuth.Flow = &auth.StaticFlow{AccessToken: cfg.Google.AccessToken}
	} else {
		flow := &auth.LocalCallbackFlow{Host: cfg.Google.CallbackHost, Out: out}
		if cfg.Auth.OpenBrowser {
			flow.OpenBrowser = auth.OpenBrowser
		}
		googleAuth.Flow = flow
	}

	spec := alarm.Spec{
		Summary:  cfg.Alarm.Summary,
		Lead:     cfg.Alarm.Lead,
		Duration: cfg.Alarm.Duration,
		Location: alarmLoc,
		RunID:    uuid.NewString(),
	}

	build := func(ctx context.Context, fitbitCred, googleCred *auth.Result) (orchestrator.Poller, orchestrator.Scheduler, error) {
		client := fitbit.NewClient(fitbitCred.HTTPClient(ctx), cfg.Fitbit.APIBaseURL)
		poller := sleep.NewPoller(client, cfg.Sleep.ThresholdMinutes,
			sleep.WithLocation(sleepLoc),
			sleep.WithRequestTimeout(cfg.Poll.RequestTimeout),
		)

		service, err := alarm.NewCalendarService(ctx, googleCred.HTTPClient(ctx))
		if err != nil {
			return nil, nil, err
		}
		scheduler := alarm.NewScheduler(service, cfg.Google.CalendarID, spec)

		logger.Debug("run wired",
			"run_id", spec.RunID,
			"calendar_id", cfg.Google.CalendarID,
			"threshold_minutes", cfg.Sleep.ThresholdMinutes,
			"interval", cfg.Poll.Interval.String(),
			"lead", cfg.Alarm.Lead.String(),
		)
		return poller, scheduler, nil
	}

	return &orchestrator.Orchestrator{
		Fitbit:               fitbitAuth,
		Google:               googleAuth,
		Build:                build,
		Interval:             cfg.Poll.Interval,
		MaxConsecutiveErrors: cfg.Poll.MaxConsecutiveErrors,
		Summary:              cfg.Alarm.Summary,
		Out:                  out,
		Metrics:              recorder,
		Notifier:             notifier.New(cfg.Notify.Enabled),
	}, nil
}
