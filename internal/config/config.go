package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without zoneinfo

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/bnema/nap-alarm/internal/failure"
)

const (
	AppName    = "nap-alarm"
	EnvPrefix  = "NAP_ALARM"
	configName = "config"
	configType = "toml"
)

type Config struct {
	Fitbit  FitbitConfig  `mapstructure:"fitbit"`
	Google  GoogleConfig  `mapstructure:"google"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Sleep   SleepConfig   `mapstructure:"sleep"`
	Poll    PollConfig    `mapstructure:"poll"`
	Alarm   AlarmConfig   `mapstructure:"alarm"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type FitbitConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
	// AccessToken skips the console flow when set
	AccessToken string `mapstructure:"access_token"`
	APIBaseURL  string `mapstructure:"api_base_url"`
}

type GoogleConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	CallbackHost string   `mapstructure:"callback_host"`
	Scopes       []string `mapstructure:"scopes"`
	CalendarID   string   `mapstructure:"calendar_id"`
	// AccessToken skips the local callback flow when set
	AccessToken string `mapstructure:"access_token"`
}

type AuthConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	OpenBrowser bool          `mapstructure:"open_browser"`
}

type SleepConfig struct {
	ThresholdMinutes int    `mapstructure:"threshold_minutes"`
	TimeZone         string `mapstructure:"time_zone"`
}

type PollConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
}

type AlarmConfig struct {
	Summary  string        `mapstructure:"summary"`
	Lead     time.Duration `mapstructure:"lead"`
	Duration time.Duration `mapstructure:"duration"`
	TimeZone string        `mapstructure:"time_zone"`
}

type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

const (
	ScopeFitbitSleep    = "sleep"
	ScopeCalendarEvents = "https://www.googleapis.com/auth/calendar.events"
)

var defaultConfig = Config{
	Fitbit: FitbitConfig{
		RedirectURL: "http://127.0.0.1:8080/",
		Scopes:      []string{ScopeFitbitSleep},
		APIBaseURL:  "https://api.fitbit.com",
	},
	Google: GoogleConfig{
		CallbackHost: "127.0.0.1",
		Scopes:       []string{ScopeCalendarEvents},
		CalendarID:   "primary",
	},
	Auth: AuthConfig{
		Timeout:     10 * time.Minute,
		OpenBrowser: true,
	},
	Sleep: SleepConfig{
		ThresholdMinutes: 1,
	},
	Poll: PollConfig{
		Interval:             5 * time.Minute,
		RequestTimeout:       30 * time.Second,
		MaxConsecutiveErrors: 0,
	},
	Alarm: AlarmConfig{
		Summary:  "Sleep Alarm",
		Lead:     90 * time.Minute,
		Duration: time.Minute,
		TimeZone: "America/Los_Angeles",
	},
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	cfg.Fitbit.Scopes = append([]string(nil), defaultConfig.Fitbit.Scopes...)
	cfg.Google.Scopes = append([]string(nil), defaultConfig.Google.Scopes...)
	return &cfg
}

// Load reads config.toml from configPath (or the XDG config dir), then applies NAP_ALARM_* env overrides.
// A missing file is not an error: defaults and env still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)

	if configPath != "" && filepath.Ext(configPath) != "" {
		v.SetConfigFile(configPath)
	} else {
		if configPath == "" {
			configPath = DefaultConfigDir()
		}
		v.SetConfigName(configName)
		v.AddConfigPath(configPath)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, failure.New("load config", failure.KindConfig, "failed to read config file").WithCause(err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, failure.New("load config", failure.KindConfig, "failed to unmarshal config").WithCause(err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Fitbit
	v.SetDefault("fitbit.client_id", defaultConfig.Fitbit.ClientID)
	v.SetDefault("fitbit.client_secret", defaultConfig.Fitbit.ClientSecret)
	v.SetDefault("fitbit.redirect_url", defaultConfig.Fitbit.RedirectURL)
	v.SetDefault("fitbit.scopes", defaultConfig.Fitbit.Scopes)
	v.SetDefault("fitbit.access_token", defaultConfig.Fitbit.AccessToken)
	v.SetDefault("fitbit.api_base_url", defaultConfig.Fitbit.APIBaseURL)

	// Google
	v.SetDefault("google.client_id", defaultConfig.Google.ClientID)
	v.SetDefault("google.client_secret", defaultConfig.Google.ClientSecret)
	v.SetDefault("google.callback_host", defaultConfig.Google.CallbackHost)
	v.SetDefault("google.scopes", defaultConfig.Google.Scopes)
	v.SetDefault("google.calendar_id", defaultConfig.Google.CalendarID)
	v.SetDefault("google.access_token", defaultConfig.Google.AccessToken)

	// Auth
	v.SetDefault("auth.timeout", defaultConfig.Auth.Timeout)
	v.SetDefault("auth.open_browser", defaultConfig.Auth.OpenBrowser)

	// Sleep
	v.SetDefault("sleep.threshold_minutes", defaultConfig.Sleep.ThresholdMinutes)
	v.SetDefault("sleep.time_zone", defaultConfig.Sleep.TimeZone)

	// Poll
	v.SetDefault("poll.interval", defaultConfig.Poll.Interval)
	v.SetDefault("poll.request_timeout", defaultConfig.Poll.RequestTimeout)
	v.SetDefault("poll.max_consecutive_errors", defaultConfig.Poll.MaxConsecutiveErrors)

	// Alarm
	v.SetDefault("alarm.summary", defaultConfig.Alarm.Summary)
	v.SetDefault("alarm.lead", defaultConfig.Alarm.Lead)
	v.SetDefault("alarm.duration", defaultConfig.Alarm.Duration)
	v.SetDefault("alarm.time_zone", defaultConfig.Alarm.TimeZone)

	v.SetDefault("notify.enabled", defaultConfig.Notify.Enabled)
	v.SetDefault("metrics.address", defaultConfig.Metrics.Address)
}

// Validate checks the fields every run needs
func (c *Config) Validate() error {
	if c.Fitbit.AccessToken == "" {
		if c.Fitbit.ClientID == "" || c.Fitbit.ClientSecret == "" {
			return configError("fitbit.client_id", "fitbit client id and secret are required unless fitbit.access_token is set")
		}
		if c.Fitbit.RedirectURL == "" {
			return configError("fitbit.redirect_url", "redirect url is required")
		}
	}
	if c.Google.AccessToken == "" && (c.Google.ClientID == "" || c.Google.ClientSecret == "") {
		return configError("google.client_id", "google client id and secret are required unless google.access_token is set")
	}
	if c.Google.CalendarID == "" {
		return configError("google.calendar_id", "calendar id is required")
	}
	if c.Sleep.ThresholdMinutes < 0 {
		return configError("sleep.threshold_minutes", "must not be negative")
	}
	if c.Poll.Interval <= 0 {
		return configError("poll.interval", "must be positive")
	}
	if c.Poll.MaxConsecutiveErrors < 0 {
		return configError("poll.max_consecutive_errors", "must not be negative")
	}
	if c.Alarm.Lead <= 0 {
		return configError("alarm.lead", "must be positive")
	}
	if c.Alarm.Duration <= 0 {
		return configError("alarm.duration", "must be positive")
	}
	if _, err := c.AlarmLocation(); err != nil {
		return err
	}
	if _, err := c.SleepLocation(); err != nil {
		return err
	}
	return nil
}

// AlarmLocation resolves alarm.time_zone
func (c *Config) AlarmLocation() (*time.Location, error) {
	return loadLocation("alarm.time_zone", c.Alarm.TimeZone)
}

// SleepLocation resolves sleep.time_zone, falling back to the local zone
func (c *Config) SleepLocation() (*time.Location, error) {
	if c.Sleep.TimeZone == "" {
		return time.Local, nil
	}
	return loadLocation("sleep.time_zone", c.Sleep.TimeZone)
}

func loadLocation(field, name string) (*time.Location, error) {
	if name == "" {
		return nil, configError(field, "time zone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, configError(field, fmt.Sprintf("unknown time zone %q", name)).WithCause(err)
	}
	return loc, nil
}

func configError(field, message string) *failure.Error {
	return failure.New("validate config", failure.KindConfig, field+": "+message)
}

// WriteDefault creates config.toml under configDir unless one already exists
func WriteDefault(configDir string) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configName+"."+configType)
	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/nap-alarm
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

const defaultConfigContent = `# nap-alarm configuration
# Every key can be overridden with NAP_ALARM_<SECTION>_<KEY>, e.g. NAP_ALARM_FITBIT_CLIENT_ID.

[fitbit]
client_id = ""
client_secret = ""
redirect_url = "http://127.0.0.1:8080/"
scopes = ["sleep"]
# access_token = ""   # skip the interactive authorization

[google]
client_id = ""
client_secret = ""
callback_host = "127.0.0.1"
scopes = ["https://www.googleapis.com/auth/calendar.events"]
calendar_id = "primary"
# access_token = ""

[auth]
timeout = "10m"
open_browser = true

[sleep]
# 1 minute means "any sleep recorded today"; not a real sleep-onset criterion.
threshold_minutes = 1
# time_zone = "Europe/Paris"   # defaults to the local zone

[poll]
interval = "5m"
request_timeout = "30s"
max_consecutive_errors = 0   # 0 aborts on the first poll failure

[alarm]
summary = "Sleep Alarm"
lead = "90m"
duration = "1m"
time_zone = "America/Los_Angeles"

[notify]
enabled = false

[metrics]
address = ""   # e.g. "127.0.0.1:9464" to expose /metrics
`
