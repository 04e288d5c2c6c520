package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/nap-alarm/internal/auth"
	"github.com/bnema/nap-alarm/internal/config"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "run"}
	c.Flags().AddFlagSet(runCmd.Flags())
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestApplyRunFlagsOnlyChanged(t *testing.T) {
	cfg := config.Default()
	c := newFlagCmd(t, "--lead=20m", "--no-browser")

	applyRunFlags(c, cfg)

	assert.Equal(t, 20*time.Minute, cfg.Alarm.Lead)
	assert.False(t, cfg.Auth.OpenBrowser)
	assert.Equal(t, config.Default().Poll.Interval, cfg.Poll.Interval)
	assert.Equal(t, config.Default().Sleep.ThresholdMinutes, cfg.Sleep.ThresholdMinutes)
}

func TestNewOrchestratorPicksFlows(t *testing.T) {
	cfg := config.Default()
	cfg.Fitbit.ClientID = "id"
	cfg.Fitbit.ClientSecret = "secret"
	cfg.Google.AccessToken = "ya29.preset"

	orch, err := newOrchestrator(cfg, &cobra.Command{}, nil)
	require.NoError(t, err)

	fitbitAuth, ok := orch.Fitbit.(*auth.Authenticator)
	require.True(t, ok)
	assert.IsType(t, &auth.ConsoleFlow{}, fitbitAuth.Flow)
	assert.Equal(t, auth.ProviderFitbit, fitbitAuth.Provider)

	googleAuth, ok := orch.Google.(*auth.Authenticator)
	require.True(t, ok)
	assert.IsType(t, &auth.StaticFlow{}, googleAuth.Flow)
	assert.Equal(t, cfg.Poll.Interval, orch.Interval)
}
