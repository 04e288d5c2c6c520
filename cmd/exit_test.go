package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/nap-alarm/internal/failure"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"calendar api", failure.New("schedule alarm", failure.KindAPI, "calendar API returned 403"), ExitAPI},
		{"wrapped api", fmt.Errorf("run: %w", failure.New("schedule alarm", failure.KindAPI, "500")), ExitAPI},
		{"consent denied", failure.New("authenticate fitbit", failure.KindConsentDenied, "access_denied"), ExitFailure},
		{"poll", failure.New("fetch sleep summary", failure.KindUpstream, "503"), ExitFailure},
		{"config", failure.New("validate config", failure.KindConfig, "missing"), ExitFailure},
		{"canceled", failure.FromContext("poll sleep", context.Canceled), ExitCanceled},
		{"timeout", failure.FromContext("authenticate google", context.DeadlineExceeded), ExitCanceled},
		{"plain", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	apiErr := failure.New("schedule alarm", failure.KindAPI, "calendar API returned 403")
	assert.Equal(t, "An error occurred: "+apiErr.Error(), ErrorMessage(apiErr))
	assert.Equal(t, "Error: boom", ErrorMessage(errors.New("boom")))
}
