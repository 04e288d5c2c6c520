package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New("poll", KindRateLimited, "too many requests")
	assert.Equal(t, "poll failed (rate_limited): too many requests", err.Error())

	cause := errors.New("boom")
	err = New("schedule", KindAPI, "insert event").WithCause(cause)
	assert.Equal(t, "schedule failed (api): insert event: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOfWrapped(t *testing.T) {
	inner := New("auth", KindStateMismatch, "state does not match")
	wrapped := fmt.Errorf("fitbit: %w", inner)

	assert.Equal(t, KindStateMismatch, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.True(t, errors.Is(wrapped, New("", KindStateMismatch, "")))
	assert.False(t, errors.Is(wrapped, New("", KindExchange, "")))
}

func TestRetryable(t *testing.T) {
	cases := map[Kind]bool{
		KindTransport:    true,
		KindRateLimited:  true,
		KindUpstream:     true,
		KindUnauthorized: false,
		KindDecode:       false,
		KindAPI:          false,
		KindCanceled:     false,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Retryable(New("op", kind, "x")), kind.String())
	}
	assert.False(t, Retryable(errors.New("plain")))
}

func TestFromContext(t *testing.T) {
	require.Nil(t, FromContext("op", nil))

	assert.Equal(t, KindTimeout, FromContext("op", context.DeadlineExceeded).Kind)
	assert.Equal(t, KindCanceled, FromContext("op", context.Canceled).Kind)
}
