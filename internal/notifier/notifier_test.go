package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name string
	args []string
	out  []byte
	err  error
}

func (r *recorder) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	return r.out, r.err
}

func TestAlarmScheduled(t *testing.T) {
	rec := &recorder{}
	n := New(true).WithRunner(rec.run)

	require.NoError(t, n.AlarmScheduled(context.Background(), "Sleep Alarm", "2024-01-01T01:30:00-08:00"))

	assert.Equal(t, "notify-send", rec.name)
	require.Len(t, rec.args, 4)
	assert.Equal(t, "--app-name=Nap Alarm", rec.args[0])
	assert.Equal(t, "--urgency=normal", rec.args[1])
	assert.Contains(t, rec.args[2], "Sleep detected")
	assert.Contains(t, rec.args[3], "Alarm set for 2024-01-01T01:30:00-08:00")
}

func TestDisabledNotifierSkips(t *testing.T) {
	rec := &recorder{}
	n := New(false).WithRunner(rec.run)

	require.NoError(t, n.AlarmScheduled(context.Background(), "Sleep Alarm", "now"))
	require.NoError(t, n.AlarmFailed(context.Background(), errors.New("boom")))
	assert.Empty(t, rec.name)

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.IsEnabled())
	assert.NoError(t, nilNotifier.AlarmScheduled(context.Background(), "Sleep Alarm", "now"))
}

func TestAlarmFailedIsCritical(t *testing.T) {
	rec := &recorder{}
	n := New(true).WithRunner(rec.run)

	require.NoError(t, n.AlarmFailed(context.Background(), errors.New("calendar API returned 403")))
	assert.Equal(t, "--urgency=critical", rec.args[1])
	assert.Equal(t, "calendar API returned 403", rec.args[3])
}

func TestSendError(t *testing.T) {
	rec := &recorder{out: []byte("no daemon\n"), err: errors.New("exit status 1")}
	n := New(true).WithRunner(rec.run)

	err := n.AlarmScheduled(context.Background(), "Sleep Alarm", "now")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify-send failed")
	assert.Contains(t, err.Error(), "no daemon")
}
