package notifier

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/nap-alarm/internal/logger"
	"github.com/bnema/nap-alarm/internal/nerdfonts"
)

const appName = "Nap Alarm"

// Runner executes notify-send and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Notifier struct {
	enabled bool
	run     Runner
}

func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		run:     execRunner,
	}
}

// WithRunner swaps the command runner, mostly for tests
func (n *Notifier) WithRunner(run Runner) *Notifier {
	n.run = run
	return n
}

func (n *Notifier) IsEnabled() bool {
	return n != nil && n.enabled
}

// AlarmScheduled announces the created alarm on the desktop. A disabled notifier does nothing.
func (n *Notifier) AlarmScheduled(ctx context.Context, summary, start string) error {
	if !n.IsEnabled() {
		return nil
	}

	title := fmt.Sprintf("%s Sleep detected", nerdfonts.Bed)

	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s", nerdfonts.CalendarCheck, summary))
	parts = append(parts, fmt.Sprintf("%s Alarm set for %s", nerdfonts.Clock, start))

	return n.send(ctx, title, strings.Join(parts, "\n"), "normal")
}

// AlarmFailed reports that the alarm could not be created
func (n *Notifier) AlarmFailed(ctx context.Context, err error) error {
	if !n.IsEnabled() || err == nil {
		return nil
	}

	title := fmt.Sprintf("%s Alarm not set", nerdfonts.ExclamationTriangle)
	return n.send(ctx, title, err.Error(), "critical")
}

func (n *Notifier) send(ctx context.Context, title, message, urgency string) error {
	args := []string{
		"--app-name=" + appName,
		"--urgency=" + urgency,
		title,
		message,
	}

	output, err := n.run(ctx, "notify-send", args...)
	if err != nil {
		return fmt.Errorf("notify-send failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	logger.Debug("desktop notification sent", "title", title, "urgency", urgency)
	return nil
}
