package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bnema/nap-alarm/internal/alarm"
	"github.com/bnema/nap-alarm/internal/auth"
	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
	"github.com/bnema/nap-alarm/internal/metrics"
	"github.com/bnema/nap-alarm/internal/sleep"
)

type State int

const (
	StateAuthenticating State = iota
	StatePolling
	StateScheduling
	StateExited
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StatePolling:
		return "POLLING"
	case StateScheduling:
		return "SCHEDULING"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

const DefaultInterval = 5 * time.Minute

type Authenticator interface {
	Authenticate(ctx context.Context) (*auth.Result, error)
}

type Poller interface {
	Poll(ctx context.Context) (*sleep.PollResult, error)
}

type Scheduler interface {
	Schedule(ctx context.Context, now time.Time) (*alarm.ScheduleResult, error)
}

// Notifier is told about the outcome of the scheduling step
type Notifier interface {
	AlarmScheduled(ctx context.Context, summary, start string) error
	AlarmFailed(ctx context.Context, err error) error
}

// Builder turns the two credentials into the poller and scheduler used for the rest of the run
type Builder func(ctx context.Context, fitbit, google *auth.Result) (Poller, Scheduler, error)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Orchestrator struct {
	Fitbit Authenticator
	Google Authenticator
	Build  Builder

	Interval time.Duration
	// MaxConsecutiveErrors is how many retryable poll failures in a row are tolerated. Zero aborts on the first.
	MaxConsecutiveErrors int
	Summary              string

	Sleep    Sleeper
	Now      func() time.Time
	Out      io.Writer
	Metrics  *metrics.Recorder
	Notifier Notifier

	state State
}

// State returns the state the last Run reached
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(to State) {
	logger.Debug("state transition", "from", o.state.String(), "to", to.String())
	o.state = to
}

func (o *Orchestrator) defaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

// Run authenticates both accounts, polls until sleep is detected and schedules one alarm.
// It always ends in StateExited.
func (o *Orchestrator) Run(ctx context.Context) (*alarm.ScheduleResult, error) {
	o.defaults()
	o.state = StateAuthenticating
	defer o.transition(StateExited)

	fitbitCred, err := o.Fitbit.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	googleCred, err := o.Google.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	poller, scheduler, err := o.Build(ctx, fitbitCred, googleCred)
	if err != nil {
		return nil, err
	}

	o.transition(StatePolling)
	detectedAt, err := o.pollUntilAsleep(ctx, poller)
	if err != nil {
		return nil, err
	}

	o.transition(StateScheduling)
	return o.schedule(ctx, scheduler, detectedAt)
}

func (o *Orchestrator) pollUntilAsleep(ctx context.Context, poller Poller) (time.Time, error) {
	const op = "poll sleep"

	started := o.Now()
	consecutive := 0
	polls := 0

	for {
		if err := ctx.Err(); err != nil {
			return time.Time{}, failure.FromContext(op, err)
		}

		polls++
		result, err := poller.Poll(ctx)
		if err != nil {
			o.Metrics.ObservePollError(err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return time.Time{}, failure.FromContext(op, ctxErr).WithCause(err)
			}

			consecutive++
			if !failure.Retryable(err) || consecutive > o.MaxConsecutiveErrors {
				logger.Warn("sleep poll failed, giving up", "error", err, "consecutive_errors", consecutive)
				return time.Time{}, err
			}
			logger.Warn("sleep poll failed, retrying", "error", err, "consecutive_errors", consecutive, "max", o.MaxConsecutiveErrors)
		} else {
			consecutive = 0
			o.Metrics.ObservePoll(result.Asleep, result.Summary.TotalMinutesAsleep, result.PolledAt)

			if result.Asleep {
				detectedAt := o.Now()
				o.Metrics.ObserveDetection(detectedAt.Sub(started))
				logger.Info("sleep detected", "minutes_asleep", result.Summary.TotalMinutesAsleep, "polls", polls)
				return detectedAt, nil
			}
		}

		logger.Debug("waiting before next poll", "interval", o.Interval.String())
		if err := o.Sleep(ctx, o.Interval); err != nil {
			return time.Time{}, failure.FromContext(op, err)
		}
	}
}

func (o *Orchestrator) schedule(ctx context.Context, scheduler Scheduler, detectedAt time.Time) (*alarm.ScheduleResult, error) {
	result, err := scheduler.Schedule(ctx, detectedAt)
	o.Metrics.ObserveSchedule(err)

	if err != nil {
		o.notify(func() error { return o.Notifier.AlarmFailed(ctx, err) })
		return nil, err
	}

	fmt.Fprintf(o.Out, "Alarm set for %s\n", result.Start)
	o.notify(func() error { return o.Notifier.AlarmScheduled(ctx, o.Summary, result.Start) })

	return result, nil
}

// notify never fails the run
func (o *Orchestrator) notify(send func() error) {
	if o.Notifier == nil {
		return
	}
	if err := send(); err != nil {
		logger.Warn("desktop notification failed", "error", err)
	}
}
