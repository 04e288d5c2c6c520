package sleep

import (
	"context"
	"time"

	"github.com/bnema/nap-alarm/internal/fitbit"
	"github.com/bnema/nap-alarm/internal/logger"
)

// SummaryFetcher returns the sleep summary for one calendar date
type SummaryFetcher interface {
	SleepSummary(ctx context.Context, date string) (*fitbit.SleepSummary, error)
}

// PollResult is the outcome of a single detection attempt
type PollResult struct {
	Summary          fitbit.SleepSummary
	ThresholdMinutes int
	Asleep           bool
	PolledAt         time.Time
}

// Detect reports whether minutesAsleep meets the threshold. Equal counts as asleep.
func Detect(minutesAsleep, thresholdMinutes int) bool {
	return minutesAsleep >= thresholdMinutes
}

// Poller evaluates today's sleep summary against a fixed threshold
type Poller struct {
	fetcher   SummaryFetcher
	threshold int
	location  *time.Location
	// bounds one fetch; zero leaves it to ctx
	requestTimeout time.Duration
	now            func() time.Time
}

type Option func(*Poller)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// WithLocation sets the zone used to decide what "today" is
func WithLocation(loc *time.Location) Option {
	return func(p *Poller) {
		if loc != nil {
			p.location = loc
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(p *Poller) {
		p.requestTimeout = d
	}
}

func NewPoller(fetcher SummaryFetcher, thresholdMinutes int, opts ...Option) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		threshold: thresholdMinutes,
		location:  time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll fetches today's summary once. Errors come back unchanged so the caller can decide on retry.
func (p *Poller) Poll(ctx context.Context) (*PollResult, error) {
	now := p.now().In(p.location)
	date := now.Format(fitbit.DateLayout)

	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	summary, err := p.fetcher.SleepSummary(ctx, date)
	if err != nil {
		return nil, err
	}

	result := &PollResult{
		Summary:          *summary,
		ThresholdMinutes: p.threshold,
		Asleep:           Detect(summary.TotalMinutesAsleep, p.threshold),
		PolledAt:         now,
	}

	logger.Debug("sleep poll",
		"date", date,
		"minutes_asleep", summary.TotalMinutesAsleep,
		"threshold", p.threshold,
		"asleep", result.Asleep,
	)

	return result, nil
}
