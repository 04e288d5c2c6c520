package alarm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

const DefaultCalendarID = "primary"

// EventInserter persists one event on a calendar
type EventInserter interface {
	InsertEvent(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error)
}

// CalendarService inserts events through the Google Calendar API
type CalendarService struct {
	service *gcal.Service
}

// NewCalendarService builds the API client on top of an authorized HTTP client.
// Extra options are appended, which lets tests point the client at a local endpoint.
func NewCalendarService(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*CalendarService, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarService{
		service: srv,
	}, nil
}

func (c *CalendarService) InsertEvent(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	return c.service.Events.Insert(calendarID, event).Context(ctx).Do()
}

// ScheduleResult describes the event the provider accepted
type ScheduleResult struct {
	EventID    string
	HTMLLink   string
	CalendarID string
	// Start and End are the provider's dateTime strings, falling back to what was sent
	Start string
	End   string
}

// Scheduler creates the wake-up event
type Scheduler struct {
	inserter   EventInserter
	calendarID string
	spec       Spec
}

func NewScheduler(inserter EventInserter, calendarID string, spec Spec) *Scheduler {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	return &Scheduler{
		inserter:   inserter,
		calendarID: calendarID,
		spec:       spec,
	}
}

// Schedule inserts exactly one event timed from now. It never retries.
func (s *Scheduler) Schedule(ctx context.Context, now time.Time) (*ScheduleResult, error) {
	const op = "schedule alarm"

	event := BuildEvent(now, s.spec)

	logger.Debug("inserting alarm event",
		"calendar_id", s.calendarID,
		"start", event.Start.DateTime,
		"end", event.End.DateTime,
		"time_zone", event.Start.TimeZone,
	)

	created, err := s.inserter.InsertEvent(ctx, s.calendarID, event)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failure.FromContext(op, ctxErr).WithCause(err)
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, failure.New(op, failure.KindAPI, fmt.Sprintf("calendar API returned %d", apiErr.Code)).WithCause(err)
		}
		return nil, failure.New(op, failure.KindTransport, "event insertion failed").WithCause(err)
	}

	result := &ScheduleResult{
		CalendarID: s.calendarID,
		Start:      event.Start.DateTime,
		End:        event.End.DateTime,
	}
	if created != nil {
		result.EventID = created.Id
		result.HTMLLink = created.HtmlLink
		if created.Start != nil && created.Start.DateTime != "" {
			result.Start = created.Start.DateTime
		}
		if created.End != nil && created.End.DateTime != "" {
			result.End = created.End.DateTime
		}
	}

	logger.Info("alarm event created", "event_id", result.EventID, "start", result.Start)
	return result, nil
}
