package alarm

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

const (
	ReminderMethodPopup = "popup"
	// RunPropertyKey tags the event with the run that created it
	RunPropertyKey = "napAlarmRun"
)

// Spec describes the alarm event relative to the moment sleep was detected
type Spec struct {
	Summary  string
	Lead     time.Duration
	Duration time.Duration
	Location *time.Location
	RunID    string
}

// Window returns the start and end of the alarm for a detection at now, in s.Location
func (s Spec) Window(now time.Time) (start, end time.Time) {
	loc := s.Location
	if loc == nil {
		loc = now.Location()
	}
	start = now.Add(s.Lead).In(loc)
	end = start.Add(s.Duration)
	return start, end
}

// BuildEvent constructs the calendar entry: one popup at the start time and no default reminders
func BuildEvent(now time.Time, s Spec) *gcal.Event {
	start, end := s.Window(now)
	zone := start.Location().String()

	event := &gcal.Event{
		Summary: s.Summary,
		Start: &gcal.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: zone,
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: zone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: ReminderMethodPopup, Minutes: 0, ForceSendFields: []string{"Minutes"}},
			},
			// false is the zero value and would otherwise be dropped from the request body
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if s.RunID != "" {
		event.ExtendedProperties = &gcal.EventExtendedProperties{
			Private: map[string]string{RunPropertyKey: s.RunID},
		}
	}

	return event
}
