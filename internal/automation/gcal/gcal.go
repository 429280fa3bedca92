// Package gcal manages the user's primary Google Calendar: listing, creating
// and deleting events. Intent timestamps are interpreted in the assistant's
// local timezone and converted to UTC for the API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/mcravo/ava/internal/automation"
	"github.com/mcravo/ava/internal/automation/googleauth"
)

// Scope grants read/write access to calendar events.
const Scope = calendar.CalendarEventsScope

const dateLayout = "2006-01-02"

// api is the slice of the Calendar service the module uses.
type api interface {
	ListEvents(ctx context.Context, timeMin, timeMax, query string) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Module implements automation.Module backed by the Google Calendar API.
type Module struct {
	api api
	loc *time.Location
	now func() time.Time
}

// New authenticates against Google and builds the Calendar module. Gmail's
// scope is requested too so the shared token covers both modules.
func New(ctx context.Context, credentialsPath, tokenPath string, loc *time.Location, extraScopes ...string) (*Module, error) {
	scopes := append([]string{Scope}, extraScopes...)
	httpc, err := googleauth.Client(ctx, credentialsPath, tokenPath, scopes...)
	if err != nil {
		return nil, fmt.Errorf("calendar authentication: %w", err)
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpc))
	if err != nil {
		return nil, fmt.Errorf("building calendar service: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Module{api: &restAPI{service: service}, loc: loc, now: time.Now}, nil
}

func (m *Module) Description() string {
	return "manage events and appointments in Google Calendar"
}

func (m *Module) Actions() map[string]automation.Action {
	return map[string]automation.Action{
		"list_events": {
			Handler:     automation.Typed(m.listEvents),
			Description: "Lists upcoming calendar events for a specified time period. The time_period can be a single date (YYYY-MM-DD), a specific datetime (YYYY-MM-DDTHH:MM:SS), or a range (YYYY-MM-DD/YYYY-MM-DD).",
			Example:     `{"action":"list_events","time_period":"2025-07-01/2025-07-31"}`,
		},
		"create_event": {
			Handler:     automation.Typed(m.createEvent),
			Description: "Creates a new calendar event with a summary, start time, and optional end time and description. Times must be in ISO 8601 format (YYYY-MM-DDTHH:MM:SS for specific times, or YYYY-MM-DD for all-day).",
			Example:     `{"action":"create_event","summary":"Team Sync","start_time":"2025-07-01T10:00:00","end_time":"2025-07-01T11:00:00","description":"Discuss Q3 goals"}`,
		},
		"delete_event": {
			Handler:     automation.Typed(m.deleteEvent),
			Description: "Deletes a calendar event by its summary and optional time period. The summary should be an exact or very close match to an existing event. Time period must be in ISO 8601 format (YYYY-MM-DD or YYYY-MM-DD/YYYY-MM-DD).",
			Example:     `{"action":"delete_event","summary":"Team Sync","time_period":"2025-07-01"}`,
		},
	}
}

type listEventsRequest struct {
	TimePeriod string `mapstructure:"time_period"`
}

func (r listEventsRequest) Validate() error {
	if r.TimePeriod == "" {
		return errors.New("time_period is required")
	}
	return nil
}

func (m *Module) listEvents(ctx context.Context, req listEventsRequest) (automation.Result, error) {
	timeMin, timeMax, err := m.queryWindow(req.TimePeriod)
	if err != nil {
		return automation.Result{}, err
	}

	events, err := m.api.ListEvents(ctx, timeMin, timeMax, "")
	if err != nil {
		return automation.Result{}, fmt.Errorf("listing events: %w", err)
	}
	if len(events) == 0 {
		return automation.OK(fmt.Sprintf("No upcoming events found for the period: %s.", req.TimePeriod)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming events for %s:", req.TimePeriod)
	for _, event := range events {
		summary := event.Summary
		if summary == "" {
			summary = "No Title"
		}
		fmt.Fprintf(&b, "\n- %s (%s to %s)", summary, m.displayStart(event.Start), m.displayEnd(event.End))
	}
	return automation.OK(b.String()), nil
}

type createEventRequest struct {
	Summary     string `mapstructure:"summary"`
	StartTime   string `mapstructure:"start_time"`
	EndTime     string `mapstructure:"end_time"`
	Description string `mapstructure:"description"`
}

func (r createEventRequest) Validate() error {
	if r.Summary == "" {
		return errors.New("summary is required")
	}
	if r.StartTime == "" {
		return errors.New("start_time is required")
	}
	return nil
}

func (m *Module) createEvent(ctx context.Context, req createEventRequest) (automation.Result, error) {
	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
	}

	if isDateOnly(req.StartTime) {
		// All-day events use date-only fields; the API's end date is
		// exclusive, so the last day gets one added.
		start, err := time.Parse(dateLayout, req.StartTime)
		if err != nil {
			return automation.Result{}, fmt.Errorf("%w: invalid start_time %q", automation.ErrInvalidArgs, req.StartTime)
		}
		event.Start = &calendar.EventDateTime{Date: req.StartTime}
		end := start
		if req.EndTime != "" && isDateOnly(req.EndTime) {
			end, err = time.Parse(dateLayout, req.EndTime)
			if err != nil {
				return automation.Result{}, fmt.Errorf("%w: invalid end_time %q", automation.ErrInvalidArgs, req.EndTime)
			}
		}
		event.End = &calendar.EventDateTime{Date: end.AddDate(0, 0, 1).Format(dateLayout)}
	} else {
		start, err := m.parseLocal(req.StartTime)
		if err != nil {
			return automation.Result{}, fmt.Errorf("%w: invalid start_time %q", automation.ErrInvalidArgs, req.StartTime)
		}
		end := start.Add(time.Hour)
		if req.EndTime != "" {
			end, err = m.parseLocal(req.EndTime)
			if err != nil {
				return automation.Result{}, fmt.Errorf("%w: invalid end_time %q", automation.ErrInvalidArgs, req.EndTime)
			}
		}
		event.Start = &calendar.EventDateTime{DateTime: toUTC(start), TimeZone: "UTC"}
		event.End = &calendar.EventDateTime{DateTime: toUTC(end), TimeZone: "UTC"}
	}

	created, err := m.api.InsertEvent(ctx, event)
	if err != nil {
		return automation.Result{}, fmt.Errorf("creating event: %w", err)
	}
	msg := fmt.Sprintf("Event '%s' created successfully. Link: %s", created.Summary, created.HtmlLink)
	return automation.OKResource(msg, created.Id), nil
}

type deleteEventRequest struct {
	Summary    string `mapstructure:"summary"`
	TimePeriod string `mapstructure:"time_period"`
}

func (r deleteEventRequest) Validate() error {
	if r.Summary == "" {
		return errors.New("summary is required")
	}
	return nil
}

func (m *Module) deleteEvent(ctx context.Context, req deleteEventRequest) (automation.Result, error) {
	var timeMin, timeMax string
	if req.TimePeriod != "" {
		var err error
		timeMin, timeMax, err = m.queryWindow(req.TimePeriod)
		if err != nil {
			return automation.Result{}, err
		}
	} else {
		// no period means any upcoming event
		timeMin = toUTC(m.now())
	}

	events, err := m.api.ListEvents(ctx, timeMin, timeMax, req.Summary)
	if err != nil {
		return automation.Result{}, fmt.Errorf("searching events: %w", err)
	}

	var match *calendar.Event
	for _, event := range events {
		if strings.Contains(strings.ToLower(event.Summary), strings.ToLower(req.Summary)) {
			match = event
			break
		}
	}
	if match == nil {
		period := req.TimePeriod
		if period == "" {
			period = "any upcoming time"
		}
		return automation.OK(fmt.Sprintf("No event found with summary matching '%s' for the period: %s.", req.Summary, period)), nil
	}

	if err := m.api.DeleteEvent(ctx, match.Id); err != nil {
		return automation.Result{}, fmt.Errorf("deleting event: %w", err)
	}
	return automation.OKResource(fmt.Sprintf("Event '%s' deleted successfully.", match.Summary), match.Id), nil
}

// queryWindow converts a time_period into UTC RFC 3339 bounds. A single date
// covers the whole day, a datetime covers a one minute window, and a range
// runs from the start of the first day to the end of the last.
func (m *Module) queryWindow(period string) (timeMin, timeMax string, err error) {
	badPeriod := func() error {
		return fmt.Errorf("%w: invalid ISO 8601 time_period %q", automation.ErrInvalidArgs, period)
	}

	if first, second, found := strings.Cut(period, "/"); found {
		start, err := m.parseLocalOrDate(first, 0, 0, 0)
		if err != nil {
			return "", "", badPeriod()
		}
		end, err := m.parseLocalOrDate(second, 23, 59, 59)
		if err != nil {
			return "", "", badPeriod()
		}
		return toUTC(start), toUTC(end), nil
	}

	if isDateOnly(period) {
		day, err := time.ParseInLocation(dateLayout, period, m.loc)
		if err != nil {
			return "", "", badPeriod()
		}
		return toUTC(day), toUTC(day.AddDate(0, 0, 1)), nil
	}

	at, err := m.parseLocal(period)
	if err != nil {
		return "", "", badPeriod()
	}
	return toUTC(at), toUTC(at.Add(time.Minute)), nil
}

// parseLocalOrDate parses a datetime, or a bare date pinned to the given
// time of day.
func (m *Module) parseLocalOrDate(s string, hour, minute, second int) (time.Time, error) {
	if isDateOnly(s) {
		day, err := time.ParseInLocation(dateLayout, s, m.loc)
		if err != nil {
			return time.Time{}, err
		}
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second), nil
	}
	return m.parseLocal(s)
}

// parseLocal parses an ISO 8601 datetime in the module's timezone. A trailing
// Z is stripped first since the LLM sometimes appends one to local times.
func (m *Module) parseLocal(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, m.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", s)
}

func isDateOnly(s string) bool {
	return !strings.Contains(s, "T")
}

func toUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func (m *Module) displayStart(edt *calendar.EventDateTime) string {
	if edt == nil {
		return "unknown"
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t.In(m.loc).Format("2006-01-02 15:04")
		}
		return edt.DateTime
	}
	return edt.Date
}

// displayEnd renders the event end. All-day end dates are exclusive in the
// API, so the shown day is one earlier.
func (m *Module) displayEnd(edt *calendar.EventDateTime) string {
	if edt == nil {
		return "unknown"
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t.In(m.loc).Format("2006-01-02 15:04")
		}
		return edt.DateTime
	}
	if day, err := time.Parse(dateLayout, edt.Date); err == nil {
		return day.AddDate(0, 0, -1).Format(dateLayout)
	}
	return edt.Date
}

// restAPI adapts *calendar.Service to the api interface.
type restAPI struct {
	service *calendar.Service
}

func (r *restAPI) ListEvents(ctx context.Context, timeMin, timeMax, query string) ([]*calendar.Event, error) {
	call := r.service.Events.List("primary").
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin).
		Context(ctx)
	if timeMax != "" {
		call = call.TimeMax(timeMax)
	}
	if query != "" {
		call = call.Q(query)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (r *restAPI) InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	return r.service.Events.Insert("primary", event).Context(ctx).Do()
}

func (r *restAPI) DeleteEvent(ctx context.Context, id string) error {
	return r.service.Events.Delete("primary", id).Context(ctx).Do()
}
