package api

import (
	"net/http"
	"time"

	"github.com/felixgeelhaar/cadence/internal/app"
	recurrenceCommands "github.com/felixgeelhaar/cadence/internal/recurrence/application/commands"
	recurrenceQueries "github.com/felixgeelhaar/cadence/internal/recurrence/application/queries"
	"github.com/felixgeelhaar/cadence/internal/recurrence/infrastructure/ical"
	reminderCommands "github.com/felixgeelhaar/cadence/internal/reminders/application/commands"
	reminderQueries "github.com/felixgeelhaar/cadence/internal/reminders/application/queries"
	reminderDomain "github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/samber/mo"
)

// Deps holds the application handlers the API calls.
type Deps struct {
	CreateEvent      *recurrenceCommands.CreateEventHandler
	DeleteEvent      *recurrenceCommands.DeleteEventHandler
	SetRule          *recurrenceCommands.SetRecurrenceRuleHandler
	ClearRule        *recurrenceCommands.ClearRecurrenceRuleHandler
	Occurrences      *recurrenceCommands.OccurrenceHandler
	GetSeries        *recurrenceQueries.GetSeriesHandler
	ListOccurrences  *recurrenceQueries.ListOccurrencesHandler
	ListCalendar     *recurrenceQueries.ListCalendarHandler
	ScheduleReminder *reminderCommands.ScheduleReminderHandler
	CancelReminder   *reminderCommands.CancelReminderHandler
	ListReminders    *reminderQueries.ListRemindersHandler
}

type ruleResponse struct {
	recurrenceCommands.RuleInput
	RRule string `json:"rrule"`
}

type eventResponse struct {
	*recurrenceQueries.SeriesDTO
	Rule *ruleResponse `json:"rule,omitempty"`
}

func newEventResponse(dto *recurrenceQueries.SeriesDTO) eventResponse {
	resp := eventResponse{SeriesDTO: dto}
	if dto.Rule != nil {
		resp.Rule = &ruleResponse{
			RuleInput: recurrenceCommands.RuleInputFrom(*dto.Rule),
			RRule:     ical.FormatRRule(*dto.Rule),
		}
	}
	return resp
}

// createEvent handles POST /api/v1/events.
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	event, err := s.deps.CreateEvent.Handle(r.Context(), recurrenceCommands.CreateEventCommand{
		Title:    req.Title,
		Start:    *req.Start,
		End:      *req.End,
		Timezone: req.Timezone,
		Rule:     req.Rule,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.deps.GetSeries.Handle(r.Context(), event.ID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventResponse(dto))
}

// getEvent handles GET /api/v1/events/{eventID}.
func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.deps.GetSeries.Handle(r.Context(), eventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(dto))
}

// deleteEvent handles DELETE /api/v1/events/{eventID}.
func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.DeleteEvent.Handle(r.Context(), recurrenceCommands.DeleteEventCommand{EventID: eventID}); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setRule handles PUT /api/v1/events/{eventID}/recurrence.
func (s *Server) setRule(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in recurrenceCommands.RuleInput
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	rule, err := s.deps.SetRule.Handle(r.Context(), recurrenceCommands.SetRecurrenceRuleCommand{EventID: eventID, Rule: in})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ruleResponse{
		RuleInput: recurrenceCommands.RuleInputFrom(rule),
		RRule:     ical.FormatRRule(rule),
	})
}

// clearRule handles DELETE /api/v1/events/{eventID}/recurrence.
func (s *Server) clearRule(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.ClearRule.Handle(r.Context(), recurrenceCommands.ClearRecurrenceRuleCommand{EventID: eventID}); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) occurrenceQuery(r *http.Request) (recurrenceQueries.ListOccurrencesQuery, error) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		return recurrenceQueries.ListOccurrencesQuery{}, err
	}
	from, err := queryTime(r, "from")
	if err != nil {
		return recurrenceQueries.ListOccurrencesQuery{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return recurrenceQueries.ListOccurrencesQuery{}, err
	}
	return recurrenceQueries.ListOccurrencesQuery{EventID: eventID, From: from, To: to}, nil
}

// listOccurrences handles GET /api/v1/events/{eventID}/occurrences.
func (s *Server) listOccurrences(w http.ResponseWriter, r *http.Request) {
	query, err := s.occurrenceQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	occurrences, err := s.deps.ListOccurrences.Handle(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occurrences": occurrences})
}

// exportCalendar handles GET /api/v1/events/{eventID}/calendar.ics.
func (s *Server) exportCalendar(w http.ResponseWriter, r *http.Request) {
	query, err := s.occurrenceQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	series, resolved, err := s.deps.ListOccurrences.Resolve(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := ical.Export(w, series.Event, resolved, time.Now()); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to export calendar", "error", err)
	}
}

func calendarQuery(r *http.Request) (recurrenceQueries.ListCalendarQuery, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return recurrenceQueries.ListCalendarQuery{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return recurrenceQueries.ListCalendarQuery{}, err
	}
	return recurrenceQueries.ListCalendarQuery{From: from, To: to}, nil
}

// listCalendar handles GET /api/v1/occurrences.
func (s *Server) listCalendar(w http.ResponseWriter, r *http.Request) {
	query, err := calendarQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	calendar, err := s.deps.ListCalendar.Handle(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(calendar.Corrupt) > 0 {
		s.logger.WarnContext(r.Context(), "skipped corrupt series", "count", len(calendar.Corrupt))
	}
	writeJSON(w, http.StatusOK, calendar)
}

// exportFullCalendar handles GET /api/v1/calendar.ics.
func (s *Server) exportFullCalendar(w http.ResponseWriter, r *http.Request) {
	query, err := calendarQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resolved, _, err := s.deps.ListCalendar.Resolve(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries := make([]ical.Entry, 0, len(resolved))
	for _, e := range resolved {
		entries = append(entries, ical.Entry{Event: e.Series.Event, Occurrences: e.Occurrences})
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := ical.ExportCalendar(w, entries, time.Now()); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to export calendar", "error", err)
	}
}

// overrideOccurrence handles PUT /api/v1/events/{eventID}/occurrences/{originalStart}.
func (s *Server) overrideOccurrence(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	originalStart, err := timeParam(r, "originalStart")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req overrideRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if req.Cancelled {
		err := s.deps.Occurrences.Cancel(r.Context(), recurrenceCommands.CancelOccurrenceCommand{
			EventID:       eventID,
			OriginalStart: originalStart,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"originalStart": originalStart.UTC(), "cancelled": true})
		return
	}

	override, err := s.deps.Occurrences.Reschedule(r.Context(), recurrenceCommands.RescheduleOccurrenceCommand{
		EventID:       eventID,
		OriginalStart: originalStart,
		NewStart:      *req.Start,
		NewEnd:        *req.End,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"originalStart": override.OriginalStart,
		"start":         override.Start,
		"end":           override.End,
		"cancelled":     false,
	})
}

// restoreOccurrence handles DELETE /api/v1/events/{eventID}/occurrences/{originalStart}.
func (s *Server) restoreOccurrence(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	originalStart, err := timeParam(r, "originalStart")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.deps.Occurrences.Restore(r.Context(), recurrenceCommands.RestoreOccurrenceCommand{
		EventID:       eventID,
		OriginalStart: originalStart,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scheduleReminder handles POST /api/v1/events/{eventID}/reminders.
func (s *Server) scheduleReminder(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req scheduleReminderRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	cmd := reminderCommands.ScheduleReminderCommand{
		EventID:         eventID,
		OccurrenceStart: mo.PointerToOption(req.OccurrenceStart),
		Preset:          reminderDomain.Preset(req.Preset),
		Channel:         reminderDomain.Channel(req.Channel),
	}
	if req.RemindAt != nil {
		cmd.RemindAt = *req.RemindAt
	}
	result, err := s.deps.ScheduleReminder.Handle(r.Context(), cmd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"reminder": reminderQueries.ToDTO(result.Reminder),
		"late":     result.Late,
	})
}

// listReminders handles GET /api/v1/events/{eventID}/reminders.
func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := reminderQueries.ListRemindersQuery{EventID: eventID}
	if status := r.URL.Query().Get("status"); status != "" {
		query.Status = reminderDomain.Status(status)
		if !query.Status.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown status "+status)
			return
		}
	}
	reminders, err := s.deps.ListReminders.Handle(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

// cancelReminder handles POST /api/v1/reminders/{reminderID}/cancel.
func (s *Server) cancelReminder(w http.ResponseWriter, r *http.Request) {
	reminderID, err := uuidParam(r, "reminderID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.CancelReminder.Handle(r.Context(), reminderCommands.CancelReminderCommand{ReminderID: reminderID}); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NewDeps collects the API's handlers from a container.
func NewDeps(c *app.Container) Deps {
	return Deps{
		CreateEvent:      c.CreateEventHandler,
		DeleteEvent:      c.DeleteEventHandler,
		SetRule:          c.SetRuleHandler,
		ClearRule:        c.ClearRuleHandler,
		Occurrences:      c.OccurrenceHandler,
		GetSeries:        c.GetSeriesHandler,
		ListOccurrences:  c.ListOccurrencesHandler,
		ListCalendar:     c.ListCalendarHandler,
		ScheduleReminder: c.ScheduleReminderHandler,
		CancelReminder:   c.CancelReminderHandler,
		ListReminders:    c.ListRemindersHandler,
	}
}
