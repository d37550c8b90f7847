package api

import (
	"errors"
	"net/http"

	recurrenceDomain "github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	reminderDomain "github.com/felixgeelhaar/cadence/internal/reminders/domain"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, recurrenceDomain.ErrValidation),
		errors.Is(err, reminderDomain.ErrInvalidReminder):
		return http.StatusBadRequest
	case errors.Is(err, recurrenceDomain.ErrEventNotFound),
		errors.Is(err, recurrenceDomain.ErrOccurrenceNotFound),
		errors.Is(err, reminderDomain.ErrReminderNotFound):
		return http.StatusNotFound
	case errors.Is(err, reminderDomain.ErrDuplicateReminder),
		errors.Is(err, reminderDomain.ErrInvalidState),
		errors.Is(err, recurrenceDomain.ErrNotRecurring):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}
	s.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	message := "internal server error"
	if errors.Is(err, recurrenceDomain.ErrCorruptRecurrenceState) {
		message = recurrenceDomain.ErrCorruptRecurrenceState.Error()
	}
	writeError(w, status, message)
}
