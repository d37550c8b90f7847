package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	recurrenceCommands "github.com/felixgeelhaar/cadence/internal/recurrence/application/commands"
)

const maxBodyBytes = 1 << 20

type createEventRequest struct {
	Title    string                         `json:"title" validate:"required,max=500"`
	Start    *time.Time                     `json:"start" validate:"required"`
	End      *time.Time                     `json:"end" validate:"required"`
	Timezone string                         `json:"timezone" validate:"omitempty,timezone"`
	Rule     *recurrenceCommands.RuleInput `json:"rule,omitempty"`
}

type overrideRequest struct {
	Cancelled bool       `json:"cancelled"`
	Start     *time.Time `json:"start" validate:"required_without=Cancelled,excluded_with=Cancelled"`
	End       *time.Time `json:"end" validate:"required_without=Cancelled,excluded_with=Cancelled"`
}

type scheduleReminderRequest struct {
	OccurrenceStart *time.Time `json:"occurrence_start"`
	RemindAt        *time.Time `json:"remind_at" validate:"required_without=Preset,excluded_with=Preset"`
	Preset          string     `json:"preset" validate:"omitempty,oneof=15m 1h 1d"`
	Channel         string     `json:"channel" validate:"required,oneof=in_app email sms push"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", errBadRequest, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", errBadRequest, name)
	}
	return id, nil
}

// timeParam parses an RFC 3339 path parameter. Offsets may arrive
// percent-encoded.
func timeParam(r *http.Request, name string) (time.Time, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s is not a valid path segment", errBadRequest, name)
	}
	return parseTime(name, raw)
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: query parameter %q is required", errBadRequest, name)
	}
	return parseTime(name, raw)
}

func parseTime(name, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 time", errBadRequest, name)
	}
	return t, nil
}
