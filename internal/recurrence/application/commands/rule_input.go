package commands

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	"github.com/go-playground/validator/v10"
)

// RuleInput is the serialised form of a recurrence rule accepted from
// callers.
type RuleInput struct {
	Frequency  string    `json:"frequency" yaml:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	Interval   int       `json:"interval" yaml:"interval" validate:"required,min=1,max=365"`
	ByWeekday  []string  `json:"byWeekday,omitempty" yaml:"byWeekday,omitempty" validate:"omitempty,dive,oneof=SU MO TU WE TH FR SA"`
	ByMonthDay *int      `json:"byMonthDay,omitempty" yaml:"byMonthDay,omitempty" validate:"omitempty,min=1,max=31"`
	End        *EndInput `json:"end,omitempty" yaml:"end,omitempty"`
}

// EndInput is the serialised end condition.
type EndInput struct {
	Type  string     `json:"type" yaml:"type" validate:"required,oneof=never until count"`
	Until *time.Time `json:"until,omitempty" yaml:"until,omitempty"`
	Count *int       `json:"count,omitempty" yaml:"count,omitempty" validate:"omitempty,min=1,max=1000"`
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

// ToRule checks the input's shape and converts it into a domain rule. The
// result still has to pass Rule.Validate against its anchor.
func (in RuleInput) ToRule() (domain.Rule, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Rule{}, toValidationError(err)
	}

	rule := domain.Rule{
		Frequency: domain.Frequency(in.Frequency),
		Interval:  in.Interval,
	}
	for _, w := range in.ByWeekday {
		rule.ByWeekday = append(rule.ByWeekday, domain.Weekday(w))
	}
	if in.ByMonthDay != nil {
		rule.ByMonthDay = *in.ByMonthDay
	}

	end, err := in.End.toEnd()
	if err != nil {
		return domain.Rule{}, err
	}
	rule.End = end
	return rule, nil
}

func (in *EndInput) toEnd() (domain.End, error) {
	if in == nil {
		return domain.EndNever{}, nil
	}
	switch in.Type {
	case "until":
		if in.Until == nil {
			return nil, &domain.ValidationError{Field: "end.until", Message: "is required for an until end"}
		}
		if in.Count != nil {
			return nil, &domain.ValidationError{Field: "end", Message: "until and count are mutually exclusive"}
		}
		return domain.EndUntil{At: in.Until.UTC()}, nil
	case "count":
		if in.Count == nil {
			return nil, &domain.ValidationError{Field: "end.count", Message: "is required for a count end"}
		}
		if in.Until != nil {
			return nil, &domain.ValidationError{Field: "end", Message: "until and count are mutually exclusive"}
		}
		return domain.EndCount{N: *in.Count}, nil
	default:
		if in.Until != nil || in.Count != nil {
			return nil, &domain.ValidationError{Field: "end", Message: "a never end takes no until or count"}
		}
		return domain.EndNever{}, nil
	}
}

// RuleInputFrom converts a domain rule back into its serialised form.
func RuleInputFrom(rule domain.Rule) RuleInput {
	in := RuleInput{
		Frequency: string(rule.Frequency),
		Interval:  rule.Interval,
	}
	for _, w := range rule.ByWeekday {
		in.ByWeekday = append(in.ByWeekday, string(w))
	}
	if rule.ByMonthDay != 0 {
		day := rule.ByMonthDay
		in.ByMonthDay = &day
	}
	switch end := rule.Termination().(type) {
	case domain.EndUntil:
		at := end.At
		in.End = &EndInput{Type: "until", Until: &at}
	case domain.EndCount:
		n := end.N
		in.End = &EndInput{Type: "count", Count: &n}
	default:
		in.End = &EndInput{Type: "never"}
	}
	return in
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "RuleInput.")
		if fe.Param() != "" {
			return &domain.ValidationError{Field: field, Message: "failed " + fe.Tag() + "=" + fe.Param()}
		}
		return &domain.ValidationError{Field: field, Message: "failed " + fe.Tag()}
	}
	return &domain.ValidationError{Field: "rule", Message: err.Error()}
}
