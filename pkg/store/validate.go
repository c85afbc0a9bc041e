package store

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/songledger/songledger/pkg/event"
)

var durationPattern = regexp.MustCompile(`^(\d{1,2}:)?\d{1,2}:\d{2}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		return durationPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.DateOnly, strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	return v
}

var reasons = map[string]string{
	"required": "must not be empty",
	"duration": "must look like H:MM:SS or MM:SS",
	"isodate":  "must be a YYYY-MM-DD date",
	"number":   "must be a whole number",
}

// Validate checks fields against the rules of g's table. Unknown columns are
// rejected; missing columns are validated as empty.
func Validate(g event.Group, fields map[string]string) error {
	t, err := TableFor(g)
	if err != nil {
		return err
	}
	return t.validate(fields)
}

func (t Table) validate(fields map[string]string) error {
	problems := map[string]string{}
	for name := range fields {
		if t.Index(name) < 0 {
			problems[name] = "unknown column"
		}
	}
	for name, rule := range t.Rules {
		val := strings.TrimSpace(fields[name])
		if err := validate.Var(val, rule); err != nil {
			problems[name] = reason(err)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Table: t.Name, Problems: problems}
	}
	return nil
}

func reason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if r, ok := reasons[verrs[0].Tag()]; ok {
			return r
		}
		return "failed " + verrs[0].Tag()
	}
	return err.Error()
}
