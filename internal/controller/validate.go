package controller

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// EventForm is the edit modal's input. Times are "HH:MM" in the viewer's
// zone and may be empty.
type EventForm struct {
	Title     string `json:"title" validate:"required,max=200"`
	Type      string `json:"type" validate:"omitempty,oneof=lecture lab practice exam other"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
}

func (f EventForm) trimmed() EventForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Type = strings.TrimSpace(f.Type)
	f.Date = strings.TrimSpace(f.Date)
	f.StartTime = strings.TrimSpace(f.StartTime)
	f.EndTime = strings.TrimSpace(f.EndTime)
	return f
}

// FieldError names one rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when the form is rejected locally. No request
// is sent in that case.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return strings.Join(msgs, "; ")
}

var (
	requiredTag  = "required"
	requiredText = "this field is required"
	timeOrderTag = "time_order"
)

// formValidator wraps a validator with English messages keyed by JSON
// field names.
type formValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newFormValidator() *formValidator {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")

	v := validator.New()
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(timeOrderValidation, EventForm{})

	registerTranslation(v, trans, requiredTag, requiredText, true)
	registerTranslation(v, trans, timeOrderTag, "must not be before start_time", false)

	return &formValidator{validate: v, translator: trans}
}

func registerTranslation(v *validator.Validate, trans ut.Translator, tag, text string, override bool) {
	_ = v.RegisterTranslation(
		tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// timeOrderValidation requires a start time whenever an end time is given
// and rejects an end earlier than the start. "HH:MM" strings compare
// correctly as text.
func timeOrderValidation(sl validator.StructLevel) {
	f := sl.Current().Interface().(EventForm)
	if f.EndTime != "" && f.StartTime == "" {
		sl.ReportError(f.StartTime, "start_time", "StartTime", requiredTag, "")
		return
	}
	if f.StartTime != "" && f.EndTime != "" && f.EndTime < f.StartTime {
		sl.ReportError(f.EndTime, "end_time", "EndTime", timeOrderTag, "")
	}
}

// Check validates f and converts failures into a *ValidationError.
func (fv *formValidator) Check(f EventForm) error {
	err := fv.validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fe.Translate(fv.translator)})
	}
	return out
}
