package validation

import (
	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/form"
)

// Validator applies a rule table to a form and keeps each field's inline
// error annotation in sync with its latest outcome.
type Validator struct {
	rules   []Rule
	byField map[string]Rule
	logger  *zap.Logger
}

// New creates a Validator. A nil rule table uses DefaultRules.
func New(rules []Rule, logger *zap.Logger) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byField := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byField[r.Field] = r
	}
	return &Validator{rules: rules, byField: byField, logger: logger}
}

// Rules returns the rule table in evaluation order.
func (v *Validator) Rules() []Rule {
	return append([]Rule(nil), v.rules...)
}

// Rule returns the rule for a field.
func (v *Validator) Rule(field string) (Rule, bool) {
	r, ok := v.byField[field]
	return r, ok
}

// Field validates one field and updates its annotation. Fields without a
// rule, and fields absent from the form, pass. Select elements are handed to
// Select.
func (v *Validator) Field(f *form.Form, name string) bool {
	return v.FieldOutcome(f, name).Passed
}

// FieldOutcome is Field returning the full outcome.
func (v *Validator) FieldOutcome(f *form.Form, name string) Outcome {
	rule, ok := v.byField[name]
	if !ok {
		return Outcome{Field: name, Passed: true}
	}
	switch f.Tag(name) {
	case "":
		v.logger.Debug("validation skipped, field not on form", zap.String("field", name))
		return Outcome{Field: name, Passed: true}
	case "select":
		return v.SelectOutcome(f, name)
	}

	outcome := Check(rule, f.RawValue(name))
	if outcome.Passed {
		f.ClearAnnotation(name)
	} else {
		f.Annotate(name, rule.Message(outcome.Reason))
	}
	return outcome
}

// Select validates a required select: an empty value fails with a message
// built from its errorlabel attribute or its name.
func (v *Validator) Select(f *form.Form, name string) bool {
	return v.SelectOutcome(f, name).Passed
}

// SelectOutcome is Select returning the full outcome.
func (v *Validator) SelectOutcome(f *form.Form, name string) Outcome {
	if f.RawValue(name) != "" {
		f.ClearAnnotation(name)
		return Outcome{Field: name, Passed: true}
	}
	label := f.Attr(name, "errorlabel")
	if label == "" {
		label = name
	}
	f.Annotate(name, label+" is required.")
	return Outcome{Field: name, Passed: false, Reason: ReasonRequired}
}

// All validates every required rule field and every required select. It
// never short-circuits, so every failing field is annotated in one pass.
func (v *Validator) All(f *form.Form) (bool, []Outcome) {
	ok := true
	var outcomes []Outcome
	for _, rule := range v.rules {
		if !rule.Required {
			continue
		}
		// Selects are covered below so their outcome is recorded once.
		if tag := f.Tag(rule.Field); tag == "" || tag == "select" {
			continue
		}
		outcome := v.FieldOutcome(f, rule.Field)
		outcomes = append(outcomes, outcome)
		ok = ok && outcome.Passed
	}
	for _, name := range f.RequiredSelects() {
		outcome := v.SelectOutcome(f, name)
		outcomes = append(outcomes, outcome)
		ok = ok && outcome.Passed
	}
	return ok, outcomes
}
