package validation

// Kind selects the check applied to a field.
type Kind string

// Rule kinds.
const (
	KindName     Kind = "name"
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindJobTitle Kind = "jobTitle"
)

// Reason is the code of a failed check.
type Reason string

// Failure reasons.
const (
	ReasonRequired Reason = "required"
	ReasonMin      Reason = "min"
	ReasonInvalid  Reason = "invalid"
	ReasonBusiness Reason = "business"
)

// Rule describes how one field is validated.
type Rule struct {
	Field    string
	Kind     Kind
	Min      int
	Required bool
	Messages map[Reason]string
}

// Message returns the rule's text for a reason.
func (r Rule) Message(reason Reason) string {
	if msg, ok := r.Messages[reason]; ok && msg != "" {
		return msg
	}
	return "Please enter a valid value."
}

// Outcome is the result of validating one field. Reason is empty when the
// field passed.
type Outcome struct {
	Field  string
	Passed bool
	Reason Reason
}

// PersonalDomains are consumer webmail domains rejected for business email.
var PersonalDomains = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"aol.com":        true,
	"msn.com":        true,
	"ymail.com":      true,
	"comcast.net":    true,
	"live.com":       true,
	"protonmail.com": true,
}

// DefaultRules returns the built-in rule table, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Field:    "first_name",
			Kind:     KindName,
			Min:      2,
			Required: true,
			Messages: map[Reason]string{
				ReasonRequired: "First name is a required field.",
				ReasonMin:      "Please enter two or more characters.",
				ReasonInvalid:  "Please enter a valid first name.",
			},
		},
		{
			Field:    "last_name",
			Kind:     KindName,
			Min:      2,
			Required: true,
			Messages: map[Reason]string{
				ReasonRequired: "Last name is a required field.",
				ReasonMin:      "Please enter two or more characters.",
				ReasonInvalid:  "Please enter a valid last name.",
			},
		},
		{
			Field:    "email",
			Kind:     KindEmail,
			Required: true,
			Messages: map[Reason]string{
				ReasonRequired: "Email is a required field.",
				ReasonInvalid:  "Please make sure the email address is formatted as name@domain.com.",
				ReasonBusiness: "Please enter a valid business email address. Personal emails such as Gmail are not accepted.",
			},
		},
		{
			Field:    "phone",
			Kind:     KindPhone,
			Min:      10,
			Required: true,
			Messages: map[Reason]string{
				ReasonRequired: "Phone number is a required field.",
				ReasonMin:      "Please enter a minimum of 10 digits.",
				ReasonInvalid:  "Please enter a valid phone number.",
			},
		},
		{
			Field:    "title",
			Kind:     KindJobTitle,
			Required: true,
			Messages: map[Reason]string{
				ReasonRequired: "Job title is required.",
				ReasonInvalid:  "Please enter a valid job title.",
			},
		},
	}
}
