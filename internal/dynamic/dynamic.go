// Package dynamic manages the job title and department selects that a
// contact form grows when the visitor picks the sales subject.
package dynamic

import (
	"html"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/form"
)

const (
	// FormNameField identifies which form a page carries.
	FormNameField = "elqFormName"
	// ActiveFormName is the only form the controller acts on.
	ActiveFormName = "website_cta_contactus"
	// SubjectField drives the group.
	SubjectField = "subject"
	// Trigger is the subject value that requires the group.
	Trigger = "Sales"

	JobTitleMarker   = "job-title-wrap"
	DepartmentMarker = "department-wrap"
)

// JobTitles are the options of the injected title select. The first entry is
// the empty placeholder.
var JobTitles = []string{
	"CXO/EVP",
	"SVP/VP",
	"Director",
	"Manager",
	"Individual Contributor",
	"Student",
}

// Departments are the options of the injected department select.
var Departments = []string{
	"BI",
	"Customer Service & Support",
	"Engineering/Product Development",
	"Developer/Engineering",
	"Human Resources",
	"IT",
	"Marketing",
	"Operations",
	"Sales",
	"Finance",
	"Other",
}

// State is whether the dependent group is on the form.
type State int

const (
	Absent State = iota
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Controller keeps the dependent group in step with the subject field.
type Controller struct {
	form   *form.Form
	active bool
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

// New binds a controller to a form. The controller is inert unless the form
// is the contact form and has a subject field.
func New(f *form.Form, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		form:   f,
		active: f.Value(FormNameField) == ActiveFormName && f.Has(SubjectField),
		logger: logger,
	}
	if f.HasMarked(JobTitleMarker) && f.HasMarked(DepartmentMarker) {
		c.state = Present
	}
	return c
}

// Active reports whether the controller acts on its form.
func (c *Controller) Active() bool {
	return c.active
}

// State returns the current group state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sync adds or removes the group to match the subject's current value and
// returns the resulting state. It runs on subject change and before submit.
func (c *Controller) Sync() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return c.state
	}

	want := Absent
	if c.form.RawValue(SubjectField) == Trigger {
		want = Present
	}
	if want == Present {
		c.enter()
	} else {
		c.exit()
	}
	if want != c.state {
		c.logger.Debug("dynamic fields changed",
			zap.Stringer("from", c.state),
			zap.Stringer("to", want))
	}
	c.state = want
	return c.state
}

// enter inserts whichever wrappers are missing. The marker check keeps a
// wrapper from ever being duplicated.
func (c *Controller) enter() {
	if !c.form.HasMarked(JobTitleMarker) {
		c.form.InsertAfterWrapper(SubjectField,
			wrapper(JobTitleMarker, "title", "job title", "Job title", JobTitles))
	}
	if !c.form.HasMarked(DepartmentMarker) {
		c.form.InsertAfterMarked(JobTitleMarker,
			wrapper(DepartmentMarker, "department", "department", "Department", Departments))
	}
}

func (c *Controller) exit() {
	c.form.RemoveMarked(JobTitleMarker)
	c.form.RemoveMarked(DepartmentMarker)
}

func wrapper(marker, name, label, placeholder string, options []string) string {
	var b strings.Builder
	b.WriteString(`<div ` + marker + ` class="form-input-wrap"><div class="form-input-inner-wrap">`)
	b.WriteString(`<select name="` + name + `" required class="input-relative" errorlabel="` + label + `">`)
	b.WriteString(`<option value="">` + placeholder + `</option>`)
	for _, opt := range options {
		esc := html.EscapeString(opt)
		b.WriteString(`<option value="` + esc + `">` + esc + `</option>`)
	}
	b.WriteString(`</select></div></div>`)
	return b.String()
}
