package form

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// ErrorClass marks inline validation annotations.
const ErrorClass = "error-message"

// InputListener observes field writes. It is the in-memory stand-in for the
// bubbling "input" event a page framework would subscribe to.
type InputListener func(name, value string)

// Form is a single lead form. All reads and writes are serialized through
// the owning document's lock, so a mutation is never observed half-applied
// even when enrichment tasks run on other goroutines.
type Form struct {
	sel       *goquery.Selection
	mu        *sync.Mutex
	listeners []InputListener
}

// OnInput registers a listener fired after every field write.
func (f *Form) OnInput(fn InputListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *Form) notify(name, value string) {
	f.mu.Lock()
	listeners := append([]InputListener(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(name, value)
	}
}

func byName(name string) string {
	return `[name="` + strings.ReplaceAll(name, `"`, ``) + `"]`
}

func (f *Form) find(name string) *goquery.Selection {
	return f.sel.Find(byName(name))
}

// Has reports whether a field with the given name exists.
func (f *Form) Has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(name).Length() > 0
}

// Tag returns the element name of the first field with the given name
// ("input", "select", "textarea"), or "" when the field is absent.
func (f *Form) Tag(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(name)
	if s.Length() == 0 {
		return ""
	}
	return goquery.NodeName(s.First())
}

// Value returns the trimmed value of the first field with the given name,
// or "" when the field is absent.
func (f *Form) Value(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(name)
	if s.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(fieldValue(s.First()))
}

// RawValue is Value without trimming.
func (f *Form) RawValue(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(name)
	if s.Length() == 0 {
		return ""
	}
	return fieldValue(s.First())
}

// SetValue writes the first field with the given name. It returns false when
// no such field exists.
func (f *Form) SetValue(name, value string) bool {
	f.mu.Lock()
	s := f.find(name)
	if s.Length() == 0 {
		f.mu.Unlock()
		return false
	}
	setFieldValue(s.First(), value)
	f.mu.Unlock()
	f.notify(name, value)
	return true
}

// SetAll writes every field with the given name and returns how many were
// written.
func (f *Form) SetAll(name, value string) int {
	f.mu.Lock()
	s := f.find(name)
	n := s.Length()
	s.Each(func(_ int, field *goquery.Selection) {
		setFieldValue(field, value)
	})
	f.mu.Unlock()
	if n > 0 {
		f.notify(name, value)
	}
	return n
}

// Required reports whether the first field with the given name carries the
// required attribute.
func (f *Form) Required(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.find(name).First().Attr("required")
	return ok
}

// Checked reports whether the named checkbox is checked. The second result
// is false when the field does not exist.
func (f *Form) Checked(name string) (checked bool, found bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(name)
	if s.Length() == 0 {
		return false, false
	}
	_, checked = s.First().Attr("checked")
	return checked, true
}

// Attr returns an attribute of the first field with the given name.
func (f *Form) Attr(name, attr string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(name).First().AttrOr(attr, "")
}

// Action returns the form's configured action URL.
func (f *Form) Action() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.TrimSpace(f.sel.AttrOr("action", ""))
}

// RequiredSelects returns the names of every required select, in document
// order.
func (f *Form) RequiredSelects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	f.sel.Find("select[required]").Each(func(_ int, s *goquery.Selection) {
		if name := s.AttrOr("name", ""); name != "" {
			names = append(names, name)
		}
	})
	return names
}

// ShowConsentWrappers reveals every consent wrapper and unchecks the input
// inside it. It returns the number of wrappers touched.
func (f *Form) ShowConsentWrappers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	wrappers := f.sel.Find(".consent-wrapper")
	wrappers.Each(func(_ int, w *goquery.Selection) {
		w.Find("input").First().RemoveAttr("checked")
		w.SetAttr("style", withDisplay(w.AttrOr("style", ""), "flex"))
	})
	return wrappers.Length()
}

// withDisplay sets the display declaration of an inline style, keeping every
// other declaration in place.
func withDisplay(style, display string) string {
	var decls []string
	found := false
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			if found {
				continue
			}
			decl = "display: " + display
			found = true
		}
		decls = append(decls, decl)
	}
	if !found {
		decls = append(decls, "display: "+display)
	}
	return strings.Join(decls, "; ")
}

// Serialize encodes the form's successful controls in document order, the
// same set a browser FormData would collect.
func (f *Form) Serialize() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := url.Values{}
	f.sel.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(s) {
		case "select":
			if s.Find("option").Length() == 0 {
				return
			}
		case "input":
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				values.Add(name, s.AttrOr("value", "on"))
				return
			}
		}
		values.Add(name, fieldValue(s))
	})
	return values
}

func fieldValue(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "select":
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		return optionValue(opt)
	case "textarea":
		return s.Text()
	default:
		return s.AttrOr("value", "")
	}
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

func setFieldValue(s *goquery.Selection, value string) {
	switch goquery.NodeName(s) {
	case "select":
		options := s.Find("option")
		options.RemoveAttr("selected")
		options.Each(func(_ int, opt *goquery.Selection) {
			if optionValue(opt) == value {
				opt.SetAttr("selected", "selected")
			}
		})
	case "textarea":
		s.SetText(value)
	default:
		s.SetAttr("value", value)
	}
}
