package form

import "github.com/PuerkitoBio/goquery"

// wrapClass is the wrapper class the page uses around each labelled input.
const wrapClass = ".form-input-wrap"

func (f *Form) container(name string) *goquery.Selection {
	return f.find(name).First().Parent()
}

// Annotate ensures exactly one error annotation follows the field's
// container and sets its text. It returns false when the field is missing.
func (f *Form) Annotate(name, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ct := f.container(name)
	if ct.Length() == 0 {
		return false
	}
	next := ct.Next()
	if next.Length() == 0 || !next.HasClass(ErrorClass) {
		ct.AfterHtml(`<div class="` + ErrorClass + `"></div>`)
		next = ct.Next()
	}
	next.SetText(text)
	return true
}

// ClearAnnotation removes the error annotation following the field's
// container, if any.
func (f *Form) ClearAnnotation(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ct := f.container(name)
	if ct.Length() == 0 {
		return
	}
	if next := ct.Next(); next.Length() > 0 && next.HasClass(ErrorClass) {
		next.Remove()
	}
}

// Annotation returns the text of the field's error annotation and whether
// one exists.
func (f *Form) Annotation(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.container(name).Next()
	if next.Length() == 0 || !next.HasClass(ErrorClass) {
		return "", false
	}
	return next.Text(), true
}

// Annotations counts every error annotation in the form.
func (f *Form) Annotations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.Find("." + ErrorClass).Length()
}

// HasMarked reports whether an element carrying the marker attribute exists.
func (f *Form) HasMarked(marker string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.Find("[" + marker + "]").Length() > 0
}

// CountMarked counts elements carrying the marker attribute.
func (f *Form) CountMarked(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.Find("[" + marker + "]").Length()
}

// InsertAfterWrapper inserts html immediately after the wrapper around the
// named field (its closest .form-input-wrap, else its parent).
func (f *Form) InsertAfterWrapper(name, html string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	field := f.find(name).First()
	if field.Length() == 0 {
		return false
	}
	wrap := field.Closest(wrapClass)
	if wrap.Length() == 0 {
		wrap = field.Parent()
	}
	wrap.AfterHtml(html)
	return true
}

// InsertAfterMarked inserts html immediately after the first element
// carrying the marker attribute.
func (f *Form) InsertAfterMarked(marker, html string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	el := f.sel.Find("[" + marker + "]").First()
	if el.Length() == 0 {
		return false
	}
	el.AfterHtml(html)
	return true
}

// RemoveMarked removes every element carrying the marker attribute and
// returns how many were removed.
func (f *Form) RemoveMarked(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sel.Find("[" + marker + "]")
	n := s.Length()
	s.Remove()
	return n
}
