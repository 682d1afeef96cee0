package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// emailShape treats every Unicode space separator, vertical tab and BOM as
// whitespace alongside the ASCII set.
var emailShape = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// runLength is the number of identical consecutive characters treated as
// keyboard mashing.
const runLength = 4

// Check evaluates a value against a rule. The value is trimmed first. Check
// never touches a form.
func Check(rule Rule, value string) Outcome {
	v := strings.TrimSpace(value)
	reason := check(rule, v)
	return Outcome{Field: rule.Field, Passed: reason == "", Reason: reason}
}

func check(rule Rule, v string) Reason {
	switch rule.Kind {
	case KindName:
		switch {
		case v == "":
			return ReasonRequired
		case utf8.RuneCountInString(v) < rule.Min:
			return ReasonMin
		case hasRun(v, runLength), !lettersAndSpaces(v):
			return ReasonInvalid
		}
	case KindEmail:
		switch {
		case v == "":
			return ReasonRequired
		case !emailShape.MatchString(v):
			return ReasonInvalid
		case PersonalDomains[v[strings.IndexByte(v, '@')+1:]]:
			return ReasonBusiness
		}
	case KindPhone:
		switch {
		case v == "":
			return ReasonRequired
		case digitCount(v) < rule.Min:
			return ReasonMin
		case !phoneShape(v):
			return ReasonInvalid
		}
	case KindJobTitle:
		switch {
		case v == "":
			if rule.Required {
				return ReasonRequired
			}
		case !lettersAndSpaces(v), hasRun(v, runLength):
			return ReasonInvalid
		}
	default:
		if rule.Required && v == "" {
			return ReasonRequired
		}
	}
	return ""
}

// hasRun reports whether s contains n or more identical consecutive runes.
func hasRun(s string, n int) bool {
	var prev rune
	count := 0
	for i, r := range s {
		if i > 0 && r == prev {
			count++
		} else {
			count = 1
		}
		if count >= n {
			return true
		}
		prev = r
	}
	return false
}

// lettersAndSpaces reports whether s is non-empty and holds only ASCII
// letters and whitespace.
func lettersAndSpaces(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || unicode.IsSpace(r) {
			continue
		}
		return false
	}
	return true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// phoneShape accepts an optional leading "+" followed by 8 to 15 digits that
// are not all the same digit.
func phoneShape(s string) bool {
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.Count(digits, digits[:1]) != len(digits)
}
