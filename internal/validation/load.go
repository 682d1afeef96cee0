package validation

import (
	"fmt"
	"html"
	"os"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/leadform/internal/schemas"
	schemadocs "github.com/jonathan/leadform/schemas"
)

var rulesSchema = sync.OnceValues(func() (*schemas.Schema, error) {
	return schemas.Compile("rules", schemadocs.Rules)
})

type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Field    string            `yaml:"field"`
	Kind     string            `yaml:"kind"`
	Min      int               `yaml:"min"`
	Required bool              `yaml:"required"`
	Messages map[string]string `yaml:"messages"`
}

// LoadRules reads a YAML rule file, checks it against the rule schema and
// returns the rules in file order. Message text is stripped of markup and
// kept as plain text; annotation rendering escapes it.
func LoadRules(path string) ([]Rule, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Message: fmt.Sprintf("failed to read rule file %s", path), Cause: err}
	}
	return ParseRules(content)
}

// ParseRules is LoadRules for in-memory content.
func ParseRules(content []byte) ([]Rule, error) {
	var raw any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, &Error{Message: "failed to parse rule file", Cause: err}
	}
	schema, err := rulesSchema()
	if err != nil {
		return nil, &Error{Message: "rule schema is broken", Cause: err}
	}
	if err := schema.Validate(raw); err != nil {
		return nil, &Error{Message: "rule file does not match schema", Cause: err}
	}

	var file ruleFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, &Error{Message: "failed to decode rules", Cause: err}
	}

	policy := bluemonday.StrictPolicy()
	rules := make([]Rule, 0, len(file.Rules))
	seen := make(map[string]bool, len(file.Rules))
	for _, e := range file.Rules {
		if seen[e.Field] {
			return nil, &Error{Message: fmt.Sprintf("duplicate rule for field %q", e.Field)}
		}
		seen[e.Field] = true
		msgs := make(map[Reason]string, len(e.Messages))
		for reason, text := range e.Messages {
			msgs[Reason(reason)] = html.UnescapeString(policy.Sanitize(text))
		}
		rules = append(rules, Rule{
			Field:    e.Field,
			Kind:     Kind(e.Kind),
			Min:      e.Min,
			Required: e.Required,
			Messages: msgs,
		})
	}
	return rules, nil
}
