// Package testdef loads and validates declarative form test definitions.
//
// A definition names the app and mobile worker under test, the menu
// navigation needed to reach a form, and the answers to replay into it.
// Definitions are immutable value objects: overrides produce copies.
package testdef

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action tokens recognized in the answers section. Matched exactly and
// case-sensitively, before any value coercion, so a literal answer of
// "skip" stays a value while "SKIP" is an action.
const (
	ActionSkip      = "SKIP"
	ActionNewRepeat = "NEW_REPEAT"
)

// DefaultTimeout is the per-run time budget in seconds when the
// definition does not carry a usable timeout.
const DefaultTimeout = 120

// Answer pairs a question reference with its value or action token.
// Document order is preserved so encoded scripts are deterministic,
// though the player matches answers by reference, not position.
type Answer struct {
	Ref   string
	Value string
}

// Definition is a parsed form test definition.
type Definition struct {
	// Name is the human-readable test label.
	Name string
	// Domain is the project space (project_id).
	Domain string
	// AppID is the application under test.
	AppID string
	// Username is the mobile worker username, without the @domain suffix.
	Username string
	// Navigation is the ordered menu/entity selections to reach the form.
	Navigation []string
	// Answers maps question references to values or action tokens.
	Answers []Answer
	// Timeout is the run time budget in seconds.
	Timeout int
}

// ValidationError reports every missing required field in one message,
// not just the first.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// rawDefinition is the YAML document shape. Navigation entries, answer
// values, and the timeout are held as nodes so numeric and boolean
// scalars can be coerced to strings without losing their literal form.
type rawDefinition struct {
	Name       string      `yaml:"name"`
	Domain     string      `yaml:"domain"`
	AppID      string      `yaml:"app_id"`
	Username   string      `yaml:"username"`
	Navigation []yaml.Node `yaml:"navigation"`
	Answers    yaml.Node   `yaml:"answers"`
	Timeout    yaml.Node   `yaml:"timeout"`
}

// Load reads and parses a YAML test definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("test file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read test file %q: %w", path, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse parses a YAML test definition document.
// Returns *ValidationError when any required field is missing or empty.
func Parse(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", raw.Name},
		{"domain", raw.Domain},
		{"app_id", raw.AppID},
		{"username", raw.Username},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	navigation := make([]string, 0, len(raw.Navigation))
	for _, n := range raw.Navigation {
		navigation = append(navigation, scalarString(&n))
	}

	answers, err := parseAnswers(&raw.Answers)
	if err != nil {
		return nil, err
	}

	return &Definition{
		Name:       raw.Name,
		Domain:     raw.Domain,
		AppID:      raw.AppID,
		Username:   raw.Username,
		Navigation: navigation,
		Answers:    answers,
		Timeout:    parseTimeout(&raw.Timeout),
	}, nil
}

// parseAnswers walks the answers mapping node, preserving document order.
func parseAnswers(node *yaml.Node) ([]Answer, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("answers must be a mapping of reference to value")
	}

	answers := make([]Answer, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		answers = append(answers, Answer{
			Ref:   scalarString(key),
			Value: scalarString(value),
		})
	}
	return answers, nil
}

// parseTimeout coerces the timeout node to a positive integer, falling
// back to DefaultTimeout when absent or non-numeric.
func parseTimeout(node *yaml.Node) int {
	if node.Kind != yaml.ScalarNode {
		return DefaultTimeout
	}
	t, err := strconv.Atoi(strings.TrimSpace(node.Value))
	if err != nil || t <= 0 {
		return DefaultTimeout
	}
	return t
}

// scalarString returns the literal text of a scalar node, so YAML
// integers and booleans keep the spelling the author wrote.
func scalarString(node *yaml.Node) string {
	if node.Kind == yaml.ScalarNode {
		return node.Value
	}
	return ""
}

// WithDomain returns a copy of the definition targeting a different
// domain. Empty domain returns an unchanged copy. The receiver is never
// mutated.
func (d *Definition) WithDomain(domain string) *Definition {
	c := d.clone()
	if domain != "" {
		c.Domain = domain
	}
	return c
}

// WithTimeout returns a copy with the timeout overridden.
// Non-positive values return an unchanged copy.
func (d *Definition) WithTimeout(seconds int) *Definition {
	c := d.clone()
	if seconds > 0 {
		c.Timeout = seconds
	}
	return c
}

func (d *Definition) clone() *Definition {
	c := *d
	c.Navigation = append([]string(nil), d.Navigation...)
	c.Answers = append([]Answer(nil), d.Answers...)
	return &c
}
