package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FieldType enumerates the field types supported by Zendesk custom objects.
// TypeDateTime is a client-side convention: on the wire it is stored as a
// date field plus a "<key>_time" text companion.
type FieldType string

const (
	TypeName        FieldType = "name"
	TypeText        FieldType = "text"
	TypeTextarea    FieldType = "textarea"
	TypeCheckbox    FieldType = "checkbox"
	TypeDate        FieldType = "date"
	TypeDateTime    FieldType = "datetime"
	TypeInteger     FieldType = "integer"
	TypeDecimal     FieldType = "decimal"
	TypeRegexp      FieldType = "regexp"
	TypeDropdown    FieldType = "dropdown"
	TypeLookup      FieldType = "lookup"
	TypeMultiselect FieldType = "multiselect"
)

// Valid reports whether the field type is one Zendesk accepts for creation.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeTextarea, TypeCheckbox, TypeDate, TypeDateTime,
		TypeInteger, TypeDecimal, TypeRegexp, TypeDropdown, TypeLookup, TypeMultiselect:
		return true
	}
	return false
}

var (
	// ErrInvalidValue reports a value whose Go type does not match the field.
	ErrInvalidValue = errors.New("schema: invalid value for field")
	// ErrInvalidChoice reports a dropdown/multiselect value outside the declared choices.
	ErrInvalidChoice = errors.New("schema: value is not an allowed choice")
	// ErrPatternMismatch reports a regexp field value that does not match its pattern.
	ErrPatternMismatch = errors.New("schema: value does not match pattern")
	// ErrInvalidDate reports a date value not shaped like YYYY-MM-DD.
	ErrInvalidDate = errors.New("schema: invalid date format, want YYYY-MM-DD")
	// ErrBadDefinition reports a model or file that cannot be turned into a definition.
	ErrBadDefinition = errors.New("schema: bad definition")
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Choice is a selectable option of a dropdown or multiselect field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// NameOptions configures the reserved name field of a custom object.
type NameOptions struct {
	Unique                    bool   `yaml:"unique"`
	AutoincrementEnabled      bool   `yaml:"autoincrement"`
	AutoincrementPrefix       string `yaml:"autoincrement_prefix"`
	AutoincrementPadding      int    `yaml:"autoincrement_padding"`
	AutoincrementNextSequence int    `yaml:"autoincrement_next_sequence"`
}

// Field describes one custom object field.
type Field struct {
	Key     string    `yaml:"key"`
	Title   string    `yaml:"title"`
	Type    FieldType `yaml:"type"`
	Pattern string    `yaml:"pattern,omitempty"`
	Choices []Choice  `yaml:"choices,omitempty"`
	// Target is the key of the related custom object for lookup fields.
	Target string `yaml:"target,omitempty"`

	pattern *regexp.Regexp
}

// RelationshipTargetType returns the lookup target in Zendesk notation.
func (f *Field) RelationshipTargetType() string {
	if f.Type != TypeLookup || f.Target == "" {
		return ""
	}
	return "zen:custom_object:" + strings.ToLower(f.Target)
}

// ChoiceLabel returns the label declared for a choice value, falling back to
// the value itself.
func (f *Field) ChoiceLabel(value string) string {
	for _, c := range f.Choices {
		if c.Value == value {
			if c.Label != "" {
				return c.Label
			}
			break
		}
	}
	return value
}

func (f *Field) hasChoice(value string) bool {
	for _, c := range f.Choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// compile prepares the regexp of a regexp field. Called once when the field
// joins a definition.
func (f *Field) compile() error {
	if f.Type != TypeRegexp {
		return nil
	}
	if f.Pattern == "" {
		return fmt.Errorf("%w: regexp field %q needs a pattern", ErrBadDefinition, f.Key)
	}
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return fmt.Errorf("%w: regexp field %q: %v", ErrBadDefinition, f.Key, err)
	}
	f.pattern = re
	return nil
}

// Validate checks a wire-level value against the field. A nil value is
// always accepted; absence is not an error at this layer.
func (f *Field) Validate(value any) error {
	if value == nil {
		return nil
	}
	switch f.Type {
	case TypeName, TypeText, TypeTextarea, TypeLookup:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w %q: want string, got %T", ErrInvalidValue, f.Key, value)
		}
	case TypeCheckbox:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w %q: want bool, got %T", ErrInvalidValue, f.Key, value)
		}
	case TypeInteger:
		switch value.(type) {
		case int, int32, int64, float64:
		default:
			return fmt.Errorf("%w %q: want integer, got %T", ErrInvalidValue, f.Key, value)
		}
	case TypeDecimal:
		switch value.(type) {
		case float32, float64, int, int64:
		default:
			return fmt.Errorf("%w %q: want number, got %T", ErrInvalidValue, f.Key, value)
		}
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w %q: want string date, got %T", ErrInvalidValue, f.Key, value)
		}
		if !dateFormat.MatchString(s) {
			return fmt.Errorf("%w: field %q value %q", ErrInvalidDate, f.Key, s)
		}
	case TypeRegexp:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w %q: want string, got %T", ErrInvalidValue, f.Key, value)
		}
		re := f.pattern
		if re == nil {
			var err error
			if re, err = regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("%w: regexp field %q: %v", ErrBadDefinition, f.Key, err)
			}
		}
		if !re.MatchString(s) {
			return fmt.Errorf("%w: field %q value %q", ErrPatternMismatch, f.Key, s)
		}
	case TypeDropdown:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w %q: want string, got %T", ErrInvalidValue, f.Key, value)
		}
		if len(f.Choices) > 0 && !f.hasChoice(s) {
			return fmt.Errorf("%w: field %q value %q", ErrInvalidChoice, f.Key, s)
		}
	case TypeMultiselect:
		items, err := toStringSlice(value)
		if err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidValue, f.Key, err)
		}
		for _, item := range items {
			if len(f.Choices) > 0 && !f.hasChoice(item) {
				return fmt.Errorf("%w: field %q value %q", ErrInvalidChoice, f.Key, item)
			}
		}
	}
	return nil
}

func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("want []string, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want []string, got %T", value)
	}
}

// ChoicesFromLabels converts plain labels into choices, slugging each label
// into its stored value (lowercased, diacritics stripped, spaces replaced
// by underscores).
func ChoicesFromLabels(labels []string) []Choice {
	choices := make([]Choice, 0, len(labels))
	for _, label := range labels {
		choices = append(choices, Choice{Value: SlugValue(label), Label: label})
	}
	return choices
}

var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SlugValue normalizes a human label into a choice value.
func SlugValue(label string) string {
	flattened, _, err := transform.String(slugTransformer, label)
	if err != nil {
		flattened = label
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(flattened)), " ", "_")
}
