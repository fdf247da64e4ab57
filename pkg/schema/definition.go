package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TagName is the struct tag consulted by FromModel.
const TagName = "zendesk"

// ObjectKeyer lets a model override the custom object key derived from its
// type name.
type ObjectKeyer interface {
	CustomObjectKey() string
}

// NameConfigurer lets a model configure the reserved name field
// (uniqueness, autoincrement).
type NameConfigurer interface {
	NameOptions() NameOptions
}

// Definition describes a custom object: its identity plus the custom fields
// attached to it.
type Definition struct {
	Key             string      `yaml:"key"`
	Title           string      `yaml:"title"`
	TitlePluralized string      `yaml:"title_pluralized"`
	Description     string      `yaml:"description"`
	Name            NameOptions `yaml:"name"`
	Fields          []Field     `yaml:"fields"`

	fieldsByKey map[string]*Field
}

// Field returns the declared field for key, or nil.
func (d *Definition) Field(key string) *Field {
	if d.fieldsByKey == nil {
		d.index()
	}
	return d.fieldsByKey[key]
}

func (d *Definition) index() {
	d.fieldsByKey = make(map[string]*Field, len(d.Fields))
	for i := range d.Fields {
		d.fieldsByKey[d.Fields[i].Key] = &d.Fields[i]
	}
}

// finish fills derived defaults and compiles patterns.
func (d *Definition) finish() error {
	d.Key = strings.ToLower(strings.TrimSpace(d.Key))
	if d.Key == "" {
		return fmt.Errorf("%w: object key is required", ErrBadDefinition)
	}
	if d.Title == "" {
		d.Title = strings.ToUpper(d.Key[:1]) + d.Key[1:]
	}
	if d.TitlePluralized == "" {
		d.TitlePluralized = d.Title + "s"
	}
	if d.Description == "" {
		d.Description = "Custom Object for " + d.Title
	}
	seen := make(map[string]bool, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		f.Key = strings.ToLower(strings.TrimSpace(f.Key))
		if f.Key == "" {
			return fmt.Errorf("%w: field %d of %q has no key", ErrBadDefinition, i, d.Key)
		}
		if f.Key == "name" {
			// The name field is reserved; its behaviour is configured via
			// NameOptions, never declared as a custom field.
			return fmt.Errorf("%w: %q declares a custom field named \"name\"", ErrBadDefinition, d.Key)
		}
		if seen[f.Key] {
			return fmt.Errorf("%w: duplicate field key %q on %q", ErrBadDefinition, f.Key, d.Key)
		}
		seen[f.Key] = true
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unsupported type %q", ErrBadDefinition, f.Key, f.Type)
		}
		if f.Title == "" {
			f.Title = strings.ToUpper(f.Key[:1]) + f.Key[1:]
		}
		if f.Type == TypeLookup && f.Target == "" {
			return fmt.Errorf("%w: lookup field %q needs a target", ErrBadDefinition, f.Key)
		}
		if err := f.compile(); err != nil {
			return err
		}
	}
	d.index()
	return nil
}

// WireFields expands the definition into the fields that exist remotely.
// Datetime fields become a date field plus a "<key>_time" text companion.
func (d *Definition) WireFields() []Field {
	out := make([]Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Type == TypeDateTime {
			out = append(out,
				Field{Key: f.Key, Title: f.Title, Type: TypeDate},
				Field{Key: f.Key + "_time", Title: f.Title + " time", Type: TypeText},
			)
			continue
		}
		out = append(out, f)
	}
	return out
}

var timeType = reflect.TypeOf(time.Time{})

// FromModel derives a Definition from a tagged struct. The object key
// defaults to the lowercased type name; models can override it by
// implementing ObjectKeyer and tune the name field via NameConfigurer.
// Embedded structs without a tag (the records.Model carrier) are skipped.
func FromModel(model any) (*Definition, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrBadDefinition)
	}
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: model must be a struct, got %s", ErrBadDefinition, t.Kind())
	}

	def := &Definition{Key: strings.ToLower(t.Name()), Title: t.Name()}
	if keyer, ok := model.(ObjectKeyer); ok {
		def.Key = keyer.CustomObjectKey()
		def.Title = t.Name()
	}
	if nc, ok := model.(NameConfigurer); ok {
		def.Name = nc.NameOptions()
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, hasTag := sf.Tag.Lookup(TagName)
		if sf.Anonymous && !hasTag {
			continue
		}
		if !hasTag || tag == "-" || !sf.IsExported() {
			continue
		}
		field, err := parseFieldTag(sf, tag)
		if err != nil {
			return nil, err
		}
		def.Fields = append(def.Fields, *field)
	}

	if err := def.finish(); err != nil {
		return nil, err
	}
	return def, nil
}

func parseFieldTag(sf reflect.StructField, tag string) (*Field, error) {
	parts := strings.Split(tag, ",")
	field := &Field{Key: strings.TrimSpace(parts[0]), Title: sf.Name}
	if field.Key == "" {
		return nil, fmt.Errorf("%w: field %s has an empty key", ErrBadDefinition, sf.Name)
	}

	var labels []string
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "type="):
			field.Type = FieldType(strings.TrimPrefix(part, "type="))
		case strings.HasPrefix(part, "choices="):
			labels = strings.Split(strings.TrimPrefix(part, "choices="), "|")
		case strings.HasPrefix(part, "pattern="):
			field.Pattern = strings.TrimPrefix(part, "pattern=")
		case strings.HasPrefix(part, "target="):
			field.Target = strings.TrimPrefix(part, "target=")
		case strings.HasPrefix(part, "title="):
			field.Title = strings.TrimPrefix(part, "title=")
		case part == "":
		default:
			return nil, fmt.Errorf("%w: field %s has unknown tag option %q", ErrBadDefinition, sf.Name, part)
		}
	}

	if field.Type == "" {
		inferred, err := inferType(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrBadDefinition, sf.Name, err)
		}
		field.Type = inferred
	}
	if len(labels) > 0 {
		field.Choices = ChoicesFromLabels(labels)
	}
	if err := checkGoType(field.Type, sf.Type); err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrBadDefinition, sf.Name, err)
	}
	return field, nil
}

func inferType(t reflect.Type) (FieldType, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return TypeDate, nil
	}
	switch t.Kind() {
	case reflect.String:
		return TypeText, nil
	case reflect.Bool:
		return TypeCheckbox, nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return TypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return TypeDecimal, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return TypeMultiselect, nil
		}
	}
	return "", fmt.Errorf("cannot infer field type for %s", t)
}

func checkGoType(ft FieldType, t reflect.Type) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ok := false
	switch ft {
	case TypeText, TypeTextarea, TypeRegexp, TypeDropdown, TypeLookup:
		ok = t.Kind() == reflect.String
	case TypeCheckbox:
		ok = t.Kind() == reflect.Bool
	case TypeInteger:
		ok = t.Kind() == reflect.Int || t.Kind() == reflect.Int32 || t.Kind() == reflect.Int64
	case TypeDecimal:
		ok = t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case TypeDate, TypeDateTime:
		ok = t == timeType
	case TypeMultiselect:
		ok = t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String
	}
	if !ok {
		return fmt.Errorf("go type %s does not fit field type %q", t, ft)
	}
	return nil
}
