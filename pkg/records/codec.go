package records

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

const (
	// defaultName is what a record without a name field value is called,
	// unless the object autoincrements names server-side.
	defaultName = "Unnamed Object"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05.000000-07:00"
)

type binding struct {
	index int
	field *schema.Field
}

var modelType = reflect.TypeOf(Model{})

// bindModel pairs the definition's fields with the struct's field indices
// and locates the embedded Model carrying the system fields.
func bindModel(def *schema.Definition, t reflect.Type) (map[string]binding, int, error) {
	bindings := make(map[string]binding)
	modelIdx := -1
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type == modelType {
			modelIdx = i
			continue
		}
		tag, ok := sf.Tag.Lookup(schema.TagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(strings.Split(tag, ",")[0]))
		field := def.Field(key)
		if field == nil {
			return nil, -1, fmt.Errorf("records: struct field %s has no field %q in definition %q", sf.Name, key, def.Key)
		}
		bindings[key] = binding{index: i, field: field}
	}
	return bindings, modelIdx, nil
}

// EncodeModel converts a tagged model struct into a writable record
// payload, validating values against the definition. Zero values of
// optional kinds (dropdown, lookup, regexp, date, datetime, multiselect)
// encode as null; text, checkbox and numeric zero values are sent as-is.
func EncodeModel(def *schema.Definition, model any) (*RecordPayload, error) {
	v := reflect.ValueOf(model)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("records: nil model")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("records: model must be a struct, got %s", v.Kind())
	}

	bindings, modelIdx, err := bindModel(def, v.Type())
	if err != nil {
		return nil, err
	}

	payload := &RecordPayload{Fields: make(map[string]any, len(bindings))}
	for _, b := range bindings {
		if err := encodeValue(b.field, v.Field(b.index), payload.Fields); err != nil {
			return nil, err
		}
	}

	var name string
	if modelIdx >= 0 {
		m := v.Field(modelIdx).Interface().(Model)
		payload.ExternalID = m.ExternalID
		name = m.Name
	}
	switch {
	case name != "":
		payload.Name = &name
	case def.Name.AutoincrementEnabled:
		payload.Name = nil
	default:
		fallback := defaultName
		payload.Name = &fallback
	}
	return payload, nil
}

func encodeValue(field *schema.Field, fv reflect.Value, out map[string]any) error {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			out[field.Key] = nil
			if field.Type == schema.TypeDateTime {
				out[field.Key+"_time"] = nil
			}
			return nil
		}
		fv = fv.Elem()
	}

	switch field.Type {
	case schema.TypeText, schema.TypeTextarea:
		out[field.Key] = fv.String()
	case schema.TypeRegexp, schema.TypeDropdown, schema.TypeLookup:
		s := fv.String()
		if s == "" {
			out[field.Key] = nil
			return nil
		}
		if err := field.Validate(s); err != nil {
			return err
		}
		out[field.Key] = s
	case schema.TypeCheckbox:
		out[field.Key] = fv.Bool()
	case schema.TypeInteger:
		out[field.Key] = fv.Int()
	case schema.TypeDecimal:
		out[field.Key] = fv.Float()
	case schema.TypeDate:
		tm := fv.Interface().(time.Time)
		if tm.IsZero() {
			out[field.Key] = nil
			return nil
		}
		out[field.Key] = tm.Format(dateLayout)
	case schema.TypeDateTime:
		tm := fv.Interface().(time.Time)
		if tm.IsZero() {
			out[field.Key] = nil
			out[field.Key+"_time"] = nil
			return nil
		}
		out[field.Key] = tm.Format(dateLayout)
		out[field.Key+"_time"] = tm.Format(timeLayout)
	case schema.TypeMultiselect:
		if fv.IsNil() {
			out[field.Key] = nil
			return nil
		}
		items := make([]string, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			items[i] = fv.Index(i).String()
		}
		if err := field.Validate(items); err != nil {
			return err
		}
		out[field.Key] = items
	default:
		return fmt.Errorf("records: field %q has unsupported type %q", field.Key, field.Type)
	}
	return nil
}

// DecodeModel populates a tagged model struct from a wire record. Missing
// fields are skipped; explicit nulls reset the struct field to its zero
// value.
func DecodeModel(def *schema.Definition, rec *Record, out any) error {
	if rec == nil {
		return fmt.Errorf("records: nil record")
	}
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("records: decode target must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("records: decode target must point to a struct, got %s", v.Kind())
	}

	bindings, modelIdx, err := bindModel(def, v.Type())
	if err != nil {
		return err
	}

	if modelIdx >= 0 {
		v.Field(modelIdx).Set(reflect.ValueOf(Model{
			ID:              rec.ID,
			Name:            rec.Name,
			ExternalID:      rec.ExternalID,
			CreatedAt:       rec.CreatedAt,
			UpdatedAt:       rec.UpdatedAt,
			CreatedByUserID: rec.CreatedByUserID,
			UpdatedByUserID: rec.UpdatedByUserID,
		}))
	}

	for key, b := range bindings {
		raw, ok := rec.Fields[key]
		if !ok {
			continue
		}
		fv := v.Field(b.index)
		if raw == nil {
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		if err := decodeValue(b.field, raw, rec.Fields, fv); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(field *schema.Field, raw any, all map[string]any, fv reflect.Value) error {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}

	switch field.Type {
	case schema.TypeText, schema.TypeTextarea, schema.TypeRegexp, schema.TypeDropdown, schema.TypeLookup:
		s, ok := raw.(string)
		if !ok {
			return decodeTypeError(field, raw)
		}
		fv.SetString(s)
	case schema.TypeCheckbox:
		b, ok := raw.(bool)
		if !ok {
			return decodeTypeError(field, raw)
		}
		fv.SetBool(b)
	case schema.TypeInteger:
		switch n := raw.(type) {
		case float64:
			fv.SetInt(int64(n))
		case int:
			fv.SetInt(int64(n))
		case int64:
			fv.SetInt(n)
		default:
			return decodeTypeError(field, raw)
		}
	case schema.TypeDecimal:
		switch n := raw.(type) {
		case float64:
			fv.SetFloat(n)
		case int:
			fv.SetFloat(float64(n))
		case int64:
			fv.SetFloat(float64(n))
		default:
			return decodeTypeError(field, raw)
		}
	case schema.TypeDate:
		s, ok := raw.(string)
		if !ok {
			return decodeTypeError(field, raw)
		}
		// Tolerate timestamps; only the date part is meaningful.
		s = strings.SplitN(s, "T", 2)[0]
		tm, err := time.Parse(dateLayout, s)
		if err != nil {
			return fmt.Errorf("records: field %q: %w", field.Key, err)
		}
		fv.Set(reflect.ValueOf(tm))
	case schema.TypeDateTime:
		s, ok := raw.(string)
		if !ok {
			return decodeTypeError(field, raw)
		}
		tm, err := combineDateTime(s, all[field.Key+"_time"])
		if err != nil {
			return fmt.Errorf("records: field %q: %w", field.Key, err)
		}
		fv.Set(reflect.ValueOf(tm))
	case schema.TypeMultiselect:
		items, err := toStrings(raw)
		if err != nil {
			return fmt.Errorf("records: field %q: %w", field.Key, err)
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("records: field %q has unsupported type %q", field.Key, field.Type)
	}
	return nil
}

// combineDateTime reassembles a timestamp from the date field and its
// "<key>_time" companion.
func combineDateTime(datePart string, timeRaw any) (time.Time, error) {
	datePart = strings.SplitN(datePart, "T", 2)[0]
	timePart, _ := timeRaw.(string)
	if timePart == "" {
		return time.Parse(dateLayout, datePart)
	}
	stamp := datePart + "T" + timePart
	tm, err := time.Parse(time.RFC3339Nano, stamp)
	if err == nil {
		return tm, nil
	}
	// Companion values without an offset are taken as UTC.
	return time.Parse("2006-01-02T15:04:05", stamp)
}

func toStrings(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("want string list, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want string list, got %T", raw)
	}
}

func decodeTypeError(field *schema.Field, raw any) error {
	return fmt.Errorf("records: field %q: unexpected wire type %T", field.Key, raw)
}
