package resource

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/store"
)

// FieldType is the stored type of a document field.
type FieldType int

const (
	TypeOther FieldType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeDate
	TypeObject
)

// Field describes one (possibly nested) field of a resource.
type Field struct {
	Path  string
	Type  FieldType
	Array bool
}

// Schema is the field layout of a resource type, derived from its JSON
// tags. Nested struct fields are addressed with dotted paths.
type Schema struct {
	fields map[string]Field
	top    map[string]bool
}

var timeType = reflect.TypeOf(time.Time{})

// SchemaOf reflects over T, which must be a struct type.
func SchemaOf[T any]() *Schema {
	s := &Schema{fields: map[string]Field{}, top: map[string]bool{}}
	t := reflect.TypeOf((*T)(nil)).Elem()
	s.walk(t, "", false)
	for path := range s.fields {
		s.top[strings.SplitN(path, ".", 2)[0]] = true
	}
	return s
}

func (s *Schema) walk(t reflect.Type, prefix string, array bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if sf.Anonymous && name == "" {
			s.walk(sf.Type, prefix, array)
			continue
		}
		if name == "" {
			name = sf.Name
		}
		s.add(prefix+name, sf.Type, array)
	}
}

func (s *Schema) add(path string, t reflect.Type, array bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != timeType && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() != reflect.Uint8 {
		s.add(path, t.Elem(), true)
		return
	}

	f := Field{Path: path, Array: array, Type: fieldType(t)}
	s.fields[path] = f
	if f.Type == TypeObject && t.Kind() == reflect.Struct {
		s.walk(t, path+".", array)
	}
}

func fieldType(t reflect.Type) FieldType {
	if t == timeType {
		return TypeDate
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Struct, reflect.Map:
		return TypeObject
	}
	return TypeOther
}

// Field looks up a field by dotted path.
func (s *Schema) Field(path string) (Field, bool) {
	f, ok := s.fields[path]
	return f, ok
}

// HasTopLevel reports whether name is a top-level field.
func (s *Schema) HasTopLevel(name string) bool {
	return s.top[name]
}

// Cast implements query.Caster. Array fields cast to their element type,
// so ?startDates[gte]=2021-01-01 compares dates.
func (s *Schema) Cast(field, raw string) (any, bool) {
	f, ok := s.fields[field]
	if !ok {
		return nil, false
	}
	switch f.Type {
	case TypeString:
		return raw, true
	case TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		return n, err == nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	case TypeDate:
		t, err := ParseDate(raw)
		return t, err == nil
	}
	return nil, false
}

var _ query.Caster = (*Schema)(nil)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
}

// ParseDate accepts RFC 3339 timestamps and their shorter date-only
// prefixes. Values without a zone are UTC.
func ParseDate(raw string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// normalize replaces date strings in doc with time.Time values at every
// date path, so stores compare them as dates.
func (s *Schema) normalize(doc store.Document) {
	for path, f := range s.fields {
		if f.Type == TypeDate {
			convertAt(map[string]any(doc), strings.Split(path, "."))
		}
	}
}

func convertAt(v any, segments []string) any {
	switch x := v.(type) {
	case []any:
		for i := range x {
			x[i] = convertAt(x[i], segments)
		}
		return x
	case map[string]any:
		if len(segments) == 0 {
			return x
		}
		child, ok := x[segments[0]]
		if !ok {
			return x
		}
		x[segments[0]] = convertAt(child, segments[1:])
		return x
	case string:
		if len(segments) == 0 {
			if t, err := ParseDate(x); err == nil {
				return t
			}
		}
	}
	return v
}
