// Package schema declares the ordered shape of the questionnaire.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the semantic type of a field; it selects the validation rule.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindPhone    Kind = "phone"
	KindEmail    Kind = "email"
	KindFreeText Kind = "freetext"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindPhone, KindEmail, KindFreeText:
		return true
	default:
		return false
	}
}

// FieldDefinition describes one questionnaire field.
//
// Min/Max bound number fields. MinLen/MaxLen bound text length in runes, or the
// digit count for phone fields. Zero values fall back to per-kind defaults.
type FieldDefinition struct {
	Name     string `json:"name" yaml:"name"`
	Order    int    `json:"order" yaml:"order"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Required bool   `json:"required" yaml:"required"`
	Label    string `json:"label,omitempty" yaml:"label"`
	Prompt   string `json:"prompt,omitempty" yaml:"prompt"`
	Min      *int   `json:"min,omitempty" yaml:"min"`
	Max      *int   `json:"max,omitempty" yaml:"max"`
	MinLen   int    `json:"min_len,omitempty" yaml:"min_len"`
	MaxLen   int    `json:"max_len,omitempty" yaml:"max_len"`
}

var ErrEmptySchema = errors.New("schema has no fields")

// Schema is an immutable, ordered set of field definitions.
type Schema struct {
	fields   []FieldDefinition
	byName   map[string]int
	required int
}

func New(fields ...FieldDefinition) (*Schema, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}
	sorted := make([]FieldDefinition, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	s := &Schema{
		fields: sorted,
		byName: make(map[string]int, len(sorted)),
	}
	for i, f := range sorted {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("field at order %d has empty name", f.Order)
		}
		if name != f.Name {
			return nil, fmt.Errorf("field %q has surrounding whitespace", f.Name)
		}
		if !f.Kind.Valid() {
			return nil, fmt.Errorf("field %q has unknown kind %q", f.Name, f.Kind)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", f.Name)
		}
		if i > 0 && sorted[i-1].Order == f.Order {
			return nil, fmt.Errorf("fields %q and %q share order %d", sorted[i-1].Name, f.Name, f.Order)
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return nil, fmt.Errorf("field %q has min > max", f.Name)
		}
		if f.MaxLen > 0 && f.MinLen > f.MaxLen {
			return nil, fmt.Errorf("field %q has min_len > max_len", f.Name)
		}
		s.byName[f.Name] = i
		if f.Required {
			s.required++
		}
	}
	return s, nil
}

// Fields returns the ordered definitions. The slice is a copy.
func (s *Schema) Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(s.fields))
	copy(out, s.fields)
	return out
}

// Next returns the field following the one declared with the given order.
func (s *Schema) Next(order int) (FieldDefinition, bool) {
	for _, f := range s.fields {
		if f.Order > order {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// At returns the field at a zero-based cursor position.
func (s *Schema) At(cursor int) (FieldDefinition, bool) {
	if cursor < 0 || cursor >= len(s.fields) {
		return FieldDefinition{}, false
	}
	return s.fields[cursor], true
}

// Index returns the cursor position of a named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

func (s *Schema) Len() int { return len(s.fields) }

func (s *Schema) RequiredCount() int { return s.required }
