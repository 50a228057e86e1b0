package compose

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldID names a tracked form field.
type FieldID string

// Fields of the post form.
const (
	FieldTitle       FieldID = "title"
	FieldBlog        FieldID = "blog"
	FieldCategory    FieldID = "category"
	FieldDescription FieldID = "description"
)

// DescriptionMinLength is the shortest description accepted.
const DescriptionMinLength = 5

// ErrUnknownField is returned when setting a field the form does not track.
var ErrUnknownField = errors.New("compose: unknown form field")

// Validator reports whether a field value is acceptable.
type Validator func(value string) bool

// Require accepts any value with non-whitespace content.
func Require() Validator {
	return func(v string) bool {
		return strings.TrimSpace(v) != ""
	}
}

// MinLength accepts values whose trimmed form has at least n characters.
func MinLength(n int) Validator {
	return func(v string) bool {
		return utf8.RuneCountInString(strings.TrimSpace(v)) >= n
	}
}

// Field is the current value of a form field and its validity.
type Field struct {
	Value string
	Valid bool
}

// Rule binds validators to a field.
type Rule struct {
	ID         FieldID
	Validators []Validator
}

// Form tracks field values and validity. It is not safe for concurrent use;
// Draft serialises access.
type Form struct {
	order  []FieldID
	rules  map[FieldID][]Validator
	fields map[FieldID]Field
}

// NewForm creates a form with every field empty and validated against its
// rules, so required fields start out invalid.
func NewForm(rules ...Rule) *Form {
	f := &Form{
		rules:  make(map[FieldID][]Validator, len(rules)),
		fields: make(map[FieldID]Field, len(rules)),
	}
	for _, r := range rules {
		f.order = append(f.order, r.ID)
		f.rules[r.ID] = r.Validators
		f.fields[r.ID] = Field{Valid: validate("", r.Validators)}
	}
	return f
}

// NewPostForm creates the form used to compose a post.
func NewPostForm() *Form {
	return NewForm(
		Rule{ID: FieldTitle, Validators: []Validator{Require()}},
		Rule{ID: FieldBlog, Validators: []Validator{Require()}},
		Rule{ID: FieldCategory, Validators: []Validator{Require()}},
		Rule{ID: FieldDescription, Validators: []Validator{MinLength(DescriptionMinLength)}},
	)
}

func validate(v string, validators []Validator) bool {
	for _, fn := range validators {
		if !fn(v) {
			return false
		}
	}
	return true
}

// Set stores value for id and recomputes its validity.
func (f *Form) Set(id FieldID, value string) (Field, error) {
	rules, ok := f.rules[id]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	fld := Field{Value: value, Valid: validate(value, rules)}
	f.fields[id] = fld
	return fld, nil
}

// Field returns the state of id.
func (f *Form) Field(id FieldID) Field {
	return f.fields[id]
}

// Value returns the value of id.
func (f *Form) Value(id FieldID) string {
	return f.fields[id].Value
}

// Valid reports whether every tracked field is valid.
func (f *Form) Valid() bool {
	for _, id := range f.order {
		if !f.fields[id].Valid {
			return false
		}
	}
	return true
}

// Fields returns a copy of all fields.
func (f *Form) Fields() map[FieldID]Field {
	out := make(map[FieldID]Field, len(f.fields))
	for id, fld := range f.fields {
		out[id] = fld
	}
	return out
}

// IDs returns the tracked field ids in declaration order.
func (f *Form) IDs() []FieldID {
	return append([]FieldID(nil), f.order...)
}

// WordCount counts the whitespace-delimited words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
