// Package variant models the configurable fields of a product and the
// selections shoppers make against them.
package variant

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/common/validate"
)

type Kind string

const (
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindText     Kind = "text"
)

const maxTextLength = 500

type Field struct {
	Kind     Kind     `json:"type"     validate:"required,oneof=select checkbox text"`
	Label    string   `json:"label"    validate:"required"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}

type Schema []Field

func ParseSchema(raw []byte) (Schema, error) {
	schema := Schema{}
	if len(raw) == 0 {
		return schema, nil
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed unmarshaling variant schema with error=%w", err)
	}
	for _, field := range schema {
		if err := validate.New().Struct(field); err != nil {
			return nil, fmt.Errorf("invalid variant field=%s with error=%w", field.Label, err)
		}
	}
	return schema, nil
}

func (s Schema) field(label string) (Field, bool) {
	for _, f := range s {
		if f.Label == label {
			return f, true
		}
	}
	return Field{}, false
}

// Value holds the chosen value(s) of one field. It decodes from either a JSON
// string or a JSON array of strings.
type Value []string

func (v *Value) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = Value{single}
		return nil
	}
	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return fmt.Errorf("%w: selection value must be a string or a list of strings", commonErrors.ErrValidation)
	}
	*v = multi
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

// Selection maps a field label to the chosen value(s).
type Selection map[string]Value

// Normalize drops empty values and labels, removes duplicate values and sorts
// the values of every field.
func (s Selection) Normalize() Selection {
	normalized := Selection{}
	for label, values := range s {
		kept := make(Value, 0, len(values))
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == 0 {
			continue
		}
		sort.Strings(kept)
		normalized[label] = slices.Compact(kept)
	}
	return normalized
}

// Key encodes the selection as a deterministic string that does not depend on
// the order fields or checkbox values were submitted in.
func (s Selection) Key() string {
	normalized := s.Normalize()
	labels := make([]string, 0, len(normalized))
	for label := range normalized {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	pairs := make([][2]interface{}, 0, len(labels))
	for _, label := range labels {
		pairs = append(pairs, [2]interface{}{label, []string(normalized[label])})
	}
	encoded, _ := json.Marshal(pairs)
	return string(encoded)
}

func (s Selection) Bytes() []byte {
	encoded, _ := json.Marshal(s.Normalize())
	return encoded
}

func ParseSelection(raw []byte) (Selection, error) {
	selection := Selection{}
	if len(raw) == 0 {
		return selection, nil
	}
	if err := json.Unmarshal(raw, &selection); err != nil {
		return nil, fmt.Errorf("failed unmarshaling selection with error=%w", err)
	}
	return selection, nil
}

// Validate checks the selection against the schema and returns its normalized
// form. Every failure wraps ErrValidation.
func Validate(schema Schema, selection Selection) (Selection, error) {
	normalized := selection.Normalize()

	for label := range normalized {
		if _, ok := schema.field(label); !ok {
			return nil, fmt.Errorf("%w: unknown field %q", commonErrors.ErrValidation, label)
		}
	}

	for _, field := range schema {
		values, chosen := normalized[field.Label]
		if !chosen {
			if field.Required {
				return nil, fmt.Errorf("%w: %s is required", commonErrors.ErrValidation, field.Label)
			}
			continue
		}

		switch field.Kind {
		case KindSelect:
			if len(values) != 1 {
				return nil, fmt.Errorf("%w: %s accepts a single option", commonErrors.ErrValidation, field.Label)
			}
			if !slices.Contains(field.Options, values[0]) {
				return nil, fmt.Errorf("%w: %q is not an option of %s", commonErrors.ErrValidation, values[0], field.Label)
			}
		case KindCheckbox:
			for _, v := range values {
				if len(field.Options) > 0 && !slices.Contains(field.Options, v) {
					return nil, fmt.Errorf("%w: %q is not an option of %s", commonErrors.ErrValidation, v, field.Label)
				}
			}
		case KindText:
			if len(values) != 1 {
				return nil, fmt.Errorf("%w: %s accepts a single text", commonErrors.ErrValidation, field.Label)
			}
			if err := validate.New().Var(values[0], fmt.Sprintf("max=%d", maxTextLength)); err != nil {
				return nil, fmt.Errorf("%w: %s is too long", commonErrors.ErrValidation, field.Label)
			}
		}
	}

	return normalized, nil
}
