package binschema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Schema is a parsed record layout
type Schema struct {
	Meta  Meta            `yaml:"meta"`
	Seq   []Field         `yaml:"seq"`
	Types map[string]Type `yaml:"types"`
	Doc   string          `yaml:"doc"`
}

// Meta contains metadata about the layout
type Meta struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	BitEndian string `yaml:"bit-endian"`
}

// Type defines a nested record type
type Type struct {
	Seq []Field `yaml:"seq"`
	Doc string  `yaml:"doc"`
}

// Field is one descriptor of a record's field sequence
type Field struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Align       int            `yaml:"align,omitempty"`
	IfExpr      string         `yaml:"if,omitempty"`
	Repeat      string         `yaml:"repeat,omitempty"`
	RepeatExpr  string         `yaml:"repeat-expr,omitempty"`
	RepeatField string         `yaml:"repeat-field,omitempty"`
	Derive      string         `yaml:"derive,omitempty"`
	Valid       *ValidationDef `yaml:"valid,omitempty"`
	Doc         string         `yaml:"doc,omitempty"`
}

// ValidationDef defines validation rules for a field
type ValidationDef struct {
	// Simple validation (direct value comparison)
	Value any `yaml:"-"`

	Expr    string `yaml:"expr,omitempty"`
	Min     any    `yaml:"min,omitempty"`
	Max     any    `yaml:"max,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// UnmarshalYAML handles both simple values (valid: 3) and rule objects (valid: {min: 3})
func (v *ValidationDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var intVal int64
		var floatVal float64
		var boolVal bool
		var strVal string

		if err := value.Decode(&intVal); err == nil {
			v.Value = intVal
			return nil
		}
		if err := value.Decode(&floatVal); err == nil {
			v.Value = floatVal
			return nil
		}
		if err := value.Decode(&boolVal); err == nil {
			v.Value = boolVal
			return nil
		}
		if err := value.Decode(&strVal); err == nil {
			v.Value = strVal
			return nil
		}
		return fmt.Errorf("unsupported scalar validation value '%s'", value.Value)
	}

	type plain ValidationDef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*v = ValidationDef(p)
	return nil
}

// NewSchemaFromYAML parses a layout document
func NewSchemaFromYAML(data []byte) (*Schema, error) {
	schema := &Schema{}
	if err := yaml.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	if schema.Meta.ID == "" {
		return nil, fmt.Errorf("schema has no meta.id")
	}
	switch schema.Meta.BitEndian {
	case "", "le":
	default:
		return nil, fmt.Errorf("schema '%s': unsupported bit-endian '%s'", schema.Meta.ID, schema.Meta.BitEndian)
	}
	return schema, nil
}
