package types

import (
	"fmt"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// JSONSchema represents a JSON Schema definition used to describe tool
// parameters.
type JSONSchema struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Type SchemaType `json:"type,omitempty"`

	// Object properties
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`

	// Array items
	Items *JSONSchema `json:"items,omitempty"`

	// Enum values
	Enum []any `json:"enum,omitempty"`
}

// ObjectSchema builds an object schema from property definitions.
func ObjectSchema(properties map[string]*JSONSchema, required ...string) *JSONSchema {
	return &JSONSchema{
		Type:       SchemaTypeObject,
		Properties: properties,
		Required:   required,
	}
}

// StringSchema builds a string schema with a description.
func StringSchema(description string) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeString, Description: description}
}

// IntegerSchema builds an integer schema with a description.
func IntegerSchema(description string) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeInteger, Description: description}
}

// ObjectParamSchema builds a free-form object schema with a description.
func ObjectParamSchema(description string) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeObject, Description: description}
}

// Validate checks a parameter value against the schema. It validates the
// declared type, required object properties, and enum membership. Unknown
// properties are allowed.
func (s *JSONSchema) Validate(value any) error {
	if s == nil {
		return nil
	}

	if err := s.validateType(value); err != nil {
		return err
	}

	if len(s.Enum) > 0 {
		found := false
		for _, allowed := range s.Enum {
			if allowed == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %v is not one of the allowed values", value)
		}
	}

	if s.Type == SchemaTypeObject && s.Properties != nil {
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		for _, name := range s.Required {
			if _, present := obj[name]; !present {
				return fmt.Errorf("missing required parameter %q", name)
			}
		}
		for name, propSchema := range s.Properties {
			propValue, present := obj[name]
			if !present {
				continue
			}
			if err := propSchema.Validate(propValue); err != nil {
				return fmt.Errorf("parameter %q: %w", name, err)
			}
		}
	}

	if s.Type == SchemaTypeArray && s.Items != nil {
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		for i, item := range items {
			if err := s.Items.Validate(item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}

	return nil
}

func (s *JSONSchema) validateType(value any) error {
	if s.Type == "" || value == nil {
		return nil
	}

	switch s.Type {
	case SchemaTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case SchemaTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case SchemaTypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case SchemaTypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			// JSON decodes all numbers to float64.
			if v != float64(int64(v)) {
				return fmt.Errorf("expected integer, got %v", v)
			}
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case SchemaTypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case SchemaTypeArray:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	}
	return nil
}
