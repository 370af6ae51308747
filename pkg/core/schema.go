package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// PropertyType is the JSON-Schema type of a configuration property.
type PropertyType string

// PropertyType constants.
const (
	PropertyString  PropertyType = "string"
	PropertyNumber  PropertyType = "number"
	PropertyBoolean PropertyType = "boolean"
)

// Property describes a single configuration field.
type Property struct {
	Type    PropertyType `json:"type" yaml:"type"`
	Title   string       `json:"title,omitempty" yaml:"title,omitempty"`
	Default any          `json:"default,omitempty" yaml:"default,omitempty"`
}

// ConfigurationSchema is the JSON-Schema-like shape a runner declares for its
// settings. The host renders a form from it and validates stored
// configuration against it before constructing the runner.
type ConfigurationSchema struct {
	Type       string              `json:"type" yaml:"type"`
	Properties map[string]Property `json:"properties" yaml:"properties"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
	// Order is the field order for UI rendering.
	Order []string `json:"order,omitempty" yaml:"order,omitempty"`
	// Secret lists fields that must be masked when displayed.
	Secret []string `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// NewConfigurationSchema returns an empty object schema.
func NewConfigurationSchema() *ConfigurationSchema {
	return &ConfigurationSchema{
		Type:       "object",
		Properties: make(map[string]Property),
	}
}

// Keys returns property names in rendering order: the declared Order first,
// then any remaining properties sorted by name.
func (s *ConfigurationSchema) Keys() []string {
	seen := make(map[string]bool, len(s.Properties))
	keys := make([]string, 0, len(s.Properties))
	for _, k := range s.Order {
		if _, ok := s.Properties[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range s.Properties {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// IsSecret reports whether the named field is secret.
func (s *ConfigurationSchema) IsSecret(name string) bool {
	for _, k := range s.Secret {
		if k == name {
			return true
		}
	}
	return false
}

// WithDefaults returns a copy of cfg with schema defaults filled in for
// missing keys. cfg itself is not modified.
func (s *ConfigurationSchema) WithDefaults(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg)+len(s.Properties))
	for k, v := range cfg {
		out[k] = v
	}
	for k, p := range s.Properties {
		if _, ok := out[k]; !ok && p.Default != nil {
			out[k] = p.Default
		}
	}
	return out
}

// Validate checks cfg against the schema. Every problem is reported;
// the returned error joins one FieldError per offending field.
// Keys not declared in the schema are ignored.
func (s *ConfigurationSchema) Validate(cfg map[string]any) error {
	var errs []error
	for _, name := range s.Required {
		v, ok := cfg[name]
		if !ok || v == nil {
			errs = append(errs, &FieldError{Field: name, Reason: "is required"})
			continue
		}
		if str, isStr := v.(string); isStr && str == "" {
			errs = append(errs, &FieldError{Field: name, Reason: "must not be empty"})
		}
	}
	for _, name := range s.Keys() {
		v, ok := cfg[name]
		if !ok || v == nil {
			continue
		}
		if err := checkPropertyType(s.Properties[name].Type, v); err != nil {
			errs = append(errs, &FieldError{Field: name, Reason: err.Error()})
		}
	}
	return errors.Join(errs...)
}

// FieldError describes an invalid configuration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("configuration field %q %s", e.Field, e.Reason)
}

func checkPropertyType(t PropertyType, v any) error {
	switch t {
	case PropertyString:
		// Scalars are accepted and decoded weakly by runners, so a port
		// written as a YAML integer is still valid.
		switch v.(type) {
		case string, int, int32, int64, uint, uint32, uint64, float32, float64, bool:
			return nil
		}
		return fmt.Errorf("must be a string, got %T", v)
	case PropertyNumber:
		switch x := v.(type) {
		case int, int32, int64, uint, uint32, uint64, float32, float64:
			return nil
		case string:
			if _, err := strconv.ParseFloat(x, 64); err == nil {
				return nil
			}
		}
		return fmt.Errorf("must be a number, got %v", v)
	case PropertyBoolean:
		switch x := v.(type) {
		case bool:
			return nil
		case string:
			if _, err := strconv.ParseBool(x); err == nil {
				return nil
			}
		}
		return fmt.Errorf("must be a boolean, got %v", v)
	}
	return nil
}
