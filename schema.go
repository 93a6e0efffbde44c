package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field types. Booleans render as YES/NO checkboxes in the order document.
const (
	FieldText    = "text"
	FieldBoolean = "boolean"
)

// FieldSpec declares one fillable field of an order-specification template.
type FieldSpec struct {
	Key                string   `yaml:"key"`
	Description        string   `yaml:"description"`
	Type               string   `yaml:"type"`
	Section            string   `yaml:"section"`
	Subsection         string   `yaml:"subsection"`
	PositiveIndicators []string `yaml:"positive_indicators"`
	NegativeIndicators []string `yaml:"negative_indicators"`
	Synonyms           []string `yaml:"synonyms"`
}

// IsBoolean reports whether the field is a YES/NO checkbox.
func (f FieldSpec) IsBoolean() bool {
	return f.Type == FieldBoolean
}

// DefaultValue is the value a field takes when extraction yields nothing.
func (f FieldSpec) DefaultValue() string {
	if f.IsBoolean() {
		return "NO"
	}
	return ""
}

// SingleSelectGroup declares a set of boolean fields of which at most one may
// be YES. Priority, when present, decides which YES survives; otherwise the
// first in declared order wins.
type SingleSelectGroup struct {
	Name     string   `yaml:"name"`
	Fields   []string `yaml:"fields"`
	Priority []string `yaml:"priority"`
}

// CompositeSet declares a multi-indicator feature: when the aggregate field
// is YES, or two or more members are, every member is forced to YES.
type CompositeSet struct {
	Name      string   `yaml:"name"`
	Aggregate string   `yaml:"aggregate"`
	Members   []string `yaml:"members"`
}

// UnitFields names the text fields that carry electrical/pneumatic units.
type UnitFields struct {
	Voltage   string `yaml:"voltage"`
	Frequency string `yaml:"frequency"`
	Pressure  string `yaml:"pressure"`
}

// RateField declares a numeric rate/speed field and the unit suffix to apply
// when the extracted value is bare digits. ContextUnits pick a more specific
// unit when the keyword appears in another field key.
type RateField struct {
	Field        string `yaml:"field"`
	DefaultUnit  string `yaml:"default_unit"`
	ContextUnits []struct {
		Keyword string `yaml:"keyword"`
		Unit    string `yaml:"unit"`
	} `yaml:"context_units"`
}

// ImpliedDefault declares a parent capability whose YES requires one of its
// children to be YES; Preferred is chosen when none are.
type ImpliedDefault struct {
	Parent    string   `yaml:"parent"`
	Children  []string `yaml:"children"`
	Preferred string   `yaml:"preferred"`
}

// Interlock declares a safety/compliance trigger field that forces its
// required set to YES and its incompatible set to NO.
type Interlock struct {
	Trigger      string   `yaml:"trigger"`
	Required     []string `yaml:"required"`
	Incompatible []string `yaml:"incompatible"`
}

// DependencyRule declares that a driver field's value implies a value for a
// dependent field. Patterns are substring matches against the driver value.
type DependencyRule struct {
	Field     string              `yaml:"field"`
	DependsOn string              `yaml:"depends_on"`
	Patterns  []DependencyPattern `yaml:"patterns"`
}

type DependencyPattern struct {
	Contains []string `yaml:"contains"`
	Suggest  string   `yaml:"suggest"`
}

// CoRequisite declares that when Field is populated, Requires should be too.
type CoRequisite struct {
	Field    string `yaml:"field"`
	Requires string `yaml:"requires"`
	Reason   string `yaml:"reason"`
}

// CategoryRule maps section-name keywords onto an extraction category.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// RuleSet holds every declared correction/validation table for one template
// variant. All tables are configuration, not code.
type RuleSet struct {
	Categories         []CategoryRule      `yaml:"categories"`
	SingleSelectGroups []SingleSelectGroup `yaml:"single_select_groups"`
	CompositeSets      []CompositeSet      `yaml:"composite_sets"`
	UnitFields         UnitFields          `yaml:"unit_fields"`
	RateFields         []RateField         `yaml:"rate_fields"`
	ImpliedDefaults    []ImpliedDefault    `yaml:"implied_defaults"`
	Interlocks         []Interlock         `yaml:"interlocks"`
	Dependencies       []DependencyRule    `yaml:"dependencies"`
	CoRequisites       []CoRequisite       `yaml:"co_requisites"`
}

// Schema is the full field declaration for one template variant, preserving
// declared field order.
type Schema struct {
	Keys   []string
	Fields map[string]FieldSpec
	Rules  RuleSet
}

type schemaFile struct {
	Fields []FieldSpec `yaml:"fields"`
	Rules  RuleSet     `yaml:"rules"`
}

// LoadSchema reads a schema yaml document from disk.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema builds a Schema from yaml bytes, validating key uniqueness and
// field types.
func ParseSchema(data []byte) (*Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("schema declares no fields")
	}

	s := &Schema{Fields: make(map[string]FieldSpec, len(file.Fields)), Rules: file.Rules}
	for _, f := range file.Fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return nil, fmt.Errorf("schema field with empty key")
		}
		if _, dup := s.Fields[key]; dup {
			return nil, fmt.Errorf("duplicate schema key '%s'", key)
		}
		if f.Type == "" {
			// Teacher-era templates marked checkboxes by key suffix.
			if strings.HasSuffix(key, "_check") {
				f.Type = FieldBoolean
			} else {
				f.Type = FieldText
			}
		}
		if f.Type != FieldText && f.Type != FieldBoolean {
			return nil, fmt.Errorf("schema key '%s' has unknown type '%s'", key, f.Type)
		}
		f.Key = key
		s.Fields[key] = f
		s.Keys = append(s.Keys, key)
	}
	if len(s.Rules.Categories) == 0 {
		s.Rules.Categories = defaultCategories
	}
	return s, nil
}

const defaultCategory = "General & Utility"

var defaultCategories = []CategoryRule{
	{Name: "Controls & Electrical", Keywords: []string{"control", "electrical", "program", "guard", "code", "coding", "inspect"}},
	{Name: "Filling & Handling", Keywords: []string{"liquid", "fill", "bottle", "handling", "tablet", "cotton", "desiccant", "gas"}},
	{Name: "Capping, Labeling & Other", Keywords: []string{"cap", "label", "induction", "sleeve", "conveyor", "plug", "belt", "shrink", "retorquer"}},
}

// CategoryFor maps a field's declared section onto an extraction category.
// Sections matching no keyword land in the generic category.
func (s *Schema) CategoryFor(f FieldSpec) string {
	section := strings.ToLower(f.Section)
	if section == "" {
		return defaultCategory
	}
	for _, rule := range s.Rules.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(section, kw) {
				return rule.Name
			}
		}
	}
	return defaultCategory
}

// Categories partitions the schema's fields into named categories, keys in
// declared order within each category. Category iteration order follows the
// declared category table with the generic category last.
func (s *Schema) Categories() ([]string, map[string][]string) {
	byCategory := make(map[string][]string)
	for _, key := range s.Keys {
		cat := s.CategoryFor(s.Fields[key])
		byCategory[cat] = append(byCategory[cat], key)
	}

	var order []string
	for _, rule := range s.Rules.Categories {
		if len(byCategory[rule.Name]) > 0 {
			order = append(order, rule.Name)
		}
	}
	if len(byCategory[defaultCategory]) > 0 {
		order = append(order, defaultCategory)
	}
	return order, byCategory
}

// SplitBatches chops a key list into fixed-size batches, preserving order.
func SplitBatches(keys []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var batches [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[start:end])
	}
	return batches
}
