package main

import (
	"fmt"
	"strings"
)

const contradictionConfidenceCap = 0.4

// defaultDependencyRules cover the electrical relationships every template
// carries, keyed to the schema's declared unit fields. Schemas may extend
// or replace them in their rules block.
func defaultDependencyRules(schema *Schema) []DependencyRule {
	var rules []DependencyRule
	uf := schema.Rules.UnitFields
	if uf.Voltage != "" && uf.Frequency != "" {
		rules = append(rules, DependencyRule{
			Field:     uf.Frequency,
			DependsOn: uf.Voltage,
			Patterns: []DependencyPattern{
				{Contains: []string{"480", "460", "440", "120", "110", "115"}, Suggest: "60 Hz"},
				{Contains: []string{"400", "380", "415", "230", "220", "240"}, Suggest: "50 Hz"},
			},
		})
	}
	if _, ok := schema.Fields["country_destination"]; ok && uf.Voltage != "" {
		rules = append(rules, DependencyRule{
			Field:     uf.Voltage,
			DependsOn: "country_destination",
			Patterns: []DependencyPattern{
				{Contains: []string{"usa", "united states", "canada", "mexico"}, Suggest: "460-480V"},
				{Contains: []string{"uk", "united kingdom", "eu", "europe", "germany", "france"}, Suggest: "380-400V"},
			},
		})
	}
	return rules
}

// ValidateDependencies checks cross-field consistency. Values are never
// mutated: empty dependents get suggestions, contradictions get warnings
// plus a confidence cap, missing co-requisites get info notes. Suggestions
// come back in rule-table order.
func ValidateDependencies(schema *Schema, values map[string]string, confidence map[string]float64) (map[string]float64, []DependencySuggestion) {
	updated := make(map[string]float64, len(confidence))
	for k, v := range confidence {
		updated[k] = v
	}

	rules := schema.Rules.Dependencies
	if len(rules) == 0 {
		rules = defaultDependencyRules(schema)
	}

	var suggestions []DependencySuggestion
	for _, rule := range rules {
		driver := strings.ToLower(strings.TrimSpace(values[rule.DependsOn]))
		if driver == "" {
			continue
		}
		dependent := strings.TrimSpace(values[rule.Field])

		var suggested string
		for _, p := range rule.Patterns {
			for _, token := range p.Contains {
				if strings.Contains(driver, strings.ToLower(token)) {
					suggested = p.Suggest
					break
				}
			}
			if suggested != "" {
				break
			}
		}
		if suggested == "" {
			continue
		}

		if dependent == "" {
			suggestions = append(suggestions, DependencySuggestion{
				Field:          rule.Field,
				CurrentValue:   dependent,
				SuggestedValue: suggested,
				Reason:         fmt.Sprintf("Based on %s %q, %s is typically %q", rule.DependsOn, values[rule.DependsOn], rule.Field, suggested),
				Severity:       SeveritySuggestion,
			})
			continue
		}
		if !dependencyConsistent(dependent, suggested) {
			suggestions = append(suggestions, DependencySuggestion{
				Field:          rule.Field,
				CurrentValue:   dependent,
				SuggestedValue: suggested,
				Reason:         fmt.Sprintf("%s %q conflicts with %s %q, expected %q. Please verify.", rule.Field, dependent, rule.DependsOn, values[rule.DependsOn], suggested),
				Severity:       SeverityWarning,
			})
			updated[rule.Field] = capConfidence(updated[rule.Field], contradictionConfidenceCap)
		}
	}

	coReqs := schema.Rules.CoRequisites
	if len(coReqs) == 0 {
		if uf := schema.Rules.UnitFields; uf.Pressure != "" {
			if _, ok := schema.Fields["cfm"]; ok {
				coReqs = []CoRequisite{{
					Field:    uf.Pressure,
					Requires: "cfm",
					Reason:   "Air pressure is specified but air consumption is missing. Consider checking pneumatic requirements.",
				}}
			}
		}
	}
	for _, cr := range coReqs {
		if strings.TrimSpace(values[cr.Field]) == "" || strings.TrimSpace(values[cr.Requires]) != "" {
			continue
		}
		suggestions = append(suggestions, DependencySuggestion{
			Field:        cr.Requires,
			CurrentValue: "",
			Reason:       cr.Reason,
			Severity:     SeverityInfo,
		})
		if _, declared := schema.Fields[cr.Requires]; declared {
			updated[cr.Requires] = capConfidence(updated[cr.Requires], contradictionConfidenceCap)
		}
	}

	return updated, suggestions
}

// dependencyConsistent treats the dependent value as consistent when it
// shares a numeric token with the suggestion ("60" matches "60 Hz").
func dependencyConsistent(current, suggested string) bool {
	cur := strings.ToLower(current)
	for _, token := range strings.FieldsFunc(strings.ToLower(suggested), func(r rune) bool {
		return !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'z') && r != '-'
	}) {
		if len(token) > 0 && token[0] >= '0' && token[0] <= '9' && strings.Contains(cur, token) {
			return true
		}
	}
	return strings.Contains(cur, strings.ToLower(suggested))
}

func capConfidence(current, limit float64) float64 {
	if current == 0 {
		current = 0.5
	}
	if current > limit {
		return limit
	}
	return current
}
