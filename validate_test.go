package main

import "testing"

const validateSchemaYAML = `
fields:
  - key: voltage
    type: text
    section: Controls and Electrical
  - key: hz
    type: text
    section: Controls and Electrical
  - key: air_pressure
    type: text
  - key: cfm
    type: text
  - key: country_destination
    type: text
rules:
  unit_fields:
    voltage: voltage
    frequency: hz
    pressure: air_pressure
`

func validateSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseSchema([]byte(validateSchemaYAML))
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	return s
}

func TestValidate_SuggestsFrequencyFromVoltage(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"voltage": "460V", "hz": ""}
	confidence := map[string]float64{"voltage": 0.9, "hz": 0.3}

	updated, suggestions := ValidateDependencies(s, values, confidence)

	var found *DependencySuggestion
	for i := range suggestions {
		if suggestions[i].Field == "hz" {
			found = &suggestions[i]
		}
	}
	if found == nil {
		t.Fatal("expected hz suggestion")
	}
	if found.SuggestedValue != "60 Hz" {
		t.Errorf("suggested = %q, want 60 Hz", found.SuggestedValue)
	}
	if found.Severity != SeveritySuggestion {
		t.Errorf("severity = %q", found.Severity)
	}
	// Suggestions never mutate values or confidence.
	if values["hz"] != "" {
		t.Errorf("value mutated: %q", values["hz"])
	}
	if updated["hz"] != 0.3 {
		t.Errorf("confidence changed on plain suggestion: %v", updated["hz"])
	}
}

func TestValidate_ContradictionWarnsAndCaps(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"voltage": "460V", "hz": "50"}
	confidence := map[string]float64{"voltage": 0.9, "hz": 0.9}

	updated, suggestions := ValidateDependencies(s, values, confidence)

	var warning *DependencySuggestion
	for i := range suggestions {
		if suggestions[i].Field == "hz" && suggestions[i].Severity == SeverityWarning {
			warning = &suggestions[i]
		}
	}
	if warning == nil {
		t.Fatal("expected hz warning")
	}
	if updated["hz"] > 0.4 {
		t.Errorf("hz confidence not capped: %v", updated["hz"])
	}
	if values["hz"] != "50" {
		t.Errorf("value mutated: %q", values["hz"])
	}
}

func TestValidate_ConsistentPairPasses(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"voltage": "460V", "hz": "60 Hz"}
	confidence := map[string]float64{"voltage": 0.9, "hz": 0.9}

	updated, suggestions := ValidateDependencies(s, values, confidence)
	for _, sg := range suggestions {
		if sg.Field == "hz" {
			t.Fatalf("unexpected suggestion for consistent pair: %+v", sg)
		}
	}
	if updated["hz"] != 0.9 {
		t.Errorf("confidence changed: %v", updated["hz"])
	}
}

func TestValidate_EuropeanVoltage(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"voltage": "400V", "hz": ""}
	_, suggestions := ValidateDependencies(s, values, map[string]float64{})

	for _, sg := range suggestions {
		if sg.Field == "hz" && sg.SuggestedValue == "50 Hz" {
			return
		}
	}
	t.Fatal("expected 50 Hz suggestion for 400V")
}

func TestValidate_PressureCoRequisite(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"air_pressure": "90 PSI", "cfm": ""}
	confidence := map[string]float64{"air_pressure": 0.9, "cfm": 0.5}

	updated, suggestions := ValidateDependencies(s, values, confidence)

	var info *DependencySuggestion
	for i := range suggestions {
		if suggestions[i].Field == "cfm" && suggestions[i].Severity == SeverityInfo {
			info = &suggestions[i]
		}
	}
	if info == nil {
		t.Fatal("expected cfm info suggestion")
	}
	if updated["cfm"] > 0.4 {
		t.Errorf("cfm confidence not capped: %v", updated["cfm"])
	}
}

func TestValidate_CountrySuggestsVoltage(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"country_destination": "USA", "voltage": ""}
	_, suggestions := ValidateDependencies(s, values, map[string]float64{})

	for _, sg := range suggestions {
		if sg.Field == "voltage" && sg.Severity == SeveritySuggestion {
			return
		}
	}
	t.Fatal("expected voltage suggestion from country")
}

func TestValidate_NoDriversNoSuggestions(t *testing.T) {
	s := validateSchema(t)
	values := map[string]string{"voltage": "", "hz": "", "air_pressure": "", "cfm": "", "country_destination": ""}
	_, suggestions := ValidateDependencies(s, values, map[string]float64{})
	if len(suggestions) != 0 {
		t.Fatalf("expected no suggestions, got %+v", suggestions)
	}
}
