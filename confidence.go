package main

import (
	"log"
	"strings"
)

// Confidence thresholds for the high/medium/low buckets.
const (
	ConfidenceHigh   = 0.8
	ConfidenceMedium = 0.5
)

// suspiciousPlaceholders are text values that look filled but carry no
// information. They score near zero.
var suspiciousPlaceholders = map[string]bool{
	"n/a":              true,
	"not applicable":   true,
	"not specified":    true,
	"not selected":     true,
	"none selected":    true,
	"to be determined": true,
	"tbd":              true,
	"pending":          true,
	"not available":    true,
	"unknown":          true,
	"not provided":     true,
}

// EstimateConfidence scores one extracted value against the aggregated
// evidence (document text plus item descriptions). Fixed score table:
// defaults 0.3; boolean YES 0.4..0.95 by evidence-term count; boolean NO
// 0.75; text placeholders 0.2, exact match 0.9, token match 0.7, else 0.5.
func EstimateConfidence(spec FieldSpec, value, evidenceText string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		// Defaulted, never extracted.
		return 0.3
	}

	allText := strings.ToLower(evidenceText)

	if spec.IsBoolean() {
		if strings.ToUpper(value) != "YES" {
			// NO is the safe default.
			return 0.75
		}
		found := 0
		for _, term := range evidenceTerms(spec) {
			if strings.Contains(allText, term) {
				found++
			}
		}
		switch {
		case found >= 3:
			return 0.95
		case found >= 2:
			return 0.85
		case found >= 1:
			return 0.7
		default:
			return 0.4
		}
	}

	valueLower := strings.ToLower(value)
	if suspiciousPlaceholders[valueLower] {
		return 0.2
	}
	if strings.Contains(allText, valueLower) {
		return 0.9
	}
	for _, word := range strings.Fields(valueLower) {
		if len(word) > 3 && strings.Contains(allText, word) {
			return 0.7
		}
	}
	return 0.5
}

// evidenceTerms collects the lowercase terms whose presence supports a
// boolean YES: declared positive indicators, synonyms, and the field key's
// own tokens longer than 2 chars.
func evidenceTerms(spec FieldSpec) []string {
	var terms []string
	for _, t := range spec.PositiveIndicators {
		terms = append(terms, strings.ToLower(t))
	}
	for _, t := range spec.Synonyms {
		terms = append(terms, strings.ToLower(t))
	}
	name := strings.TrimSuffix(spec.Key, "_check")
	for _, part := range strings.Split(name, "_") {
		if len(part) > 2 {
			terms = append(terms, strings.ToLower(part))
		}
	}
	return terms
}

// ScoreFields computes every field's confidence and logs the aggregate
// high/medium/low split for one machine.
func ScoreFields(schema *Schema, values map[string]string, evidenceText string, machineName string) map[string]float64 {
	scores := make(map[string]float64, len(schema.Keys))
	high, medium, low := 0, 0, 0
	for _, key := range schema.Keys {
		c := EstimateConfidence(schema.Fields[key], values[key], evidenceText)
		scores[key] = c
		switch {
		case c >= ConfidenceHigh:
			high++
		case c >= ConfidenceMedium:
			medium++
		default:
			low++
		}
	}
	log.Printf("confidence machine=%q fields=%d high=%d medium=%d low=%d", machineName, len(scores), high, medium, low)
	return scores
}
