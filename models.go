package main

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// LineItem is one priced row from a quote, as delivered by the upstream
// document parser. Immutable once parsed.
type LineItem struct {
	Description   string  `yaml:"description" json:"description"`
	QuantityText  string  `yaml:"quantity" json:"quantity"`
	SelectionText string  `yaml:"selection" json:"selection"`
	PriceNumeric  float64 `yaml:"-" json:"price_numeric"`
}

// MachineGroup is one main priced item plus the add-on items attributed to it.
type MachineGroup struct {
	MachineName string     `json:"machine_name"`
	MainItem    LineItem   `json:"main_item"`
	AddOns      []LineItem `json:"add_ons"`
}

// Classification is the full partition of a quote's line items.
type Classification struct {
	Machines    []MachineGroup `json:"machines"`
	CommonItems []LineItem     `json:"common_items"`
}

// FieldValue is one extracted field after normalization.
type FieldValue struct {
	Key        string  `json:"key"`
	RawValue   string  `json:"raw_value"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Severity levels for dependency suggestions.
const (
	SeverityInfo       = "info"
	SeveritySuggestion = "suggestion"
	SeverityWarning    = "warning"
)

// DependencySuggestion is an ephemeral cross-field consistency note. It may
// cap a field's confidence but never mutates the value itself.
type DependencySuggestion struct {
	Field          string `json:"field"`
	CurrentValue   string `json:"current_value"`
	SuggestedValue string `json:"suggested_value"`
	Reason         string `json:"reason"`
	Severity       string `json:"severity"`
}

// WorkedExample is a stored (context, correct value) pair used to steer
// future extractions. Its ConfidenceScore is an author/heuristic quality
// rating, not an extraction confidence.
type WorkedExample struct {
	ID              int64
	MachineType     string
	TemplateType    string
	FieldName       string
	InputContext    string
	ExpectedOutput  string
	ConfidenceScore float64
	UsageCount      int
	SuccessCount    int
	CreatedAt       time.Time
	LastUsedAt      time.Time
}

var priceRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parsePrice pulls the first numeric token out of a price string like
// "439,950.00" or "$ 19,950". Non-numeric strings ("Included", "N/C")
// parse to zero.
func parsePrice(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	match := priceRe.FindString(s)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseQuantity reads a quantity string, defaulting to 1 when absent or
// unparseable.
func parseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f)
	}
	return 1
}

// machineTypeBuckets maps name keywords to the coarse machine type used as
// the worked-example corpus key.
var machineTypeBuckets = []struct {
	machineType string
	keywords    []string
}{
	{"sortstar", []string{"sortstar", "unscrambler"}},
	{"labeling", []string{"labelstar", "labeling", "label"}},
	{"filling", []string{"filling", "filler", "fill"}},
	{"capping", []string{"capping", "capper", "cap"}},
}

// determineMachineType buckets a machine name into a coarse type. Unmatched
// names fall into "general".
func determineMachineType(machineName string) string {
	name := strings.ToLower(machineName)
	for _, b := range machineTypeBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(name, kw) {
				return b.machineType
			}
		}
	}
	return "general"
}

// truncateUTF8 caps s at n bytes without splitting a multi-byte rune.
// Quotes carry symbols like "×" and "°C"; a naive slice would send an
// invalid trailing byte to the model.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// templateTypeFor picks the template variant for a machine type.
func templateTypeFor(machineType string) string {
	if machineType == "sortstar" {
		return "sortstar"
	}
	return "default"
}
