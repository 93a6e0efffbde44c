package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var filenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(s string) string {
	s = filenameRe.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(s, "_")
}

// WriteResultFile writes one machine's extraction result as JSON.
func WriteResultFile(result Result, outputDir, quoteRef string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.json", sanitizeFilename(quoteRef), sanitizeFilename(result.MachineName))
	path := filepath.Join(outputDir, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0644)
}

// WriteSummaryFile writes a short markdown summary covering every machine
// on the quote.
func WriteSummaryFile(results []Result, outputDir, quoteRef string, when time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_summary_%s.md", sanitizeFilename(quoteRef), when.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(BuildSummary(results, quoteRef, when)), 0644)
}

// BuildSummary renders the markdown summary for one processed quote.
func BuildSummary(results []Result, quoteRef string, when time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Quote %s — extraction summary\n\n", quoteRef))
	b.WriteString(fmt.Sprintf("Processed: %s\n\n", when.Format("2006-01-02 15:04")))

	for _, r := range results {
		high, medium, low, filled := 0, 0, 0, 0
		for key, c := range r.Confidence {
			switch {
			case c >= ConfidenceHigh:
				high++
			case c >= ConfidenceMedium:
				medium++
			default:
				low++
			}
			if strings.TrimSpace(r.Values[key]) != "" && r.Values[key] != "NO" {
				filled++
			}
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", r.MachineName))
		b.WriteString(fmt.Sprintf("- fields: %d (%d filled)\n", len(r.Values), filled))
		b.WriteString(fmt.Sprintf("- confidence: %d high / %d medium / %d low\n", high, medium, low))
		if r.Counters.FailedBatches > 0 {
			b.WriteString(fmt.Sprintf("- failed batches: %d of %d (fields defaulted)\n", r.Counters.FailedBatches, r.Counters.Batches))
		}
		if len(r.Suggestions) > 0 {
			b.WriteString("\nReview suggestions:\n\n")
			for _, s := range r.Suggestions {
				if s.SuggestedValue != "" {
					b.WriteString(fmt.Sprintf("- [%s] %s: %s (suggested: %s)\n", s.Severity, s.Field, s.Reason, s.SuggestedValue))
				} else {
					b.WriteString(fmt.Sprintf("- [%s] %s: %s\n", s.Severity, s.Field, s.Reason))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
