package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Quote is one parsed quote input file: a reference, the evidence text, and
// the ordered line items as the upstream document parser delivered them.
type Quote struct {
	QuoteRef     string     `yaml:"quote_ref"`
	EvidenceFile string     `yaml:"evidence_file"`
	EvidenceText string     `yaml:"evidence_text"`
	LineItems    []LineItem `yaml:"line_items"`
}

// LoadQuote reads a quote yaml file. A relative evidence_file resolves
// against the quote file's directory; evidence_text wins when both are set.
func LoadQuote(path string) (Quote, error) {
	var q Quote
	data, err := os.ReadFile(path)
	if err != nil {
		return q, fmt.Errorf("read quote: %w", err)
	}
	if err := yaml.Unmarshal(data, &q); err != nil {
		return q, fmt.Errorf("parse quote yaml: %w", err)
	}

	if q.QuoteRef == "" {
		q.QuoteRef = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(q.LineItems) == 0 {
		return q, fmt.Errorf("quote %s declares no line items", q.QuoteRef)
	}

	if q.EvidenceText == "" && q.EvidenceFile != "" {
		evidencePath := q.EvidenceFile
		if !filepath.IsAbs(evidencePath) {
			evidencePath = filepath.Join(filepath.Dir(path), evidencePath)
		}
		text, err := os.ReadFile(evidencePath)
		if err != nil {
			return q, fmt.Errorf("read evidence file: %w", err)
		}
		q.EvidenceText = string(text)
	}
	return q, nil
}
