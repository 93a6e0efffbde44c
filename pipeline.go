package main

import (
	"context"
	"log"
	"strings"
)

// Result is the finished extraction for one machine: a value for every
// schema key, a confidence score per key, and the ordered dependency
// suggestions.
type Result struct {
	MachineName string                 `json:"machine_name"`
	Values      map[string]string      `json:"values"`
	Confidence  map[string]float64     `json:"confidence_scores"`
	Suggestions []DependencySuggestion `json:"suggestions"`
	Usage       LLMUsage               `json:"-"`
	Counters    ExtractCounters        `json:"-"`
}

// Pipeline wires the extraction stages. Stateless across calls: each
// ExtractFields recomputes the field map from scratch.
type Pipeline struct {
	extractor *Extractor
	selector  *ExampleSelector
}

func NewPipeline(extractor *Extractor, selector *ExampleSelector) *Pipeline {
	return &Pipeline{extractor: extractor, selector: selector}
}

// aggregateEvidence is the text confidence scoring and the zero-evidence
// gate run against: the document text plus every item description in play.
func aggregateEvidence(machine MachineGroup, commonItems []LineItem, evidenceText string) string {
	var b strings.Builder
	b.WriteString(evidenceText)
	b.WriteString(" ")
	b.WriteString(machine.MainItem.Description)
	for _, a := range machine.AddOns {
		b.WriteString(" ")
		b.WriteString(a.Description)
	}
	for _, c := range commonItems {
		b.WriteString(" ")
		b.WriteString(c.Description)
	}
	return b.String()
}

// ExtractFields runs the full pipeline for one machine: batched extraction,
// confidence scoring, dependency validation, then the post-processing rules
// with the zero-evidence gate last. Worked-example persistence happens on a
// goroutine and never blocks the result.
func (p *Pipeline) ExtractFields(ctx context.Context, machine MachineGroup, commonItems []LineItem, schema *Schema, evidenceText string) Result {
	values, usage, counters := p.extractor.Extract(ctx, machine, commonItems, schema, evidenceText)
	evidence := aggregateEvidence(machine, commonItems, evidenceText)

	confidence := ScoreFields(schema, values, evidence, machine.MachineName)
	confidence, suggestions := ValidateDependencies(schema, values, confidence)
	values = ApplyRules(schema, values, evidence)

	if p.selector != nil {
		snapshot := make(map[string]string, len(values))
		for k, v := range values {
			snapshot[k] = v
		}
		go p.selector.Persist(machine, commonItems, schema, evidenceText, snapshot)
	}

	log.Printf("pipeline machine=%q fields=%d batches=%d failed_batches=%d defaulted=%d suggestions=%d tokens=%d",
		machine.MachineName, len(values), counters.Batches, counters.FailedBatches,
		counters.DefaultedFields, len(suggestions), usage.TotalTokens())

	return Result{
		MachineName: machine.MachineName,
		Values:      values,
		Confidence:  confidence,
		Suggestions: suggestions,
		Usage:       usage,
		Counters:    counters,
	}
}
