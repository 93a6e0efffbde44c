package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
)

var sanitizeKeyRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeKey makes a field key safe for the JSON output contract.
func sanitizeKey(key string) string {
	return sanitizeKeyRe.ReplaceAllString(key, "_")
}

// Extractor runs batched field extraction for one machine.
type Extractor struct {
	completer Completer
	selector  *ExampleSelector
	cfg       Config
}

func NewExtractor(completer Completer, selector *ExampleSelector, cfg Config) *Extractor {
	return &Extractor{completer: completer, selector: selector, cfg: cfg}
}

// ExtractCounters reports what happened during one machine's extraction.
type ExtractCounters struct {
	Batches         int
	FailedBatches   int
	ExamplesUsed    int
	SchemaMismatch  int
	DefaultedFields int
}

// Extract produces a raw value for every schema key exactly once. Batches
// run concurrently; a failed batch defaults its fields and the rest of the
// pipeline proceeds.
func (e *Extractor) Extract(ctx context.Context, machine MachineGroup, commonItems []LineItem, schema *Schema, evidenceText string) (map[string]string, LLMUsage, ExtractCounters) {
	machineType := determineMachineType(machine.MachineName)
	templateType := templateTypeFor(machineType)
	queryContext := buildExampleContext(machine, commonItems, evidenceText)

	evidence := truncateUTF8(evidenceText, e.cfg.EvidenceMaxLen)

	catOrder, byCategory := schema.Categories()
	type job struct {
		category string
		keys     []string
	}
	var jobs []job
	for _, cat := range catOrder {
		for _, batch := range SplitBatches(byCategory[cat], e.cfg.BatchSize) {
			jobs = append(jobs, job{category: cat, keys: batch})
		}
	}

	type batchResult struct {
		values   map[string]string
		usage    LLMUsage
		examples int
		mismatch int
		err      error
	}
	results := make([]batchResult, len(jobs))

	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(idx int, j job) {
			defer wg.Done()

			examples := e.selectExamples(ctx, machineType, templateType, j.keys, queryContext)
			systemPrompt, userPrompt, reverse := buildExtractionPrompts(machine, commonItems, schema, j.category, j.keys, evidence, examples, e.cfg.ExampleMaxLen)

			log.Printf("llm extract provider=%s machine=%q category=%q fields=%d batch=%d examples=%d",
				e.cfg.LLMProvider, machine.MachineName, j.category, len(j.keys), idx, countExamples(examples))

			responseText, usage, err := e.completer.Complete(ctx, systemPrompt, userPrompt)
			if err != nil {
				results[idx] = batchResult{usage: usage, examples: countExamples(examples), err: err}
				return
			}
			values, mismatch, err := parseExtractionResponse(responseText, reverse)
			results[idx] = batchResult{values: values, usage: usage, examples: countExamples(examples), mismatch: mismatch, err: err}
		}(i, j)
	}
	wg.Wait()

	merged := make(map[string]string, len(schema.Keys))
	totalUsage := LLMUsage{}
	counters := ExtractCounters{Batches: len(jobs)}
	for i, r := range results {
		totalUsage.Add(r.usage)
		counters.ExamplesUsed += r.examples
		counters.SchemaMismatch += r.mismatch
		if r.err != nil {
			counters.FailedBatches++
			log.Printf("llm extract batch failed batch=%d fields=%d err=%v", i, len(jobs[i].keys), r.err)
			continue
		}
		for key, value := range r.values {
			merged[key] = value
		}
	}

	// Normalize and default so the result covers the schema exactly once.
	final := make(map[string]string, len(schema.Keys))
	for _, key := range schema.Keys {
		spec := schema.Fields[key]
		raw, ok := merged[key]
		if !ok {
			final[key] = spec.DefaultValue()
			counters.DefaultedFields++
			continue
		}
		final[key] = normalizeValue(spec, raw)
	}
	return final, totalUsage, counters
}

// selectExamples pulls worked examples for each field in the batch, capped
// per field by config. A nil selector means no examples.
func (e *Extractor) selectExamples(ctx context.Context, machineType, templateType string, keys []string, queryContext string) map[string][]WorkedExample {
	if e.selector == nil || e.cfg.ExampleCount == 0 {
		return nil
	}
	out := make(map[string][]WorkedExample)
	for _, key := range keys {
		if examples := e.selector.Select(ctx, machineType, templateType, key, queryContext); len(examples) > 0 {
			if len(examples) > e.cfg.ExampleCount {
				examples = examples[:e.cfg.ExampleCount]
			}
			out[key] = examples
		}
	}
	return out
}

func countExamples(examples map[string][]WorkedExample) int {
	n := 0
	for _, list := range examples {
		n += len(list)
	}
	return n
}

// Indicator hints are only listed when the batch is boolean-light; big
// checkbox batches would blow up the prompt.
const indicatorListBooleanCap = 20

func buildExtractionPrompts(machine MachineGroup, commonItems []LineItem, schema *Schema, category string, keys []string, evidence string, examples map[string][]WorkedExample, exampleMaxLen int) (string, string, map[string]string) {
	reverse := make(map[string]string, len(keys))
	booleans := 0
	for _, key := range keys {
		if schema.Fields[key].IsBoolean() {
			booleans++
		}
	}
	listIndicators := booleans < indicatorListBooleanCap

	var fieldLines strings.Builder
	for _, key := range keys {
		spec := schema.Fields[key]
		sk := sanitizeKey(key)
		reverse[sk] = key

		fieldLines.WriteString(fmt.Sprintf("- %s (%s): %s", sk, spec.Type, strings.TrimSpace(spec.Description)))
		if spec.Subsection != "" {
			fieldLines.WriteString(fmt.Sprintf(" [%s]", spec.Subsection))
		}
		if len(spec.Synonyms) > 0 {
			fieldLines.WriteString(" | aka: " + strings.Join(capList(spec.Synonyms, 5), ", "))
		}
		if listIndicators && spec.IsBoolean() {
			if len(spec.PositiveIndicators) > 0 {
				fieldLines.WriteString(" | yes if: " + strings.Join(capList(spec.PositiveIndicators, 3), ", "))
			}
			if len(spec.NegativeIndicators) > 0 {
				fieldLines.WriteString(" | no if: " + strings.Join(capList(spec.NegativeIndicators, 3), ", "))
			}
		}
		fieldLines.WriteString("\n")
	}

	examplesBlock := ""
	if len(examples) > 0 {
		var exBuf strings.Builder
		for _, key := range keys {
			for _, ex := range examples[key] {
				exCtx := strings.TrimSpace(ex.InputContext)
				if len(exCtx) > exampleMaxLen {
					exCtx = truncateUTF8(exCtx, exampleMaxLen) + "..."
				}
				exBuf.WriteString(fmt.Sprintf("- %s: given %q -> %q\n", sanitizeKey(key), exCtx, ex.ExpectedOutput))
			}
		}
		if exBuf.Len() > 0 {
			examplesBlock = "\nExamples from previously confirmed quotes:\n" + exBuf.String()
		}
	}

	systemPrompt := fmt.Sprintf(`You extract order-specification fields for one packaging machine from a sales quote.
Fields to fill (category: %s):
%s
Rules:
- boolean fields are "YES" only with explicit supporting evidence; negative indicators override positive ones; otherwise "NO"
- text fields: copy the value from the evidence; leave "" when the quote does not state it
- never guess or infer beyond the quote text
%s
Respond with JSON only (no markdown), one key per field:
{"field_key": "value", ...}`, category, fieldLines.String(), examplesBlock)

	var itemLines strings.Builder
	itemLines.WriteString("Machine: " + machine.MachineName + "\n")
	itemLines.WriteString("Main item:\n" + strings.TrimSpace(machine.MainItem.Description) + "\n")
	if len(machine.AddOns) > 0 {
		itemLines.WriteString("Add-ons:\n")
		for _, a := range machine.AddOns {
			itemLines.WriteString("- " + strings.TrimSpace(a.Description) + "\n")
		}
	}
	if len(commonItems) > 0 {
		itemLines.WriteString("Common items (shared across machines):\n")
		for _, c := range commonItems {
			itemLines.WriteString("- " + strings.TrimSpace(c.Description) + "\n")
		}
	}

	userPrompt := itemLines.String() + "\nQuote evidence text:\n" + evidence
	return systemPrompt, userPrompt, reverse
}

func capList(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

// parseExtractionResponse maps the model's sanitized keys back to schema
// keys. Unknown keys are dropped and counted; values are coerced to string.
func parseExtractionResponse(responseText string, reverse map[string]string) (map[string]string, int, error) {
	responseText = stripFence(responseText)

	var raw map[string]any
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		truncated := responseText
		if len(truncated) > 512 {
			truncated = truncateUTF8(truncated, 512) + fmt.Sprintf("... [truncated, total_length=%d]", len(responseText))
		}
		return nil, 0, fmt.Errorf("parsing extraction response: %w (truncated response: %s)", err, truncated)
	}

	values := make(map[string]string, len(raw))
	mismatch := 0
	for sk, v := range raw {
		key, ok := reverse[sk]
		if !ok {
			mismatch++
			log.Printf("llm extract unexpected key=%q dropped", sk)
			continue
		}
		values[key] = coerceString(v)
	}
	return values, mismatch, nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case bool:
		if x {
			return "YES"
		}
		return "NO"
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// normalizeValue applies the boolean YES/TRUE/1 contract and schema
// defaults to one raw extracted value.
func normalizeValue(spec FieldSpec, raw string) string {
	raw = strings.TrimSpace(raw)
	if spec.IsBoolean() {
		switch strings.ToUpper(raw) {
		case "YES", "TRUE", "1":
			return "YES"
		default:
			return "NO"
		}
	}
	return raw
}
