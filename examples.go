package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ExampleSelector retrieves worked examples for a field and persists new
// ones after extraction. Similarity search via chromem is best-effort: any
// failure, and the absence of an embedding key, degrade to the sqlite
// ranking. Selection never blocks or fails an extraction.
type ExampleSelector struct {
	db    *sql.DB
	vdb   *chromem.DB
	embed chromem.EmbeddingFunc
	count int

	mu    sync.Mutex
	colls map[string]*chromem.Collection
}

// NewExampleSelector wires the selector. vectorDir may be empty to disable
// the vector index entirely; the OpenAI key enables embeddings.
func NewExampleSelector(db *sql.DB, vectorDir, openAIKey string, count int) *ExampleSelector {
	s := &ExampleSelector{db: db, count: count, colls: make(map[string]*chromem.Collection)}
	if vectorDir == "" || openAIKey == "" {
		log.Printf("examples similarity disabled vector_dir=%q embeddings=%t", vectorDir, openAIKey != "")
		return s
	}
	vdb, err := chromem.NewPersistentDB(vectorDir, false)
	if err != nil {
		log.Printf("examples vector db open failed (falling back to ranked retrieval): %v", err)
		return s
	}
	s.vdb = vdb
	s.embed = chromem.NewEmbeddingFuncOpenAI(openAIKey, chromem.EmbeddingModelOpenAI3Small)
	return s
}

var collNameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func collectionName(machineType, templateType, fieldName string) string {
	name := fmt.Sprintf("ex_%s_%s_%s", machineType, templateType, fieldName)
	return collNameRe.ReplaceAllString(name, "_")
}

// Select returns up to the configured number of examples for one field,
// most relevant first. The usage counter bump happens on a goroutine.
func (s *ExampleSelector) Select(ctx context.Context, machineType, templateType, fieldName, queryContext string) []WorkedExample {
	examples := s.selectBySimilarity(ctx, machineType, templateType, fieldName, queryContext)
	if examples == nil {
		var err error
		examples, err = GetWorkedExamples(s.db, machineType, templateType, fieldName, s.count)
		if err != nil {
			log.Printf("examples ranked retrieval failed field=%s err=%v", fieldName, err)
			return nil
		}
	}
	if len(examples) == 0 {
		return nil
	}

	ids := make([]int64, len(examples))
	for i, ex := range examples {
		ids[i] = ex.ID
	}
	go func() {
		if err := BumpExampleUsage(s.db, ids); err != nil {
			log.Printf("examples usage bump failed: %v", err)
		}
	}()
	return examples
}

func (s *ExampleSelector) selectBySimilarity(ctx context.Context, machineType, templateType, fieldName, queryContext string) []WorkedExample {
	coll := s.collection(ctx, machineType, templateType, fieldName)
	if coll == nil {
		return nil
	}

	k := s.count
	if n := coll.Count(); n < k {
		k = n
	}
	if k == 0 {
		return []WorkedExample{}
	}

	results, err := coll.Query(ctx, queryContext, k, nil, nil)
	if err != nil {
		log.Printf("examples similarity query failed field=%s err=%v", fieldName, err)
		return nil
	}

	var ids []int64
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	examples, err := GetWorkedExamplesByIDs(s.db, ids)
	if err != nil {
		log.Printf("examples load by id failed field=%s err=%v", fieldName, err)
		return nil
	}
	return examples
}

// collection lazily builds the per-field collection from sqlite. Returns nil
// whenever similarity is unavailable.
func (s *ExampleSelector) collection(ctx context.Context, machineType, templateType, fieldName string) *chromem.Collection {
	if s.vdb == nil {
		return nil
	}
	name := collectionName(machineType, templateType, fieldName)

	s.mu.Lock()
	coll, ok := s.colls[name]
	s.mu.Unlock()
	if ok {
		return coll
	}

	coll, err := s.vdb.GetOrCreateCollection(name, nil, s.embed)
	if err != nil {
		log.Printf("examples collection open failed name=%s err=%v", name, err)
		return nil
	}

	if coll.Count() == 0 {
		stored, err := GetWorkedExamples(s.db, machineType, templateType, fieldName, 1000)
		if err != nil {
			log.Printf("examples backfill load failed name=%s err=%v", name, err)
			return nil
		}
		if len(stored) > 0 {
			docs := make([]chromem.Document, 0, len(stored))
			for _, ex := range stored {
				docs = append(docs, chromem.Document{
					ID:      strconv.FormatInt(ex.ID, 10),
					Content: ex.InputContext,
					Metadata: map[string]string{
						"field_name":      ex.FieldName,
						"expected_output": ex.ExpectedOutput,
					},
				})
			}
			if err := coll.AddDocuments(ctx, docs, 2); err != nil {
				log.Printf("examples backfill index failed name=%s err=%v", name, err)
				return nil
			}
		}
	}

	s.mu.Lock()
	s.colls[name] = coll
	s.mu.Unlock()
	return coll
}

// invalidate drops the cached collection for a triple so the next Select
// rebuilds it from sqlite.
func (s *ExampleSelector) invalidate(machineType, templateType, fieldName string) {
	if s.vdb == nil {
		return
	}
	name := collectionName(machineType, templateType, fieldName)
	s.mu.Lock()
	delete(s.colls, name)
	s.mu.Unlock()
	if err := s.vdb.DeleteCollection(name); err != nil {
		log.Printf("examples collection drop failed name=%s err=%v", name, err)
	}
}

const (
	savedExampleScore = 0.75
	exampleContextCap = 2000
	maxContextAddOns  = 5
	maxContextCommons = 3
)

// buildExampleContext assembles the stored input context for a machine's
// extraction: the main item, a few add-ons and common items, and the start
// of the evidence text.
func buildExampleContext(machine MachineGroup, commonItems []LineItem, evidenceText string) string {
	var b strings.Builder
	b.WriteString("Main item: ")
	b.WriteString(strings.TrimSpace(machine.MainItem.Description))
	b.WriteString("\n")
	for i, a := range machine.AddOns {
		if i >= maxContextAddOns {
			break
		}
		b.WriteString("Add-on: ")
		b.WriteString(strings.TrimSpace(a.Description))
		b.WriteString("\n")
	}
	for i, c := range commonItems {
		if i >= maxContextCommons {
			break
		}
		b.WriteString("Common: ")
		b.WriteString(strings.TrimSpace(c.Description))
		b.WriteString("\n")
	}
	evidence := truncateUTF8(strings.TrimSpace(evidenceText), exampleContextCap)
	b.WriteString("Evidence:\n")
	b.WriteString(evidence)
	return b.String()
}

// persistWorthy reports whether an extracted value is confident enough to
// store: booleans only when YES, text only when longer than 2 chars.
func persistWorthy(spec FieldSpec, value string) bool {
	if spec.IsBoolean() {
		return value == "YES"
	}
	return len(strings.TrimSpace(value)) > 2
}

// Persist stores confident extraction results as worked examples.
// Intended to run on a goroutine; failures are logged and dropped.
func (s *ExampleSelector) Persist(machine MachineGroup, commonItems []LineItem, schema *Schema, evidenceText string, values map[string]string) {
	machineType := determineMachineType(machine.MachineName)
	templateType := templateTypeFor(machineType)
	inputContext := buildExampleContext(machine, commonItems, evidenceText)

	var batch []WorkedExample
	touched := make(map[string]bool)
	for _, key := range schema.Keys {
		value := values[key]
		if !persistWorthy(schema.Fields[key], value) {
			continue
		}
		batch = append(batch, WorkedExample{
			MachineType:     machineType,
			TemplateType:    templateType,
			FieldName:       key,
			InputContext:    inputContext,
			ExpectedOutput:  value,
			ConfidenceScore: savedExampleScore,
		})
		touched[key] = true
	}
	if len(batch) == 0 {
		return
	}

	n, err := InsertWorkedExamples(s.db, batch)
	if err != nil {
		log.Printf("examples persist failed machine_type=%s saved=%d err=%v", machineType, n, err)
		return
	}
	for key := range touched {
		s.invalidate(machineType, templateType, key)
	}
	log.Printf("examples persisted machine_type=%s template=%s saved=%d", machineType, templateType, n)
}
