package main

import (
	"log"
	"os"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	schema, err := LoadSchema(cfg.SchemaPath)
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}
	log.Printf("schema loaded path=%s fields=%d", cfg.SchemaPath, len(schema.Keys))

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir %s: %v", cfg.OutputDir, err)
	}

	selector := NewExampleSelector(db, cfg.VectorDir, cfg.OpenAIAPIKey, cfg.ExampleCount)
	extractor := NewExtractor(NewCompleter(cfg), selector, cfg)
	pipeline := NewPipeline(extractor, selector)

	// One-shot mode: quotefill <quote.yaml>
	if len(os.Args) > 1 {
		results, err := ProcessQuoteFile(cfg, pipeline, schema, os.Args[1])
		if err != nil {
			log.Fatalf("Failed to process %s: %v", os.Args[1], err)
		}
		log.Printf("done quote=%s machines=%d output=%s", os.Args[1], len(results), cfg.OutputDir)
		return
	}

	if cfg.AutoProcessSchedule == "" || cfg.InboxDir == "" {
		log.Fatalf("usage: quotefill <quote.yaml> (or set inbox_dir + auto_process_schedule for watcher mode)")
	}

	log.Println("Starting quote inbox watcher...")
	StartAutoProcessScheduler(cfg, pipeline, schema, db)
	select {}
}
