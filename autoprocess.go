package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ProcessResult tracks counters for one inbox scan.
type ProcessResult struct {
	Found     int
	Processed int
	Machines  int
	Errors    []string
}

// ProcessQuoteFile runs the full pipeline for one quote file and writes the
// result artifacts.
func ProcessQuoteFile(cfg Config, pipeline *Pipeline, schema *Schema, path string) ([]Result, error) {
	quote, err := LoadQuote(path)
	if err != nil {
		return nil, err
	}

	classification := Classify(quote.LineItems, cfg.PriceThreshold)
	log.Printf("process quote=%s items=%d machines=%d common=%d",
		quote.QuoteRef, len(quote.LineItems), len(classification.Machines), len(classification.CommonItems))

	var results []Result
	for _, machine := range classification.Machines {
		result := pipeline.ExtractFields(context.Background(), machine, classification.CommonItems, schema, quote.EvidenceText)
		if _, err := WriteResultFile(result, cfg.OutputDir, quote.QuoteRef); err != nil {
			return results, fmt.Errorf("writing result for %s: %w", machine.MachineName, err)
		}
		results = append(results, result)
	}

	if _, err := WriteSummaryFile(results, cfg.OutputDir, quote.QuoteRef, time.Now()); err != nil {
		return results, fmt.Errorf("writing summary: %w", err)
	}
	return results, nil
}

// ScanInbox processes every quote yaml dropped in the inbox, moving each
// processed file into processed/. A single bad file never stops the scan.
func ScanInbox(cfg Config, pipeline *Pipeline, schema *Schema) ProcessResult {
	var result ProcessResult

	entries, err := os.ReadDir(cfg.InboxDir)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reading inbox: %v", err))
		return result
	}

	processedDir := filepath.Join(cfg.InboxDir, "processed")
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		result.Found++

		path := filepath.Join(cfg.InboxDir, entry.Name())
		results, err := ProcessQuoteFile(cfg, pipeline, schema, path)
		if err != nil {
			log.Printf("auto-process error file=%s err=%v", entry.Name(), err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		result.Processed++
		result.Machines += len(results)

		if err := os.MkdirAll(processedDir, 0755); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		if err := os.Rename(path, filepath.Join(processedDir, entry.Name())); err != nil {
			log.Printf("auto-process move error file=%s err=%v", entry.Name(), err)
			result.Errors = append(result.Errors, fmt.Sprintf("move %s: %v", entry.Name(), err))
		}
	}
	return result
}

// FormatProcessSummary returns a human-readable summary of one inbox scan.
func FormatProcessSummary(result ProcessResult) string {
	if result.Found == 0 {
		return "No new quote files found."
	}
	msg := fmt.Sprintf("Processed %d of %d quote files (%d machines extracted)",
		result.Processed, result.Found, result.Machines)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// StartAutoProcessScheduler runs the inbox scan on a cron schedule.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "*/15 * * * *" (every 15 minutes), "0 7 * * 1-5" (weekdays 7am).
func StartAutoProcessScheduler(cfg Config, pipeline *Pipeline, schema *Schema, db *sql.DB) {
	schedule := strings.TrimSpace(cfg.AutoProcessSchedule)
	if schedule == "" {
		log.Println("Auto-process disabled (auto_process_schedule not set)")
		return
	}
	if cfg.InboxDir == "" {
		log.Println("Auto-process disabled: inbox_dir not set")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid auto_process_schedule '%s': %v — auto-process disabled", schedule, err)
		return
	}
	log.Printf("Auto-process scheduled (cron: %s) inbox=%s", schedule, cfg.InboxDir)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next auto-process at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result := ScanInbox(cfg, pipeline, schema)
			log.Printf("Auto-process complete: %s", FormatProcessSummary(result))

			if stats, err := GetExampleStats(db); err == nil {
				log.Printf("examples corpus total=%d usage=%d success_rate=%.2f", stats.Total, stats.TotalUsage, stats.SuccessRate())
			}
		}
	}()
}
