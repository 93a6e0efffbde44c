package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS worked_examples (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		machine_type     TEXT NOT NULL,
		template_type    TEXT NOT NULL DEFAULT 'default',
		field_name       TEXT NOT NULL,
		input_context    TEXT NOT NULL,
		expected_output  TEXT NOT NULL,
		confidence_score REAL NOT NULL DEFAULT 0.75,
		usage_count      INTEGER NOT NULL DEFAULT 0,
		success_count    INTEGER NOT NULL DEFAULT 0,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_we_lookup ON worked_examples(machine_type, template_type, field_name);

	CREATE TABLE IF NOT EXISTS example_feedback (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		example_id  INTEGER NOT NULL,
		feedback    TEXT NOT NULL,
		corrected   TEXT DEFAULT '',
		given_by    TEXT DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_ef_example ON example_feedback(example_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func InsertWorkedExample(db *sql.DB, ex WorkedExample) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO worked_examples (machine_type, template_type, field_name, input_context, expected_output, confidence_score)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ex.MachineType, ex.TemplateType, ex.FieldName, ex.InputContext, ex.ExpectedOutput, ex.ConfidenceScore,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func InsertWorkedExamples(db *sql.DB, examples []WorkedExample) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO worked_examples (machine_type, template_type, field_name, input_context, expected_output, confidence_score)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, ex := range examples {
		_, err := stmt.Exec(ex.MachineType, ex.TemplateType, ex.FieldName, ex.InputContext, ex.ExpectedOutput, ex.ConfidenceScore)
		if err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, tx.Commit()
}

// GetWorkedExamples returns the best stored examples for one field, ranked by
// author confidence, then observed success ratio, then usage.
func GetWorkedExamples(db *sql.DB, machineType, templateType, fieldName string, limit int) ([]WorkedExample, error) {
	rows, err := db.Query(
		`SELECT id, machine_type, template_type, field_name, input_context, expected_output,
		        confidence_score, usage_count, success_count, created_at, last_used_at
		 FROM worked_examples
		 WHERE machine_type = ? AND template_type = ? AND field_name = ?
		 ORDER BY confidence_score DESC,
		          CAST(success_count AS REAL) / MAX(usage_count, 1) DESC,
		          usage_count DESC
		 LIMIT ?`,
		machineType, templateType, fieldName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkedExamples(rows)
}

// GetWorkedExamplesByIDs loads examples in the given ID order.
func GetWorkedExamplesByIDs(db *sql.DB, ids []int64) ([]WorkedExample, error) {
	byID := make(map[int64]WorkedExample, len(ids))
	for _, id := range ids {
		row := db.QueryRow(
			`SELECT id, machine_type, template_type, field_name, input_context, expected_output,
			        confidence_score, usage_count, success_count, created_at, last_used_at
			 FROM worked_examples WHERE id = ?`, id,
		)
		var ex WorkedExample
		if err := scanWorkedExample(row, &ex); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		byID[ex.ID] = ex
	}

	var out []WorkedExample
	for _, id := range ids {
		if ex, ok := byID[id]; ok {
			out = append(out, ex)
		}
	}
	return out, nil
}

func BumpExampleUsage(db *sql.DB, ids []int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE worked_examples SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, id := range ids {
		if _, err := stmt.Exec(now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordExampleFeedback stores user feedback on a retrieved example.
// "confirmed" bumps the example's success counter; "corrected" and
// "rejected" only log the feedback row.
func RecordExampleFeedback(db *sql.DB, exampleID int64, feedback, corrected, givenBy string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO example_feedback (example_id, feedback, corrected, given_by) VALUES (?, ?, ?, ?)`,
		exampleID, feedback, corrected, givenBy,
	); err != nil {
		return err
	}
	if feedback == "confirmed" {
		if _, err := tx.Exec(`UPDATE worked_examples SET success_count = success_count + 1 WHERE id = ?`, exampleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ExampleStats summarizes the worked-example corpus for the process log.
type ExampleStats struct {
	Total          int
	ByMachineType  map[string]int
	TotalUsage     int
	TotalSuccesses int
}

func GetExampleStats(db *sql.DB) (ExampleStats, error) {
	stats := ExampleStats{ByMachineType: make(map[string]int)}

	err := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(usage_count), 0), COALESCE(SUM(success_count), 0) FROM worked_examples`).
		Scan(&stats.Total, &stats.TotalUsage, &stats.TotalSuccesses)
	if err != nil {
		return stats, err
	}

	rows, err := db.Query(`SELECT machine_type, COUNT(*) FROM worked_examples GROUP BY machine_type`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var mt string
		var n int
		if err := rows.Scan(&mt, &n); err != nil {
			return stats, err
		}
		stats.ByMachineType[mt] = n
	}
	return stats, rows.Err()
}

// SuccessRate is successes over usages, zero when unused.
func (s ExampleStats) SuccessRate() float64 {
	if s.TotalUsage == 0 {
		return 0
	}
	return float64(s.TotalSuccesses) / float64(s.TotalUsage)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkedExample(row rowScanner, ex *WorkedExample) error {
	return row.Scan(
		&ex.ID, &ex.MachineType, &ex.TemplateType, &ex.FieldName, &ex.InputContext,
		&ex.ExpectedOutput, &ex.ConfidenceScore, &ex.UsageCount, &ex.SuccessCount,
		&ex.CreatedAt, &ex.LastUsedAt,
	)
}

func scanWorkedExamples(rows *sql.Rows) ([]WorkedExample, error) {
	var out []WorkedExample
	for rows.Next() {
		var ex WorkedExample
		if err := scanWorkedExample(rows, &ex); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
