package main

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndGetWorkedExamples(t *testing.T) {
	db := testDB(t)

	examples := []WorkedExample{
		{MachineType: "filling", TemplateType: "default", FieldName: "voltage", InputContext: "ctx a", ExpectedOutput: "460V", ConfidenceScore: 0.75},
		{MachineType: "filling", TemplateType: "default", FieldName: "voltage", InputContext: "ctx b", ExpectedOutput: "230V", ConfidenceScore: 0.9},
		{MachineType: "capping", TemplateType: "default", FieldName: "voltage", InputContext: "ctx c", ExpectedOutput: "120V", ConfidenceScore: 0.75},
	}
	n, err := InsertWorkedExamples(db, examples)
	if err != nil {
		t.Fatalf("InsertWorkedExamples: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d, want 3", n)
	}

	got, err := GetWorkedExamples(db, "filling", "default", "voltage", 10)
	if err != nil {
		t.Fatalf("GetWorkedExamples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d examples, want 2", len(got))
	}
	// Higher confidence_score ranks first.
	if got[0].ExpectedOutput != "230V" {
		t.Errorf("ranking wrong, first = %+v", got[0])
	}
}

func TestGetWorkedExamples_SuccessRatioOrdering(t *testing.T) {
	db := testDB(t)

	idLow, err := InsertWorkedExample(db, WorkedExample{
		MachineType: "filling", TemplateType: "default", FieldName: "hz",
		InputContext: "low", ExpectedOutput: "50 Hz", ConfidenceScore: 0.75,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	idHigh, err := InsertWorkedExample(db, WorkedExample{
		MachineType: "filling", TemplateType: "default", FieldName: "hz",
		InputContext: "high", ExpectedOutput: "60 Hz", ConfidenceScore: 0.75,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Same usage, different success counts.
	if err := BumpExampleUsage(db, []int64{idLow, idHigh}); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if err := RecordExampleFeedback(db, idHigh, "confirmed", "", "tester"); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	got, err := GetWorkedExamples(db, "filling", "default", "hz", 10)
	if err != nil {
		t.Fatalf("GetWorkedExamples: %v", err)
	}
	if got[0].ID != idHigh {
		t.Errorf("confirmed example should rank first, got id=%d", got[0].ID)
	}
	if got[0].SuccessCount != 1 {
		t.Errorf("success count = %d, want 1", got[0].SuccessCount)
	}
}

func TestBumpExampleUsage(t *testing.T) {
	db := testDB(t)
	id, _ := InsertWorkedExample(db, WorkedExample{
		MachineType: "general", TemplateType: "default", FieldName: "x",
		InputContext: "ctx", ExpectedOutput: "v", ConfidenceScore: 0.75,
	})

	for i := 0; i < 3; i++ {
		if err := BumpExampleUsage(db, []int64{id}); err != nil {
			t.Fatalf("bump %d: %v", i, err)
		}
	}
	got, err := GetWorkedExamplesByIDs(db, []int64{id})
	if err != nil || len(got) != 1 {
		t.Fatalf("load: %v (%d rows)", err, len(got))
	}
	if got[0].UsageCount != 3 {
		t.Errorf("usage count = %d, want 3", got[0].UsageCount)
	}
}

func TestRecordExampleFeedback_RejectionDoesNotBumpSuccess(t *testing.T) {
	db := testDB(t)
	id, _ := InsertWorkedExample(db, WorkedExample{
		MachineType: "general", TemplateType: "default", FieldName: "x",
		InputContext: "ctx", ExpectedOutput: "v", ConfidenceScore: 0.75,
	})

	if err := RecordExampleFeedback(db, id, "rejected", "better value", "tester"); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	got, _ := GetWorkedExamplesByIDs(db, []int64{id})
	if got[0].SuccessCount != 0 {
		t.Errorf("rejection bumped success count: %d", got[0].SuccessCount)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM example_feedback WHERE example_id = ?`, id).Scan(&rows); err != nil {
		t.Fatalf("count feedback: %v", err)
	}
	if rows != 1 {
		t.Errorf("feedback rows = %d, want 1", rows)
	}
}

func TestGetExampleStats(t *testing.T) {
	db := testDB(t)
	id1, _ := InsertWorkedExample(db, WorkedExample{MachineType: "filling", TemplateType: "default", FieldName: "a", InputContext: "c", ExpectedOutput: "v", ConfidenceScore: 0.75})
	_, _ = InsertWorkedExample(db, WorkedExample{MachineType: "capping", TemplateType: "default", FieldName: "b", InputContext: "c", ExpectedOutput: "v", ConfidenceScore: 0.75})

	_ = BumpExampleUsage(db, []int64{id1, id1})
	_ = RecordExampleFeedback(db, id1, "confirmed", "", "")

	stats, err := GetExampleStats(db)
	if err != nil {
		t.Fatalf("GetExampleStats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d", stats.Total)
	}
	if stats.ByMachineType["filling"] != 1 || stats.ByMachineType["capping"] != 1 {
		t.Errorf("by machine type = %v", stats.ByMachineType)
	}
	if stats.TotalUsage != 2 {
		t.Errorf("usage = %d", stats.TotalUsage)
	}
	if stats.SuccessRate() != 0.5 {
		t.Errorf("success rate = %v", stats.SuccessRate())
	}
}

func TestGetWorkedExamplesByIDs_PreservesOrder(t *testing.T) {
	db := testDB(t)
	idA, _ := InsertWorkedExample(db, WorkedExample{MachineType: "g", TemplateType: "default", FieldName: "x", InputContext: "a", ExpectedOutput: "1", ConfidenceScore: 0.75})
	idB, _ := InsertWorkedExample(db, WorkedExample{MachineType: "g", TemplateType: "default", FieldName: "x", InputContext: "b", ExpectedOutput: "2", ConfidenceScore: 0.75})

	got, err := GetWorkedExamplesByIDs(db, []int64{idB, idA, 9999})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].ID != idB || got[1].ID != idA {
		t.Errorf("order not preserved: %+v", got)
	}
}
