package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/formulary-sh/formulary/internal/engine"
	"github.com/formulary-sh/formulary/internal/ir"
)

// createTestJournal creates a file-backed journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	j := createTestJournal(t)

	if err := j.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := j.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestBeginRun_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := j.BeginRun(ctx, "run-1", ir.FlavorAdvisory, "security"); err != nil {
			t.Fatalf("BeginRun() iteration %d failed: %v", i, err)
		}
	}

	rec, err := j.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if rec.Flavor != ir.FlavorAdvisory || rec.Classification != "security" {
		t.Errorf("unexpected run record: %+v", rec)
	}
}

func TestRecordReport_DeduplicatesOnUnitAndMessage(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	if err := j.BeginRun(ctx, "run-1", ir.FlavorAdvisory, ""); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	clock := NewClock()
	rec := engine.ReportRecord{
		Unit:  ir.UnitID{Namespace: "core", Name: "warn-old-flask", Kind: ir.KindStep},
		Entry: ir.ReportEntry{Severity: ir.SeverityWarning, Message: "flask is old"},
	}

	inserted, err := j.RecordReport(ctx, "run-1", rec, clock.Next())
	if err != nil {
		t.Fatalf("first RecordReport() failed: %v", err)
	}
	if !inserted {
		t.Error("first write should insert")
	}

	inserted, err = j.RecordReport(ctx, "run-1", rec, clock.Next())
	if err != nil {
		t.Fatalf("second RecordReport() failed: %v", err)
	}
	if inserted {
		t.Error("replayed write should be a no-op")
	}

	// A different message from the same unit is a distinct entry.
	rec.Entry.Message = "flask is really old"
	inserted, err = j.RecordReport(ctx, "run-1", rec, clock.Next())
	if err != nil {
		t.Fatalf("third RecordReport() failed: %v", err)
	}
	if !inserted {
		t.Error("distinct message should insert")
	}

	report, err := j.ReadReport(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadReport() failed: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("got %d report rows, want 2", len(report))
	}
	if report[0].Entry.Message != "flask is old" {
		t.Errorf("rows out of write order: %+v", report)
	}
}

func TestRecordOutcome_RoundTrip(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	run := engine.NewRunContext("run-7", ir.FlavorExploratory)
	stepID := ir.UnitID{Namespace: "core", Name: "warn-old-flask", Kind: ir.KindStep}
	wrapID := ir.UnitID{Namespace: "core", Name: "note-stack", Kind: ir.KindWrap}

	run.AddReport(stepID, ir.ReportEntry{Severity: ir.SeverityWarning, Message: "flask is old"})
	run.AddReport(wrapID, ir.ReportEntry{Severity: ir.SeverityInfo, Message: "stack accepted"})
	run.RecordFiring(stepID)
	run.RecordFiring(stepID)
	run.RecordFiring(wrapID)
	run.Halt("Stopping the pipeline")

	clock := NewClock()
	if err := j.RecordOutcome(ctx, run, "security", clock); err != nil {
		t.Fatalf("RecordOutcome() failed: %v", err)
	}

	rec, err := j.ReadRun(ctx, "run-7")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if !rec.Halted || rec.HaltReason != "Stopping the pipeline" {
		t.Errorf("halt outcome not journaled: %+v", rec)
	}
	if rec.Flavor != ir.FlavorExploratory {
		t.Errorf("flavor = %q", rec.Flavor)
	}

	report, err := j.ReadReport(ctx, "run-7")
	if err != nil {
		t.Fatalf("ReadReport() failed: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("got %d report rows, want 2", len(report))
	}
	if report[0].Unit != stepID || report[1].Unit != wrapID {
		t.Errorf("report order not preserved: %+v", report)
	}

	firings, err := j.ReadFirings(ctx, "run-7")
	if err != nil {
		t.Fatalf("ReadFirings() failed: %v", err)
	}
	counts := make(map[ir.UnitID]int)
	for _, f := range firings {
		counts[f.Unit] = f.Fires
	}
	if counts[stepID] != 2 || counts[wrapID] != 1 {
		t.Errorf("firing counts = %v", counts)
	}

	// Replaying the whole outcome is a no-op.
	if err := j.RecordOutcome(ctx, run, "security", clock); err != nil {
		t.Fatalf("replayed RecordOutcome() failed: %v", err)
	}
	report, err = j.ReadReport(ctx, "run-7")
	if err != nil {
		t.Fatalf("ReadReport() after replay failed: %v", err)
	}
	if len(report) != 2 {
		t.Errorf("replay duplicated report rows: got %d", len(report))
	}
}

func TestReadRun_MissingRun(t *testing.T) {
	j := createTestJournal(t)

	if _, err := j.ReadRun(context.Background(), "no-such-run"); err == nil {
		t.Error("expected an error for a run that was never journaled")
	}
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClockAt(10)
	if c.Current() != 10 {
		t.Errorf("Current() = %d, want 10", c.Current())
	}

	prev := c.Current()
	for i := 0; i < 100; i++ {
		next := c.Next()
		if next <= prev {
			t.Fatalf("clock went backwards: %d after %d", next, prev)
		}
		prev = next
	}
}
