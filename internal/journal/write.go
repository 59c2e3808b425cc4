package journal

import (
	"context"
	"fmt"
	"sort"

	"github.com/formulary-sh/formulary/internal/engine"
	"github.com/formulary-sh/formulary/internal/ir"
)

// BeginRun inserts the run row. Uses ON CONFLICT(token) DO NOTHING for
// idempotency: recording the same run twice is a no-op.
func (j *Journal) BeginRun(ctx context.Context, token string, flavor ir.Flavor, classification string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (token, flavor, classification)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, string(flavor), classification)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's halt outcome.
func (j *Journal) FinishRun(ctx context.Context, token string, halted bool, haltReason string) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET halted = ?, halt_reason = ? WHERE token = ?
	`, halted, haltReason, token)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFiring writes one unit's firing count for a run. Idempotent on
// (run, unit identity); a replayed write is silently ignored.
func (j *Journal) RecordFiring(ctx context.Context, token string, id ir.UnitID, fires int, seq int64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO firings (run_token, namespace, name, kind, fires, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, namespace, name, kind) DO NOTHING
	`, token, id.Namespace, id.Name, string(id.Kind), fires, seq)
	if err != nil {
		return fmt.Errorf("record firing: %w", err)
	}
	return nil
}

// RecordReport writes one report entry. The dedup key is the engine's
// own (unit identity, NFC message) hash, so the journal's uniqueness
// constraint mirrors the run-level dedup exactly. Returns whether a new
// row was inserted.
func (j *Journal) RecordReport(ctx context.Context, token string, rec engine.ReportRecord, seq int64) (bool, error) {
	result, err := j.db.ExecContext(ctx, `
		INSERT INTO report_entries
		(run_token, dedup_key, namespace, name, kind, severity, message, link, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, dedup_key) DO NOTHING
	`,
		token,
		ir.DedupKey(rec.Unit, rec.Entry.Message),
		rec.Unit.Namespace,
		rec.Unit.Name,
		string(rec.Unit.Kind),
		string(rec.Entry.Severity),
		rec.Entry.Message,
		rec.Entry.Link,
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("record report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record report: rows affected: %w", err)
	}
	return n > 0, nil
}

// RecordOutcome journals a completed run context in one transaction:
// the run row, every report entry in accumulation order, and per-unit
// firing counts in identity order.
func (j *Journal) RecordOutcome(ctx context.Context, run *engine.RunContext, classification string, clock *Clock) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record outcome: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (token, flavor, classification, halted, halt_reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, run.Token(), string(run.Flavor()), classification, run.Halted(), run.HaltReason())
	if err != nil {
		return fmt.Errorf("record outcome: run row: %w", err)
	}

	for _, rec := range run.Report() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO report_entries
			(run_token, dedup_key, namespace, name, kind, severity, message, link, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_token, dedup_key) DO NOTHING
		`,
			run.Token(),
			ir.DedupKey(rec.Unit, rec.Entry.Message),
			rec.Unit.Namespace,
			rec.Unit.Name,
			string(rec.Unit.Kind),
			string(rec.Entry.Severity),
			rec.Entry.Message,
			rec.Entry.Link,
			clock.Next(),
		)
		if err != nil {
			return fmt.Errorf("record outcome: report entry: %w", err)
		}
	}

	counts := run.FiringCounts()
	ids := make([]ir.UnitID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a].String() < ids[b].String() })

	for _, id := range ids {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO firings (run_token, namespace, name, kind, fires, seq)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_token, namespace, name, kind) DO NOTHING
		`, run.Token(), id.Namespace, id.Name, string(id.Kind), counts[id], clock.Next())
		if err != nil {
			return fmt.Errorf("record outcome: firing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record outcome: commit: %w", err)
	}
	return nil
}
