package journal

import (
	"context"
	"fmt"

	"github.com/formulary-sh/formulary/internal/ir"
)

// RunRecord is one journaled run.
type RunRecord struct {
	Token          string
	Flavor         ir.Flavor
	Classification string
	Halted         bool
	HaltReason     string
}

// FiringRecord is one unit's firing count within a run.
type FiringRecord struct {
	Unit  ir.UnitID
	Fires int
	Seq   int64
}

// ReportRow is one journaled report entry.
type ReportRow struct {
	Unit  ir.UnitID
	Entry ir.ReportEntry
	Seq   int64
}

// ReadRun retrieves a run by token. Returns sql.ErrNoRows if the run
// was never journaled.
func (j *Journal) ReadRun(ctx context.Context, token string) (RunRecord, error) {
	var (
		rec    RunRecord
		flavor string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT token, flavor, classification, halted, halt_reason
		FROM runs WHERE token = ?
	`, token).Scan(&rec.Token, &flavor, &rec.Classification, &rec.Halted, &rec.HaltReason)
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run: %w", err)
	}
	rec.Flavor = ir.Flavor(flavor)
	return rec, nil
}

// ReadFirings returns the run's firing counts in write order.
func (j *Journal) ReadFirings(ctx context.Context, token string) ([]FiringRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT namespace, name, kind, fires, seq
		FROM firings
		WHERE run_token = ?
		ORDER BY seq ASC, id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []FiringRecord{}
	for rows.Next() {
		var (
			rec  FiringRecord
			kind string
		)
		if err := rows.Scan(&rec.Unit.Namespace, &rec.Unit.Name, &kind, &rec.Fires, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		rec.Unit.Kind = ir.Kind(kind)
		firings = append(firings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// ReadReport returns the run's deduplicated report entries in write
// order, which is the engine's accumulation order.
func (j *Journal) ReadReport(ctx context.Context, token string) ([]ReportRow, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT namespace, name, kind, severity, message, link, seq
		FROM report_entries
		WHERE run_token = ?
		ORDER BY seq ASC, id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	defer rows.Close()

	report := []ReportRow{}
	for rows.Next() {
		var (
			row      ReportRow
			kind     string
			severity string
		)
		if err := rows.Scan(&row.Unit.Namespace, &row.Unit.Name, &kind, &severity, &row.Entry.Message, &row.Entry.Link, &row.Seq); err != nil {
			return nil, fmt.Errorf("scan report entry: %w", err)
		}
		row.Unit.Kind = ir.Kind(kind)
		row.Entry.Severity = ir.Severity(severity)
		report = append(report, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report: %w", err)
	}
	return report, nil
}
