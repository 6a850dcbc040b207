package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
)

func (s *Store) Upsert(ctx context.Context, report model.WeeklyReport) error {
	locJSON, _ := json.Marshal(report.Location)
	findingsJSON, _ := json.Marshal(report.Findings)
	if report.Findings == nil {
		findingsJSON = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.StoreUnavailable, "begin upsert tx", err)
	}
	defer tx.Rollback()

	var reportID string
	var createdAt time.Time
	row := tx.QueryRowContext(ctx, `SELECT report_id, created_at FROM weekly_reports WHERE user_id = ? AND week_start = ?`,
		report.UserID, report.WeekStart)
	err = row.Scan(&reportID, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		if report.ReportID == "" {
			report.ReportID = uuid.New().String()
		}
		if report.CreatedAt.IsZero() {
			report.CreatedAt = time.Now().UTC()
		}
		report.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO weekly_reports (report_id, user_id, week_start, week_end, location,
				items_analyzed, items_with_alternatives, total_savings, findings,
				mcp_calls_made, processing_time_ms, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.ReportID, report.UserID, report.WeekStart, report.WeekEnd, string(locJSON),
			report.ItemsAnalyzed, report.ItemsWithAlternatives, report.TotalSavings, string(findingsJSON),
			report.McpCallsMade, report.ProcessingTimeMs, report.Notes, report.CreatedAt, report.UpdatedAt)
		if err != nil {
			return errs.Wrap(errs.StoreUnavailable, "insert weekly report", err)
		}
	case err != nil:
		return errs.Wrap(errs.StoreUnavailable, "query existing weekly report", err)
	default:
		// Existing row: preserve created_at, refresh updated_at (invariant 4).
		report.ReportID = reportID
		report.CreatedAt = createdAt
		report.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE weekly_reports SET week_end = ?, location = ?, items_analyzed = ?,
				items_with_alternatives = ?, total_savings = ?, findings = ?,
				mcp_calls_made = ?, processing_time_ms = ?, notes = ?, updated_at = ?
			WHERE report_id = ?`,
			report.WeekEnd, string(locJSON), report.ItemsAnalyzed, report.ItemsWithAlternatives,
			report.TotalSavings, string(findingsJSON), report.McpCallsMade, report.ProcessingTimeMs,
			report.Notes, report.UpdatedAt, report.ReportID)
		if err != nil {
			return errs.Wrap(errs.StoreUnavailable, "update weekly report", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "commit upsert tx", err)
	}
	return nil
}

const reportColumns = `report_id, user_id, week_start, week_end, location, items_analyzed,
	items_with_alternatives, total_savings, findings, mcp_calls_made, processing_time_ms,
	notes, created_at, updated_at`

func scanReport(row *sql.Row) (model.WeeklyReport, error) {
	var r model.WeeklyReport
	var locJSON, findingsJSON string
	var notes sql.NullString
	err := row.Scan(&r.ReportID, &r.UserID, &r.WeekStart, &r.WeekEnd, &locJSON,
		&r.ItemsAnalyzed, &r.ItemsWithAlternatives, &r.TotalSavings, &findingsJSON,
		&r.McpCallsMade, &r.ProcessingTimeMs, &notes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Notes = notes.String
	_ = json.Unmarshal([]byte(locJSON), &r.Location)
	_ = json.Unmarshal([]byte(findingsJSON), &r.Findings)
	return r, nil
}

func (s *Store) Get(ctx context.Context, userID string, weekStart *time.Time) (model.WeeklyReport, bool, error) {
	var row *sql.Row
	if weekStart != nil {
		row = s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM weekly_reports WHERE user_id = ? AND week_start = ?`, userID, *weekStart)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM weekly_reports WHERE user_id = ? ORDER BY week_start DESC LIMIT 1`, userID)
	}
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return model.WeeklyReport{}, false, nil
	}
	if err != nil {
		return model.WeeklyReport{}, false, errs.Wrap(errs.StoreUnavailable, "get weekly report", err)
	}
	return r, true, nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error) {
	if limit <= 0 {
		limit = 4
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM weekly_reports WHERE user_id = ? ORDER BY week_start DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "list weekly report history", err)
	}
	defer rows.Close()

	var out []model.WeeklyReport
	for rows.Next() {
		var r model.WeeklyReport
		var locJSON, findingsJSON string
		var notes sql.NullString
		if err := rows.Scan(&r.ReportID, &r.UserID, &r.WeekStart, &r.WeekEnd, &locJSON,
			&r.ItemsAnalyzed, &r.ItemsWithAlternatives, &r.TotalSavings, &findingsJSON,
			&r.McpCallsMade, &r.ProcessingTimeMs, &notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, "scan weekly report history row", err)
		}
		r.Notes = notes.String
		_ = json.Unmarshal([]byte(locJSON), &r.Location)
		_ = json.Unmarshal([]byte(findingsJSON), &r.Findings)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AcquireWeeklyLease uses INSERT ... ON CONFLICT DO NOTHING against
// weekly_leases as the best-effort coordination key named in §5: only the
// writer whose INSERT actually affects a row holds the lease.
func (s *Store) AcquireWeeklyLease(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_leases (user_id, week_start, acquired_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, week_start) DO NOTHING`,
		userID, weekStart, time.Now().UTC())
	if err != nil {
		return false, errs.Wrap(errs.StoreUnavailable, "acquire weekly lease", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Wrap(errs.StoreUnavailable, "check weekly lease result", err)
	}
	return n > 0, nil
}

func (s *Store) ReleaseWeeklyLease(ctx context.Context, userID string, weekStart time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM weekly_leases WHERE user_id = ? AND week_start = ?`, userID, weekStart)
	if err != nil {
		return errs.Wrap(errs.StoreUnavailable, "release weekly lease", err)
	}
	return nil
}
