package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/brightledger/finance-analytics-core/internal/errs"
	"github.com/brightledger/finance-analytics-core/internal/model"
)

type weeklyReportRow struct {
	ReportID              string    `bigquery:"report_id"`
	UserID                string    `bigquery:"user_id"`
	WeekStart             time.Time `bigquery:"week_start"`
	WeekEnd               time.Time `bigquery:"week_end"`
	LocationCity          string    `bigquery:"location_city"`
	LocationState         string    `bigquery:"location_state"`
	LocationCountry       string    `bigquery:"location_country"`
	ItemsAnalyzed         int64     `bigquery:"items_analyzed"`
	ItemsWithAlternatives int64     `bigquery:"items_with_alternatives"`
	TotalSavings          float64   `bigquery:"total_savings"`
	FindingsJSON          string    `bigquery:"findings_json"`
	McpCallsMade          int64     `bigquery:"mcp_calls_made"`
	ProcessingTimeMs      int64     `bigquery:"processing_time_ms"`
	Notes                 bigquery.NullString `bigquery:"notes"`
	CreatedAt             time.Time `bigquery:"created_at"`
	UpdatedAt             time.Time `bigquery:"updated_at"`
}

func (r weeklyReportRow) toModel() model.WeeklyReport {
	var findings []model.Finding
	_ = json.Unmarshal([]byte(r.FindingsJSON), &findings)
	return model.WeeklyReport{
		ReportID:              r.ReportID,
		UserID:                r.UserID,
		WeekStart:             r.WeekStart,
		WeekEnd:               r.WeekEnd,
		Location:              model.ReportLocation{City: r.LocationCity, State: r.LocationState, Country: r.LocationCountry},
		ItemsAnalyzed:         int(r.ItemsAnalyzed),
		ItemsWithAlternatives: int(r.ItemsWithAlternatives),
		TotalSavings:          r.TotalSavings,
		Findings:              findings,
		McpCallsMade:          int(r.McpCallsMade),
		ProcessingTimeMs:      r.ProcessingTimeMs,
		Notes:                 r.Notes.StringVal,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

const reportColumns = `report_id, user_id, week_start, week_end, location_city, location_state,
	location_country, items_analyzed, items_with_alternatives, total_savings, findings_json,
	mcp_calls_made, processing_time_ms, notes, created_at, updated_at`

// Upsert uses a MERGE statement keyed on (user_id, week_start), preserving
// created_at on the matched branch and setting it only on insert —
// BigQuery's closest equivalent to dvloznov's transactional read-then-write
// pattern, expressed as a single atomic statement instead (BigQuery has no
// cross-statement transactions over DML on a single table).
func (s *Store) Upsert(ctx context.Context, report model.WeeklyReport) error {
	findingsJSON, err := json.Marshal(report.Findings)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal findings", err)
	}
	if report.Findings == nil {
		findingsJSON = []byte("[]")
	}

	merge := fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @report_id AS report_id, @user_id AS user_id, @week_start AS week_start) S
		ON T.user_id = S.user_id AND T.week_start = S.week_start
		WHEN MATCHED THEN UPDATE SET
			week_end = @week_end, location_city = @location_city, location_state = @location_state,
			location_country = @location_country, items_analyzed = @items_analyzed,
			items_with_alternatives = @items_with_alternatives, total_savings = @total_savings,
			findings_json = @findings_json, mcp_calls_made = @mcp_calls_made,
			processing_time_ms = @processing_time_ms, notes = @notes, updated_at = @now
		WHEN NOT MATCHED THEN INSERT (report_id, user_id, week_start, week_end, location_city,
			location_state, location_country, items_analyzed, items_with_alternatives,
			total_savings, findings_json, mcp_calls_made, processing_time_ms, notes,
			created_at, updated_at)
		VALUES (S.report_id, S.user_id, S.week_start, @week_end, @location_city, @location_state,
			@location_country, @items_analyzed, @items_with_alternatives, @total_savings,
			@findings_json, @mcp_calls_made, @processing_time_ms, @notes, @now, @now)
	`, s.table("weekly_reports"))

	reportID := report.ReportID
	if reportID == "" {
		reportID = fmt.Sprintf("%s-%s", report.UserID, report.WeekStart.Format(dateLayout))
	}

	q := s.client.Query(merge)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "report_id", Value: reportID},
		{Name: "user_id", Value: report.UserID},
		{Name: "week_start", Value: report.WeekStart},
		{Name: "week_end", Value: report.WeekEnd},
		{Name: "location_city", Value: report.Location.City},
		{Name: "location_state", Value: report.Location.State},
		{Name: "location_country", Value: report.Location.Country},
		{Name: "items_analyzed", Value: report.ItemsAnalyzed},
		{Name: "items_with_alternatives", Value: report.ItemsWithAlternatives},
		{Name: "total_savings", Value: report.TotalSavings},
		{Name: "findings_json", Value: string(findingsJSON)},
		{Name: "mcp_calls_made", Value: report.McpCallsMade},
		{Name: "processing_time_ms", Value: report.ProcessingTimeMs},
		{Name: "notes", Value: report.Notes},
		{Name: "now", Value: time.Now().UTC()},
	}
	if _, err := q.Read(ctx); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "merge weekly report", err)
	}
	return nil
}

func (s *Store) readReports(ctx context.Context, query string, params []bigquery.QueryParameter) ([]model.WeeklyReport, error) {
	q := s.client.Query(query)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "read weekly reports", err)
	}
	var out []model.WeeklyReport
	for {
		var row weeklyReportRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, "iterate weekly reports", err)
		}
		out = append(out, row.toModel())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, userID string, weekStart *time.Time) (model.WeeklyReport, bool, error) {
	var query string
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
	if weekStart != nil {
		query = fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = @user_id AND week_start = @week_start LIMIT 1`, reportColumns, s.table("weekly_reports"))
		params = append(params, bigquery.QueryParameter{Name: "week_start", Value: *weekStart})
	} else {
		query = fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = @user_id ORDER BY week_start DESC LIMIT 1`, reportColumns, s.table("weekly_reports"))
	}
	rows, err := s.readReports(ctx, query, params)
	if err != nil {
		return model.WeeklyReport{}, false, err
	}
	if len(rows) == 0 {
		return model.WeeklyReport{}, false, nil
	}
	return rows[0], true, nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error) {
	if limit <= 0 {
		limit = 4
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = @user_id ORDER BY week_start DESC %s`,
		reportColumns, s.table("weekly_reports"), limitClause(limit))
	return s.readReports(ctx, query, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
}

// AcquireWeeklyLease inserts into a leases table guarded by a uniqueness
// check rather than a true constraint (BigQuery tables carry no unique
// index). It counts existing rows and inserts only when there are none;
// there is no re-read after the insert, so two callers that both pass the
// check before either inserts both acquire the lease. Best-effort by
// nature, as §5 allows.
func (s *Store) AcquireWeeklyLease(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	checkQuery := fmt.Sprintf(`SELECT COUNT(*) AS n FROM %s WHERE user_id = @user_id AND week_start = @week_start`, s.table("weekly_leases"))
	q := s.client.Query(checkQuery)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "week_start", Value: weekStart},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return false, errs.Wrap(errs.StoreUnavailable, "check weekly lease", err)
	}
	var row struct{ N int64 `bigquery:"n"` }
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return false, errs.Wrap(errs.StoreUnavailable, "read weekly lease count", err)
	}
	if row.N > 0 {
		return false, nil
	}

	insert := s.client.Query(fmt.Sprintf(`INSERT INTO %s (user_id, week_start, acquired_at) VALUES (@user_id, @week_start, @now)`, s.table("weekly_leases")))
	insert.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "week_start", Value: weekStart},
		{Name: "now", Value: time.Now().UTC()},
	}
	if _, err := insert.Read(ctx); err != nil {
		return false, errs.Wrap(errs.StoreUnavailable, "insert weekly lease", err)
	}
	return true, nil
}

func (s *Store) ReleaseWeeklyLease(ctx context.Context, userID string, weekStart time.Time) error {
	del := s.client.Query(fmt.Sprintf(`DELETE FROM %s WHERE user_id = @user_id AND week_start = @week_start`, s.table("weekly_leases")))
	del.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "week_start", Value: weekStart},
	}
	if _, err := del.Read(ctx); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "release weekly lease", err)
	}
	return nil
}
