package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/dmarcviz/internal/models"
)

// AnalysisRepository runs the aggregate queries behind line charts, maps and tables
type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// GetMessageCountPerDay sums message counts per report begin day for one filter set.
// Observations are ascending and one per day.
func (r *AnalysisRepository) GetMessageCountPerDay(ctx context.Context, reportType string, filters models.Filters, begin, end time.Time) ([]models.Observation, error) {
	scope := queryScope{ReportType: reportType, Begin: begin, End: end, FilterSets: []models.Filters{filters}}
	where, args := scope.where()

	query := `SELECT strftime('%Y-%m-%d', rep.date_range_begin, 'unixepoch') AS day, SUM(r.count)` +
		recordsFrom + where + ` GROUP BY day ORDER BY day`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query message count per day: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var day string
		var cnt int
		if err := rows.Scan(&day, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("failed to parse day %q: %w", day, err)
		}
		observations = append(observations, models.Observation{Date: date, Count: cnt})
	}
	return observations, rows.Err()
}

// GetMessageCountPerCountry sums message counts per source country for one filter set.
// Records without a resolved country are left out.
func (r *AnalysisRepository) GetMessageCountPerCountry(ctx context.Context, reportType string, filters models.Filters, begin, end time.Time) ([]models.CountryCount, error) {
	scope := queryScope{ReportType: reportType, Begin: begin, End: end, FilterSets: []models.Filters{filters}}
	where, args := scope.where()

	query := `SELECT r.country_iso_code, SUM(r.count)` + recordsFrom + where +
		` AND r.country_iso_code IS NOT NULL AND r.country_iso_code != ''
		GROUP BY r.country_iso_code ORDER BY r.country_iso_code`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query message count per country: %w", err)
	}
	defer rows.Close()

	var counts []models.CountryCount
	for rows.Next() {
		var c models.CountryCount
		if err := rows.Scan(&c.CountryISOCode, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan country count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetTableRows returns a page of records matching any of the filter sets, ordered by report
// begin. limit <= 0 returns all rows.
func (r *AnalysisRepository) GetTableRows(ctx context.Context, reportType string, filterSets []models.Filters, begin, end time.Time, offset, limit int) (*models.TablePage, error) {
	scope := queryScope{ReportType: reportType, Begin: begin, End: end, FilterSets: filterSets}
	where, args := scope.where()

	page := &models.TablePage{Rows: []models.TableRow{}}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+recordsFrom+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count table rows: %w", err)
	}

	query := `SELECT rep.org_name, rep.report_type, rep.domain, r.dkim, r.spf, r.disposition,
		(SELECT group_concat(a.domain || ' (' || a.result || ')', ', ') FROM auth_results a
			WHERE a.record_id = r.id AND a.kind = 'dkim'),
		(SELECT group_concat(a.domain || ' (' || a.result || ')', ', ') FROM auth_results a
			WHERE a.record_id = r.id AND a.kind = 'spf'),
		r.count, r.source_ip, r.country_iso_code, rep.date_range_begin, rep.date_range_end` +
		recordsFrom + where + ` ORDER BY rep.date_range_begin, r.id`

	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row models.TableRow
		var rawDKIM, rawSPF, country sql.NullString
		var begin, end int64
		err := rows.Scan(&row.ReporterOrg, &row.ReportType, &row.Domain, &row.DKIM, &row.SPF, &row.Disposition,
			&rawDKIM, &rawSPF, &row.Count, &row.SourceIP, &country, &begin, &end)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		row.RawDKIM = rawDKIM.String
		row.RawSPF = rawSPF.String
		row.CountryISOCode = country.String
		row.DateRangeBegin = time.Unix(begin, 0).UTC().Format("2006/01/02")
		row.DateRangeEnd = time.Unix(end, 0).UTC().Format("2006/01/02")
		page.Rows = append(page.Rows, row)
	}
	return page, rows.Err()
}
