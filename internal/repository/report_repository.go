package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/dmarcviz/internal/database"
	"github.com/jengzang/dmarcviz/internal/models"
)

// ReportRepository handles database operations for aggregate reports
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Exists reports whether a report with the same id from the same organisation is stored
func (r *ReportRepository) Exists(ctx context.Context, reportID, orgName string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reports WHERE report_id = ? AND org_name = ?", reportID, orgName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up report: %w", err)
	}
	return n > 0, nil
}

// Create stores a report with its errors, records, reasons and auth results in one transaction
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) (int64, error) {
	var reportID int64

	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO reports
			(report_type, report_id, version, org_name, email, extra_contact_info,
			 date_range_begin, date_range_end, domain, adkim, aspf, p, sp, pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.ReportType, report.ReportID, report.Version, report.OrgName, report.Email,
			report.ExtraContactInfo, report.DateRangeBegin, report.DateRangeEnd, report.Domain,
			report.ADKIM, report.ASPF, report.P, report.SP, report.Pct)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		reportID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		for _, msg := range report.Errors {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO report_errors (report_id, message) VALUES (?, ?)", reportID, msg); err != nil {
				return fmt.Errorf("failed to insert report error: %w", err)
			}
		}

		for i := range report.Records {
			if err := insertRecord(ctx, tx, reportID, &report.Records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	report.ID = reportID
	return reportID, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, reportID int64, rec *models.Record) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO records
		(report_id, source_ip, country_iso_code, count, disposition, dkim, spf,
		 envelope_to, envelope_from, header_from)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reportID, rec.SourceIP, nullable(rec.CountryISOCode), rec.Count, rec.Disposition, rec.DKIM, rec.SPF,
		rec.EnvelopeTo, rec.EnvelopeFrom, rec.HeaderFrom)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ReportID = reportID

	for _, reason := range rec.Reasons {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO policy_override_reasons (record_id, type, comment) VALUES (?, ?, ?)",
			rec.ID, reason.Type, reason.Comment); err != nil {
			return fmt.Errorf("failed to insert override reason: %w", err)
		}
	}

	for _, ar := range rec.AuthResults {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO auth_results (record_id, kind, domain, result, selector, scope) VALUES (?, ?, ?, ?, ?, ?)",
			rec.ID, ar.Kind, ar.Domain, ar.Result, ar.Selector, ar.Scope); err != nil {
			return fmt.Errorf("failed to insert auth result: %w", err)
		}
	}
	return nil
}

// Summary holds overall counters of one report type
type Summary struct {
	DomainCount  int
	ReportCount  int
	MessageCount int
}

// GetSummary counts distinct policy domains, reports and messages of a report type
func (r *ReportRepository) GetSummary(ctx context.Context, reportType string) (*Summary, error) {
	var s Summary
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT domain), COUNT(*) FROM reports WHERE report_type = ?", reportType).
		Scan(&s.DomainCount, &s.ReportCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(r.count), 0)`+recordsFrom+
		` WHERE rep.report_type = ?`, reportType).Scan(&s.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return &s, nil
}

// resultColumns are the record columns the overview may aggregate by
var resultColumns = map[string]string{
	"dkim":        "r.dkim",
	"spf":         "r.spf",
	"disposition": "r.disposition",
}

// GetMessageCountBy sums message counts per value of column (dkim, spf or disposition)
func (r *ReportRepository) GetMessageCountBy(ctx context.Context, reportType, column string) (map[string]int, error) {
	col, ok := resultColumns[column]
	if !ok {
		return nil, fmt.Errorf("unsupported column %q", column)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+col+`, SUM(r.count)`+recordsFrom+
		` WHERE rep.report_type = ? GROUP BY `+col, reportType)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s counts: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var cnt int
		if err := rows.Scan(&label, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts[label] = cnt
	}
	return counts, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
