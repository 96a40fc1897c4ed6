// Package dmarc parses DMARC aggregate (RUA) XML reports.
package dmarc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jengzang/dmarcviz/internal/models"
)

// ErrInvalidReport is returned when a report lacks required fields
var ErrInvalidReport = errors.New("invalid aggregate report")

type feedback struct {
	XMLName         xml.Name        `xml:"feedback"`
	Version         string          `xml:"version"`
	ReportMetadata  reportMetadata  `xml:"report_metadata"`
	PolicyPublished policyPublished `xml:"policy_published"`
	Records         []record        `xml:"record"`
}

type reportMetadata struct {
	OrgName          string    `xml:"org_name"`
	Email            string    `xml:"email"`
	ExtraContactInfo string    `xml:"extra_contact_info"`
	ReportID         string    `xml:"report_id"`
	DateRange        dateRange `xml:"date_range"`
	Errors           []string  `xml:"error"`
}

type dateRange struct {
	Begin string `xml:"begin"`
	End   string `xml:"end"`
}

type policyPublished struct {
	Domain string `xml:"domain"`
	ADKIM  string `xml:"adkim"`
	ASPF   string `xml:"aspf"`
	P      string `xml:"p"`
	SP     string `xml:"sp"`
	Pct    string `xml:"pct"`
}

type record struct {
	Row         row         `xml:"row"`
	Identifiers identifiers `xml:"identifiers"`
	AuthResults authResults `xml:"auth_results"`
}

type row struct {
	SourceIP        string          `xml:"source_ip"`
	Count           string          `xml:"count"`
	PolicyEvaluated policyEvaluated `xml:"policy_evaluated"`
}

type policyEvaluated struct {
	Disposition string   `xml:"disposition"`
	DKIM        string   `xml:"dkim"`
	SPF         string   `xml:"spf"`
	Reasons     []reason `xml:"reason"`
}

type reason struct {
	Type    string `xml:"type"`
	Comment string `xml:"comment"`
}

type identifiers struct {
	EnvelopeTo   string `xml:"envelope_to"`
	EnvelopeFrom string `xml:"envelope_from"`
	HeaderFrom   string `xml:"header_from"`
}

type authResults struct {
	DKIM []dkimResult `xml:"dkim"`
	SPF  []spfResult  `xml:"spf"`
}

type dkimResult struct {
	Domain   string `xml:"domain"`
	Selector string `xml:"selector"`
	Result   string `xml:"result"`
}

type spfResult struct {
	Domain string `xml:"domain"`
	Scope  string `xml:"scope"`
	Result string `xml:"result"`
}

// Parse decodes one aggregate report. reportType is models.ReportTypeIncoming or
// models.ReportTypeOutgoing. Country codes are left empty.
func Parse(r io.Reader, reportType string) (*models.Report, error) {
	var fb feedback
	if err := xml.NewDecoder(r).Decode(&fb); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	meta := fb.ReportMetadata
	if meta.ReportID == "" || meta.OrgName == "" {
		return nil, fmt.Errorf("%w: missing report_id or org_name", ErrInvalidReport)
	}
	if fb.PolicyPublished.Domain == "" {
		return nil, fmt.Errorf("%w: missing policy_published domain", ErrInvalidReport)
	}

	begin, err := parseTimestamp(meta.DateRange.Begin)
	if err != nil {
		return nil, fmt.Errorf("%w: date_range begin: %v", ErrInvalidReport, err)
	}
	end, err := parseTimestamp(meta.DateRange.End)
	if err != nil {
		return nil, fmt.Errorf("%w: date_range end: %v", ErrInvalidReport, err)
	}

	report := &models.Report{
		ReportType:       reportType,
		ReportID:         trim(meta.ReportID),
		Version:          trim(fb.Version),
		OrgName:          trim(meta.OrgName),
		Email:            trim(meta.Email),
		ExtraContactInfo: trim(meta.ExtraContactInfo),
		DateRangeBegin:   begin,
		DateRangeEnd:     end,
		Domain:           trim(fb.PolicyPublished.Domain),
		ADKIM:            lower(fb.PolicyPublished.ADKIM),
		ASPF:             lower(fb.PolicyPublished.ASPF),
		P:                lower(fb.PolicyPublished.P),
		SP:               lower(fb.PolicyPublished.SP),
	}
	if pct := trim(fb.PolicyPublished.Pct); pct != "" {
		report.Pct, err = strconv.Atoi(pct)
		if err != nil {
			return nil, fmt.Errorf("%w: pct %q", ErrInvalidReport, pct)
		}
	}
	for _, e := range meta.Errors {
		if e = trim(e); e != "" {
			report.Errors = append(report.Errors, e)
		}
	}

	for i, rec := range fb.Records {
		parsed, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidReport, i, err)
		}
		report.Records = append(report.Records, parsed)
	}

	return report, nil
}

func parseRecord(rec record) (models.Record, error) {
	count, err := strconv.Atoi(trim(rec.Row.Count))
	if err != nil || count < 0 {
		return models.Record{}, fmt.Errorf("invalid count %q", rec.Row.Count)
	}

	pe := rec.Row.PolicyEvaluated
	out := models.Record{
		SourceIP:     trim(rec.Row.SourceIP),
		Count:        count,
		Disposition:  lower(pe.Disposition),
		DKIM:         lower(pe.DKIM),
		SPF:          lower(pe.SPF),
		EnvelopeTo:   trim(rec.Identifiers.EnvelopeTo),
		EnvelopeFrom: trim(rec.Identifiers.EnvelopeFrom),
		HeaderFrom:   trim(rec.Identifiers.HeaderFrom),
	}
	if out.SourceIP == "" {
		return models.Record{}, errors.New("missing source_ip")
	}

	for _, r := range pe.Reasons {
		out.Reasons = append(out.Reasons, models.PolicyOverrideReason{Type: lower(r.Type), Comment: trim(r.Comment)})
	}
	for _, d := range rec.AuthResults.DKIM {
		out.AuthResults = append(out.AuthResults, models.AuthResult{
			Kind:     models.AuthKindDKIM,
			Domain:   trim(d.Domain),
			Selector: trim(d.Selector),
			Result:   lower(d.Result),
		})
	}
	for _, s := range rec.AuthResults.SPF {
		out.AuthResults = append(out.AuthResults, models.AuthResult{
			Kind:   models.AuthKindSPF,
			Domain: trim(s.Domain),
			Scope:  lower(s.Scope),
			Result: lower(s.Result),
		})
	}

	return out, nil
}

// parseTimestamp accepts Unix seconds, some reporters send them as floats
func parseTimestamp(s string) (int64, error) {
	s = trim(s)
	if s == "" {
		return 0, errors.New("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return int64(f), nil
}

func trim(s string) string  { return strings.TrimSpace(s) }
func lower(s string) string { return strings.ToLower(trim(s)) }
