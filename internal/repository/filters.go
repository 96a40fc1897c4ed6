package repository

import (
	"strings"
	"time"

	"github.com/jengzang/dmarcviz/internal/models"
)

// recordsFrom joins records to their reports; conditions use the aliases r and rep
const recordsFrom = ` FROM records r JOIN reports rep ON rep.id = r.report_id`

// queryScope selects the records of a view: report type and day range apply to every
// filter set, the filter sets themselves are ORed
type queryScope struct {
	ReportType string
	Begin      time.Time // First day, inclusive
	End        time.Time // Last day, inclusive
	FilterSets []models.Filters
}

// where builds the WHERE clause and its arguments
func (s queryScope) where() (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if s.ReportType != "" {
		conditions = append(conditions, "rep.report_type = ?")
		args = append(args, s.ReportType)
	}
	if !s.Begin.IsZero() {
		conditions = append(conditions, "rep.date_range_begin >= ?")
		args = append(args, s.Begin.Unix())
	}
	if !s.End.IsZero() {
		// End is a whole day, compare against the following midnight
		conditions = append(conditions, "rep.date_range_begin < ?")
		args = append(args, s.End.AddDate(0, 0, 1).Unix())
	}

	if len(s.FilterSets) > 0 {
		var groups []string
		for _, f := range s.FilterSets {
			group, groupArgs := filterConditions(f)
			groups = append(groups, "("+group+")")
			args = append(args, groupArgs...)
		}
		conditions = append(conditions, "("+strings.Join(groups, " OR ")+")")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// filterConditions ANDs the non-empty fields of f; values of one field are ORed via IN
func filterConditions(f models.Filters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		conditions = append(conditions, column+" IN ("+placeholders(len(values))+")")
		for _, v := range values {
			args = append(args, v)
		}
	}

	add("rep.org_name", f.ReportSenders)
	add("rep.domain", f.ReceiverDomains)
	add("r.source_ip", f.SourceIPs)
	add("r.dkim", f.DKIMResults)
	add("r.spf", f.SPFResults)
	add("r.disposition", f.Dispositions)

	if cond, condArgs := authResultCondition("dkim", f.RawDKIMDomains, f.RawDKIMResults); cond != "" {
		conditions = append(conditions, cond)
		args = append(args, condArgs...)
	}
	if cond, condArgs := authResultCondition("spf", f.RawSPFDomains, f.RawSPFResults); cond != "" {
		conditions = append(conditions, cond)
		args = append(args, condArgs...)
	}
	if f.MultipleDKIM {
		conditions = append(conditions,
			"(SELECT COUNT(*) FROM auth_results a WHERE a.record_id = r.id AND a.kind = 'dkim') > 1")
	}

	if len(conditions) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conditions, " AND "), args
}

// authResultCondition matches records with at least one auth result of kind whose domain
// and result are both in the given lists. An empty list does not constrain its column.
func authResultCondition(kind string, domains, results []string) (string, []interface{}) {
	if len(domains) == 0 && len(results) == 0 {
		return "", nil
	}

	cond := "EXISTS (SELECT 1 FROM auth_results a WHERE a.record_id = r.id AND a.kind = ?"
	args := []interface{}{kind}
	if len(domains) > 0 {
		cond += " AND a.domain IN (" + placeholders(len(domains)) + ")"
		for _, d := range domains {
			args = append(args, d)
		}
	}
	if len(results) > 0 {
		cond += " AND a.result IN (" + placeholders(len(results)) + ")"
		for _, r := range results {
			args = append(args, r)
		}
	}
	return cond + ")", args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
