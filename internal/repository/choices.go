package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jengzang/dmarcviz/internal/models"
)

var choiceQueries = map[string]string{
	models.ChoiceReporter: `SELECT DISTINCT rep.org_name FROM reports rep
		WHERE rep.report_type = ? AND (rep.org_name LIKE ? ESCAPE '\' OR rep.email LIKE ? ESCAPE '\')
		ORDER BY rep.org_name LIMIT ?`,
	models.ChoiceReportee: `SELECT DISTINCT rep.domain FROM reports rep
		WHERE rep.report_type = ? AND rep.domain LIKE ? ESCAPE '\'
		ORDER BY rep.domain LIMIT ?`,
	models.ChoiceDKIMDomain: authDomainChoices("dkim"),
	models.ChoiceSPFDomain:  authDomainChoices("spf"),
}

func authDomainChoices(kind string) string {
	return `SELECT DISTINCT a.domain FROM auth_results a
		JOIN records r ON r.id = a.record_id
		JOIN reports rep ON rep.id = r.report_id
		WHERE rep.report_type = ? AND a.kind = '` + kind + `' AND a.domain LIKE ? ESCAPE '\'
		ORDER BY a.domain LIMIT ?`
}

// Choices returns up to q.Limit distinct stored values of q.Kind that contain q.Query,
// ignoring ASCII case. Reporters also match on their contact email.
func (r *ReportRepository) Choices(ctx context.Context, q models.ChoiceQuery) ([]string, error) {
	query, ok := choiceQueries[q.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported choice kind %q", q.Kind)
	}

	pattern := "%" + escapeLike(q.Query) + "%"
	args := []interface{}{q.ReportType, pattern}
	if q.Kind == models.ChoiceReporter {
		args = append(args, pattern)
	}
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s choices: %w", q.Kind, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s choice: %w", q.Kind, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
