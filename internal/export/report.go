package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"backoffice/internal/access"
	"backoffice/internal/model"
)

// ReportInput is everything the printable report shows.
type ReportInput struct {
	Rows        []model.Expense
	Filter      access.ExpenseFilter
	Users       []model.User
	GeneratedAt time.Time
	Formatter   Formatter
}

// Total sums the amounts of rows.
func Total(rows []model.Expense) float64 {
	var sum float64
	for _, e := range rows {
		sum += e.Amount
	}
	return sum
}

// FilterSummary lists the active filters, semicolon separated.
func FilterSummary(filter access.ExpenseFilter, users []model.User) string {
	var parts []string
	if filter.UserID != 0 {
		name := access.UnknownUser
		for _, u := range users {
			if u.ID == filter.UserID {
				name = u.DisplayName()
				break
			}
		}
		parts = append(parts, "User: "+name)
	}
	if filter.Category != "" {
		parts = append(parts, "Category: "+filter.Category)
	}
	if filter.From != "" {
		parts = append(parts, "From: "+filter.From)
	}
	if filter.To != "" {
		parts = append(parts, "To: "+filter.To)
	}
	return strings.Join(parts, "; ")
}

type reportRow struct {
	Date, User, Category, Description, Amount string
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 8px; text-align: left; }
td.amount, th.amount { text-align: right; }
tr.total td { font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated: {{.Generated}}</p>
<p>Filters: {{.Filters}}</p>
<table>
<thead><tr><th>Date</th><th>User</th><th>Category</th><th>Description</th><th class="amount">Amount</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Date}}</td><td>{{.User}}</td><td>{{.Category}}</td><td>{{.Description}}</td><td class="amount">{{.Amount}}</td></tr>
{{- end}}
<tr class="total"><td colspan="4">Total</td><td class="amount">{{.Total}}</td></tr>
</tbody>
</table>
</body>
</html>
`))

// HTMLReport renders the printable expense report.
func HTMLReport(in ReportInput) (string, error) {
	filters := FilterSummary(in.Filter, in.Users)
	if filters == "" {
		filters = "None"
	}
	rows := make([]reportRow, 0, len(in.Rows))
	for _, e := range in.Rows {
		rows = append(rows, reportRow{
			Date:        LocaleDate(e.Date),
			User:        e.UserName,
			Category:    e.Category,
			Description: e.Description,
			Amount:      in.Formatter.Amount(e.Amount),
		})
	}

	var buf bytes.Buffer
	err := reportTmpl.Execute(&buf, struct {
		Title     string
		Generated string
		Filters   string
		Rows      []reportRow
		Total     string
	}{
		Title:     "Expense Report",
		Generated: in.GeneratedAt.Format("1/2/2006, 3:04:05 PM"),
		Filters:   filters,
		Rows:      rows,
		Total:     in.Formatter.Amount(Total(in.Rows)),
	})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
