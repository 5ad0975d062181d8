package export

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/model"
)

// CSVPrefix starts every CSV export file name.
const CSVPrefix = "expenses_report_"

var csvHeader = []string{"Date", "User", "Category", "Description", "Amount"}

// CSV renders rows as comma separated text. The description column is
// always quoted; the amount is the raw number.
func CSV(rows []model.Expense) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(csvHeader, ","))
	buf.WriteByte('\n')
	for _, e := range rows {
		buf.WriteString(csvField(LocaleDate(e.Date)))
		buf.WriteByte(',')
		buf.WriteString(csvField(e.UserName))
		buf.WriteByte(',')
		buf.WriteString(csvField(e.Category))
		buf.WriteByte(',')
		buf.WriteString(quote(e.Description))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(e.Amount, 'f', -1, 64))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// CSVFilename is the download name for an export made at now.
func CSVFilename(now time.Time) string {
	return CSVPrefix + now.Format(model.DateLayout) + ".csv"
}

// LocaleDate renders YYYY-MM-DD as M/D/YYYY. Other input is returned as is.
func LocaleDate(value string) string {
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(value))
	if err != nil {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
			return ts.Format("1/2/2006")
		}
		return value
	}
	return t.Format("1/2/2006")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
