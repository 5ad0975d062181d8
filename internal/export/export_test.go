package export

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"backoffice/internal/access"
	"backoffice/internal/model"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12345.6, "12,346 UGX"},
		{math.NaN(), "0 UGX"},
		{math.Inf(1), "0 UGX"},
		{0, "0 UGX"},
		{999.49, "999 UGX"},
		{1234567, "1,234,567 UGX"},
		{2.5, "3 UGX"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := (Formatter{Currency: "USD"}).Amount(1000); got != "1,000 USD" {
		t.Errorf("custom currency = %q", got)
	}
}

func rows() []model.Expense {
	return []model.Expense{
		{Date: "2024-03-01", UserName: "alice", Category: "Rent", Description: `Shop "A"`, Amount: 1500},
		{Date: "2024-03-02", UserName: "bob, jr", Category: "Fuel", Description: "Van", Amount: 20.5},
	}
}

func TestCSV(t *testing.T) {
	got := string(CSV(rows()))
	want := "Date,User,Category,Description,Amount\n" +
		`3/1/2024,alice,Rent,"Shop ""A""",1500` + "\n" +
		`3/2/2024,"bob, jr",Fuel,"Van",20.5` + "\n"
	if got != want {
		t.Errorf("CSV =\n%s\nwant\n%s", got, want)
	}
	if !bytes.Equal(CSV(rows()), CSV(rows())) {
		t.Error("CSV output not stable")
	}
}

func TestCSVFilename(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if got := CSVFilename(now); got != "expenses_report_2024-03-05.csv" {
		t.Errorf("CSVFilename = %q", got)
	}
}

func TestFilterSummary(t *testing.T) {
	users := []model.User{{ID: 3, Username: "bob"}}
	if got := FilterSummary(access.ExpenseFilter{}, users); got != "" {
		t.Errorf("empty filter summary = %q", got)
	}
	got := FilterSummary(access.ExpenseFilter{UserID: 3, Category: "Rent", To: "2024-03-31"}, users)
	if got != "User: bob; Category: Rent; To: 2024-03-31" {
		t.Errorf("summary = %q", got)
	}
}

func TestHTMLReportTotalsFilteredRows(t *testing.T) {
	all := []model.Expense{
		{ID: 1, Category: "Rent", Amount: 1000, Date: "2024-03-01", UserID: 1},
		{ID: 2, Category: "Fuel", Amount: 50, Date: "2024-03-01", UserID: 1},
		{ID: 3, Category: "Rent", Amount: 2500.4, Date: "2024-03-02", UserID: 1},
		{ID: 4, Category: "Food", Amount: 7, Date: "2024-03-03", UserID: 1},
		{ID: 5, Category: "Fuel", Amount: 70, Date: "2024-03-04", UserID: 1},
	}
	admin := model.User{ID: 1, Username: "boss", Role: model.RoleAdmin}
	filter := access.ExpenseFilter{Category: "Rent"}
	visible := access.VisibleExpenses(all, []model.User{admin}, admin, filter, time.Now())
	if len(visible) != 2 {
		t.Fatalf("visible = %d", len(visible))
	}

	html, err := HTMLReport(ReportInput{
		Rows:        visible,
		Filter:      filter,
		Users:       []model.User{admin},
		GeneratedAt: time.Date(2024, 3, 5, 14, 3, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Expense Report",
		"Generated: 3/5/2024, 2:03:00 PM",
		"Filters: Category: Rent",
		`<td class="amount">1,000 UGX</td>`,
		`<td colspan="4">Total</td><td class="amount">3,500 UGX</td>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(html, "Fuel") {
		t.Error("filtered-out row rendered")
	}
}

func TestHTMLReportEscapes(t *testing.T) {
	html, err := HTMLReport(ReportInput{Rows: []model.Expense{{Description: "<script>x</script>"}}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>x") {
		t.Error("description not escaped")
	}
	if !strings.Contains(html, "Filters: None") {
		t.Error("empty filter summary should render None")
	}
}

type fakeSurface struct {
	doc     Document
	printed bool
}

func (s *fakeSurface) Render(_ context.Context, doc Document) error { s.doc = doc; return nil }
func (s *fakeSurface) Print(context.Context) error                  { s.printed = true; return nil }

type openerFunc func(context.Context) (Surface, error)

func (f openerFunc) Open(ctx context.Context) (Surface, error) { return f(ctx) }

func TestPrint(t *testing.T) {
	ctx := context.Background()
	s := &fakeSurface{}
	doc := HTMLDocument("r.html", "<p>x</p>")
	if err := Print(ctx, openerFunc(func(context.Context) (Surface, error) { return s, nil }), doc); err != nil {
		t.Fatal(err)
	}
	if !s.printed || s.doc.Filename != "r.html" {
		t.Errorf("surface state %+v", s)
	}

	err := Print(ctx, openerFunc(func(context.Context) (Surface, error) { return nil, errors.New("no window") }), doc)
	if !errors.Is(err, ErrSurfaceBlocked) {
		t.Errorf("err = %v, want ErrSurfaceBlocked", err)
	}
	if err := Print(ctx, nil, doc); !errors.Is(err, ErrSurfaceBlocked) {
		t.Errorf("nil opener err = %v", err)
	}
}
