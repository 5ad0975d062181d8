package editor

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/model"
)

// ExpenseDraft is the editable form state of an expense.
type ExpenseDraft struct {
	Date        string
	Category    string
	Description string
	Amount      string
}

// Ready reports whether date, category and description are filled in.
// Amount never blocks; it defaults to 0.
func (d ExpenseDraft) Ready() bool {
	return strings.TrimSpace(d.Date) != "" &&
		strings.TrimSpace(d.Category) != "" &&
		strings.TrimSpace(d.Description) != ""
}

// Build creates an expense authored by author.
func (d ExpenseDraft) Build(author model.User) (model.Expense, error) {
	if !d.Ready() {
		return model.Expense{}, fmt.Errorf("expense draft incomplete")
	}
	date, err := ParseDate(d.Date)
	if err != nil {
		return model.Expense{}, err
	}
	return model.Expense{
		UserID:      author.ID,
		UserName:    author.DisplayName(),
		Date:        date,
		Category:    strings.TrimSpace(d.Category),
		Description: strings.TrimSpace(d.Description),
		Amount:      ParseAmount(d.Amount),
	}, nil
}

// DraftFromExpense seeds an edit form.
func DraftFromExpense(e model.Expense) ExpenseDraft {
	return ExpenseDraft{
		Date:        e.Date,
		Category:    e.Category,
		Description: e.Description,
		Amount:      decimal.NewFromFloat(e.Amount).String(),
	}
}

// ExpenseUpdate is the payload of an expense edit. Identifier and author
// fields are not part of it.
type ExpenseUpdate struct {
	Date        string
	Category    string
	Description string
	Amount      float64
}

// Update builds the edit payload from the draft.
func (d ExpenseDraft) Update() (ExpenseUpdate, error) {
	e, err := d.Build(model.User{})
	if err != nil {
		return ExpenseUpdate{}, err
	}
	return UpdateFromExpense(e), nil
}

// UpdateFromExpense strips id and author fields from e.
func UpdateFromExpense(e model.Expense) ExpenseUpdate {
	return ExpenseUpdate{
		Date:        e.Date,
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount,
	}
}

// ParseAmount coerces form input to a number. Invalid or negative input is 0.
func ParseAmount(raw string) float64 {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return 0
	}
	d, err := decimal.NewFromString(clean)
	if err != nil || d.IsNegative() {
		return 0
	}
	return d.InexactFloat64()
}

// ParseDate normalizes a date input to YYYY-MM-DD.
func ParseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{model.DateLayout, time.RFC3339, "1/2/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(model.DateLayout), nil
		}
	}
	return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
}
