// Package ledger defines the core record types shared by the matching and
// clearing logic: bank transactions, bills, and recurring bill templates.
//
// Records are plain values. Persistence, sync, and API concerns live in
// their own layers; this package only knows about the shapes and the
// validation rules the matching engine depends on.
package ledger

import (
	"strings"
	"time"
)

// DateFormat is the calendar-date layout used across the system.
// Transactions and bills carry dates, never times.
const DateFormat = "2006-01-02"

// Transaction is a bank transaction as delivered by the sync layer.
// Expenses carry negative amounts. Immutable once ingested.
type Transaction struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
	Category string    `json:"category,omitempty"`
}

// Bill is an expected payment. Amount is always unsigned.
// RecurringTemplateID is empty for one-off bills.
type Bill struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Amount              float64   `json:"amount"`
	DueDate             time.Time `json:"due_date"`
	MerchantNames       []string  `json:"merchant_names,omitempty"`
	IsPaid              bool      `json:"is_paid"`
	RecurringTemplateID string    `json:"recurring_template_id,omitempty"`
}

// RecurringTemplate owns the generation of future Bill instances.
// SkippedPeriods records period keys whose generated bill was explicitly
// deleted by the user; generation must never recreate those.
type RecurringTemplate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Amount         float64   `json:"amount"`
	Rule           Rule      `json:"rule"`
	NextOccurrence time.Time `json:"next_occurrence"`
	SkippedPeriods []string  `json:"skipped_periods,omitempty"`
}

// Rule identifies how a recurring template advances between occurrences.
type Rule string

const (
	RuleWeekly    Rule = "weekly"
	RuleBiweekly  Rule = "biweekly"
	RuleMonthly   Rule = "monthly"
	RuleQuarterly Rule = "quarterly"
	RuleYearly    Rule = "yearly"
)

// Valid reports whether the rule is one of the supported recurrence rules.
func (r Rule) Valid() bool {
	switch r {
	case RuleWeekly, RuleBiweekly, RuleMonthly, RuleQuarterly, RuleYearly:
		return true
	}
	return false
}

// PeriodKey returns the "YYYY-MM" key identifying a date's recurrence
// period. It is the unit of skip tracking and duplicate bucketing.
func PeriodKey(date time.Time) string {
	return date.Format("2006-01")
}

// ParseDate parses a calendar date in DateFormat.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}

// MustDate parses a calendar date and panics on failure. Test helper.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// DaysBetween returns the absolute number of whole days between two dates.
func DaysBetween(a, b time.Time) float64 {
	d := a.Sub(b).Hours() / 24
	if d < 0 {
		d = -d
	}
	return d
}

// HasSkippedPeriod reports whether the template's skip set contains the
// given period key.
func (t *RecurringTemplate) HasSkippedPeriod(period string) bool {
	for _, p := range t.SkippedPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// AddSkippedPeriod appends a period key to the skip set if absent.
// Returns true when the set changed.
func (t *RecurringTemplate) AddSkippedPeriod(period string) bool {
	if t.HasSkippedPeriod(period) {
		return false
	}
	t.SkippedPeriods = append(t.SkippedPeriods, period)
	return true
}

// Validate checks the fields the matching engine requires.
func (tx *Transaction) Validate() error {
	if tx.ID == "" {
		return invalidf("transaction missing id")
	}
	if strings.TrimSpace(tx.Name) == "" {
		return invalidf("transaction %s missing name", tx.ID)
	}
	if tx.Date.IsZero() {
		return invalidf("transaction %s missing date", tx.ID)
	}
	return nil
}

// Validate checks the fields the matching engine requires.
func (b *Bill) Validate() error {
	if b.ID == "" {
		return invalidf("bill missing id")
	}
	if strings.TrimSpace(b.Name) == "" {
		return invalidf("bill %s missing name", b.ID)
	}
	if b.DueDate.IsZero() {
		return invalidf("bill %s missing due date", b.ID)
	}
	if b.Amount < 0 {
		return invalidf("bill %s has negative amount", b.ID)
	}
	return nil
}
