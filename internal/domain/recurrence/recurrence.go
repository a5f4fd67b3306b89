// Package recurrence advances recurring bill templates and generates the
// next bill instance, guarded against recreating skipped periods,
// duplicating an existing instance, or exceeding the unpaid cap.
package recurrence

import (
	"time"

	"github.com/google/uuid"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

// MaxUnpaidPerTemplate caps concurrent unpaid instances of one template.
// Generation resumes once an existing instance clears or is deleted.
const MaxUnpaidPerTemplate = 2

// Decision explains what Advance did after moving the occurrence forward.
type Decision int

const (
	// Generated means a new bill instance was produced.
	Generated Decision = iota
	// SkippedPeriod means the next period carries a skip marker. The
	// marker is permanent; the period is never retried.
	SkippedPeriod
	// DuplicateExists means a bill for (template, due date) already exists.
	DuplicateExists
	// UnpaidCapReached means the template already has the maximum number
	// of unpaid instances.
	UnpaidCapReached
)

// String returns a short label for logging.
func (d Decision) String() string {
	switch d {
	case Generated:
		return "generated"
	case SkippedPeriod:
		return "skipped_period"
	case DuplicateExists:
		return "duplicate_exists"
	case UnpaidCapReached:
		return "unpaid_cap_reached"
	default:
		return "unknown"
	}
}

// NextDate returns the occurrence after from for the given rule.
// Month-based rules clamp to the last day of shorter months, so a bill
// due Jan 31 recurs on Feb 29 rather than sliding into March.
func NextDate(rule ledger.Rule, from time.Time) time.Time {
	switch rule {
	case ledger.RuleWeekly:
		return from.AddDate(0, 0, 7)
	case ledger.RuleBiweekly:
		return from.AddDate(0, 0, 14)
	case ledger.RuleMonthly:
		return addMonths(from, 1)
	case ledger.RuleQuarterly:
		return addMonths(from, 3)
	case ledger.RuleYearly:
		return addMonths(from, 12)
	default:
		return from
	}
}

// addMonths adds months without the stdlib's day-overflow normalization.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())

	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

// Advance moves the template's next occurrence forward by one period and
// generates the bill instance for it, subject to the guards in order:
// skip, duplicate, unpaid cap. siblings must be the template's existing
// bill instances. The template is mutated; the generated bill (if any) is
// returned unpersisted.
func Advance(tpl *ledger.RecurringTemplate, siblings []ledger.Bill) (*ledger.Bill, Decision) {
	tpl.NextOccurrence = NextDate(tpl.Rule, tpl.NextOccurrence)
	next := tpl.NextOccurrence

	if tpl.HasSkippedPeriod(ledger.PeriodKey(next)) {
		return nil, SkippedPeriod
	}

	unpaid := 0
	for _, b := range siblings {
		if b.RecurringTemplateID != tpl.ID {
			continue
		}
		if sameDay(b.DueDate, next) {
			return nil, DuplicateExists
		}
		if !b.IsPaid {
			unpaid++
		}
	}
	if unpaid >= MaxUnpaidPerTemplate {
		return nil, UnpaidCapReached
	}

	return &ledger.Bill{
		ID:                  uuid.NewString(),
		Name:                tpl.Name,
		Amount:              tpl.Amount,
		DueDate:             next,
		RecurringTemplateID: tpl.ID,
	}, Generated
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
