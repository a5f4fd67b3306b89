package recurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

func makeTemplate(rule ledger.Rule, next string) *ledger.RecurringTemplate {
	return &ledger.RecurringTemplate{
		ID:             "tpl1",
		Name:           "Netflix",
		Amount:         15.99,
		Rule:           rule,
		NextOccurrence: ledger.MustDate(next),
	}
}

func TestNextDate(t *testing.T) {
	tests := []struct {
		name     string
		rule     ledger.Rule
		from     string
		expected string
	}{
		{"weekly", ledger.RuleWeekly, "2024-01-15", "2024-01-22"},
		{"biweekly", ledger.RuleBiweekly, "2024-01-15", "2024-01-29"},
		{"monthly", ledger.RuleMonthly, "2024-01-15", "2024-02-15"},
		{"monthly clamps to leap February", ledger.RuleMonthly, "2024-01-31", "2024-02-29"},
		{"monthly clamps to short month", ledger.RuleMonthly, "2023-01-31", "2023-02-28"},
		{"monthly across year boundary", ledger.RuleMonthly, "2024-12-15", "2025-01-15"},
		{"quarterly", ledger.RuleQuarterly, "2024-01-31", "2024-04-30"},
		{"yearly", ledger.RuleYearly, "2024-03-01", "2025-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextDate(tt.rule, ledger.MustDate(tt.from))
			assert.Equal(t, ledger.MustDate(tt.expected), got)
		})
	}
}

func TestAdvance_GeneratesNextInstance(t *testing.T) {
	// Arrange
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")

	// Act
	bill, decision := Advance(tpl, nil)

	// Assert
	require.Equal(t, Generated, decision)
	require.NotNil(t, bill)
	assert.Equal(t, ledger.MustDate("2024-02-15"), tpl.NextOccurrence)
	assert.Equal(t, ledger.MustDate("2024-02-15"), bill.DueDate)
	assert.Equal(t, "tpl1", bill.RecurringTemplateID)
	assert.Equal(t, 15.99, bill.Amount)
	assert.False(t, bill.IsPaid)
	assert.NotEmpty(t, bill.ID)
}

func TestAdvance_SkipGuard(t *testing.T) {
	// A deleted period must never be regenerated
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")
	tpl.AddSkippedPeriod("2024-02")

	bill, decision := Advance(tpl, nil)

	assert.Nil(t, bill)
	assert.Equal(t, SkippedPeriod, decision)
	// The occurrence still moved forward past the skipped period
	assert.Equal(t, ledger.MustDate("2024-02-15"), tpl.NextOccurrence)
}

func TestAdvance_SkipGuardIsPermanent(t *testing.T) {
	// Many cycles later the skipped period stays skipped while other
	// periods generate normally
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")
	tpl.AddSkippedPeriod("2024-03")

	var generated []string
	for i := 0; i < 6; i++ {
		if bill, decision := Advance(tpl, nil); decision == Generated {
			generated = append(generated, ledger.PeriodKey(bill.DueDate))
		}
	}

	assert.NotContains(t, generated, "2024-03")
	assert.Contains(t, generated, "2024-02")
	assert.Contains(t, generated, "2024-04")
}

func TestAdvance_DuplicateGuard(t *testing.T) {
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")
	existing := []ledger.Bill{
		{ID: "b1", RecurringTemplateID: "tpl1", DueDate: ledger.MustDate("2024-02-15"), IsPaid: true},
	}

	bill, decision := Advance(tpl, existing)

	assert.Nil(t, bill)
	assert.Equal(t, DuplicateExists, decision)
}

func TestAdvance_UnpaidCapGuard(t *testing.T) {
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")
	existing := []ledger.Bill{
		{ID: "b1", RecurringTemplateID: "tpl1", DueDate: ledger.MustDate("2023-12-15")},
		{ID: "b2", RecurringTemplateID: "tpl1", DueDate: ledger.MustDate("2024-01-15")},
	}

	bill, decision := Advance(tpl, existing)

	assert.Nil(t, bill)
	assert.Equal(t, UnpaidCapReached, decision)
}

func TestAdvance_CapIgnoresPaidAndForeignBills(t *testing.T) {
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")
	existing := []ledger.Bill{
		{ID: "b1", RecurringTemplateID: "tpl1", DueDate: ledger.MustDate("2023-12-15"), IsPaid: true},
		{ID: "b2", RecurringTemplateID: "tpl1", DueDate: ledger.MustDate("2024-01-15")},
		{ID: "b3", RecurringTemplateID: "other", DueDate: ledger.MustDate("2024-01-20")},
	}

	bill, decision := Advance(tpl, existing)

	require.Equal(t, Generated, decision)
	assert.Equal(t, ledger.MustDate("2024-02-15"), bill.DueDate)
}

func TestAdvance_UnpaidCapInvariantOverManyCycles(t *testing.T) {
	// However many cycles run without bills being paid, the template
	// never accumulates more than two unpaid instances
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")
	var bills []ledger.Bill

	for i := 0; i < 12; i++ {
		if bill, decision := Advance(tpl, bills); decision == Generated {
			bills = append(bills, *bill)
		}
	}

	unpaid := 0
	for _, b := range bills {
		if !b.IsPaid {
			unpaid++
		}
	}
	assert.LessOrEqual(t, unpaid, MaxUnpaidPerTemplate)

	// No two instances share a due date
	seen := make(map[string]bool)
	for _, b := range bills {
		key := b.DueDate.Format(ledger.DateFormat)
		assert.False(t, seen[key], "duplicate due date %s", key)
		seen[key] = true
	}
}

func TestAddSkippedPeriod_AppendIfAbsent(t *testing.T) {
	tpl := makeTemplate(ledger.RuleMonthly, "2024-01-15")

	assert.True(t, tpl.AddSkippedPeriod("2024-02"))
	assert.False(t, tpl.AddSkippedPeriod("2024-02"))
	assert.Equal(t, []string{"2024-02"}, tpl.SkippedPeriods)
}
