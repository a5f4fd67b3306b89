package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrations_FreshDatabase(t *testing.T) {
	s := newTestStorage(t)

	applied, err := s.getAppliedMigrations()
	require.NoError(t, err)
	for _, m := range allMigrations {
		assert.True(t, applied[m.Version], "migration %d not applied", m.Version)
	}
}

func TestMigrations_Rerun(t *testing.T) {
	// Opening the same database twice must not re-apply migrations
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStorage(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	applied, err := s2.getAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(allMigrations))
}

func TestBill_SaveAndGet(t *testing.T) {
	s := newTestStorage(t)

	bill := &ledger.Bill{
		ID:            "bill1",
		Name:          "Internet",
		Amount:        89.99,
		DueDate:       ledger.MustDate("2024-01-15"),
		MerchantNames: []string{"comcast", "xfinity"},
	}
	require.NoError(t, s.SaveBill(bill))

	got, err := s.GetBill("bill1")
	require.NoError(t, err)
	assert.Equal(t, bill.Name, got.Name)
	assert.Equal(t, bill.Amount, got.Amount)
	assert.Equal(t, bill.DueDate, got.DueDate)
	assert.Equal(t, []string{"comcast", "xfinity"}, got.MerchantNames)
	assert.False(t, got.IsPaid)
}

func TestBill_GetMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetBill("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBill_ListUnpaidOrdersByDueDate(t *testing.T) {
	s := newTestStorage(t)

	later := &ledger.Bill{ID: "later", Name: "Rent", Amount: 500, DueDate: ledger.MustDate("2024-02-01")}
	sooner := &ledger.Bill{ID: "sooner", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-01-10")}
	paid := &ledger.Bill{ID: "paid", Name: "Water", Amount: 30, DueDate: ledger.MustDate("2024-01-05"), IsPaid: true}
	for _, b := range []*ledger.Bill{later, sooner, paid} {
		require.NoError(t, s.SaveBill(b))
	}

	unpaid, err := s.ListUnpaidBills()
	require.NoError(t, err)
	require.Len(t, unpaid, 2)
	assert.Equal(t, "sooner", unpaid[0].ID)
	assert.Equal(t, "later", unpaid[1].ID)
}

func TestBill_DuplicateTemplateInstanceRejected(t *testing.T) {
	// The unique index backs the duplicate guard at the storage level
	s := newTestStorage(t)

	tpl := &ledger.RecurringTemplate{
		ID: "tpl1", Name: "Netflix", Amount: 15.99,
		Rule: ledger.RuleMonthly, NextOccurrence: ledger.MustDate("2024-01-15"),
	}
	require.NoError(t, s.SaveTemplate(tpl))

	first := &ledger.Bill{ID: "b1", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-01-15"), RecurringTemplateID: "tpl1"}
	require.NoError(t, s.SaveBill(first))

	dup := &ledger.Bill{ID: "b2", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-01-15"), RecurringTemplateID: "tpl1"}
	assert.Error(t, s.SaveBill(dup))
}

func TestTransactions_IngestAndProcess(t *testing.T) {
	s := newTestStorage(t)

	txs := []ledger.Transaction{
		{ID: "tx2", Name: "Netflix", Amount: -15.99, Date: ledger.MustDate("2024-01-16")},
		{ID: "tx1", Name: "Shell", Amount: -40.00, Date: ledger.MustDate("2024-01-15"), Category: "Transportation"},
	}
	require.NoError(t, s.SaveTransactions(txs))

	// Re-ingesting the same IDs is a no-op
	require.NoError(t, s.SaveTransactions(txs))

	pending, err := s.ListUnprocessedTransactions()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "tx1", pending[0].ID) // oldest first
	assert.Equal(t, "Transportation", pending[0].Category)

	require.NoError(t, s.MarkTransactionProcessed("tx1", ""))

	pending, err = s.ListUnprocessedTransactions()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "tx2", pending[0].ID)
}

func TestTemplate_SaveAndGet(t *testing.T) {
	s := newTestStorage(t)

	tpl := &ledger.RecurringTemplate{
		ID:             "tpl1",
		Name:           "Netflix",
		Amount:         15.99,
		Rule:           ledger.RuleMonthly,
		NextOccurrence: ledger.MustDate("2024-02-15"),
		SkippedPeriods: []string{"2024-03"},
	}
	require.NoError(t, s.SaveTemplate(tpl))

	got, err := s.GetTemplate("tpl1")
	require.NoError(t, err)
	assert.Equal(t, ledger.RuleMonthly, got.Rule)
	assert.Equal(t, ledger.MustDate("2024-02-15"), got.NextOccurrence)
	assert.Equal(t, []string{"2024-03"}, got.SkippedPeriods)
}

func TestCommitClearing_AtomicUnit(t *testing.T) {
	s := newTestStorage(t)

	tpl := &ledger.RecurringTemplate{
		ID: "tpl1", Name: "Netflix", Amount: 15.99,
		Rule: ledger.RuleMonthly, NextOccurrence: ledger.MustDate("2024-01-15"),
	}
	require.NoError(t, s.SaveTemplate(tpl))

	bill := &ledger.Bill{ID: "b1", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-01-15"), RecurringTemplateID: "tpl1"}
	require.NoError(t, s.SaveBill(bill))
	require.NoError(t, s.SaveTransactions([]ledger.Transaction{
		{ID: "tx1", Name: "Netflix", Amount: -15.99, Date: ledger.MustDate("2024-01-15")},
	}))

	tpl.NextOccurrence = ledger.MustDate("2024-02-15")
	next := &ledger.Bill{ID: "b2", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-02-15"), RecurringTemplateID: "tpl1"}

	require.NoError(t, s.CommitClearing("tx1", bill, tpl, next))

	got, err := s.GetBill("b1")
	require.NoError(t, err)
	assert.True(t, got.IsPaid)

	gotNext, err := s.GetBill("b2")
	require.NoError(t, err)
	assert.False(t, gotNext.IsPaid)
	assert.Equal(t, ledger.MustDate("2024-02-15"), gotNext.DueDate)

	gotTpl, err := s.GetTemplate("tpl1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MustDate("2024-02-15"), gotTpl.NextOccurrence)

	pending, err := s.ListUnprocessedTransactions()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCommitClearing_RollsBackOnDuplicateNext(t *testing.T) {
	// Inserting a duplicate next instance fails the whole unit: the
	// bill must not be left marked paid
	s := newTestStorage(t)

	tpl := &ledger.RecurringTemplate{
		ID: "tpl1", Name: "Netflix", Amount: 15.99,
		Rule: ledger.RuleMonthly, NextOccurrence: ledger.MustDate("2024-01-15"),
	}
	require.NoError(t, s.SaveTemplate(tpl))

	bill := &ledger.Bill{ID: "b1", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-01-15"), RecurringTemplateID: "tpl1"}
	existing := &ledger.Bill{ID: "b2", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-02-15"), RecurringTemplateID: "tpl1"}
	require.NoError(t, s.SaveBill(bill))
	require.NoError(t, s.SaveBill(existing))
	require.NoError(t, s.SaveTransactions([]ledger.Transaction{
		{ID: "tx1", Name: "Netflix", Amount: -15.99, Date: ledger.MustDate("2024-01-15")},
	}))

	dup := &ledger.Bill{ID: "b3", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-02-15"), RecurringTemplateID: "tpl1"}
	err := s.CommitClearing("tx1", bill, tpl, dup)
	require.Error(t, err)

	got, err := s.GetBill("b1")
	require.NoError(t, err)
	assert.False(t, got.IsPaid)
}

func TestDeleteTemplateCascade(t *testing.T) {
	s := newTestStorage(t)

	tpl := &ledger.RecurringTemplate{
		ID: "tpl1", Name: "Netflix", Amount: 15.99,
		Rule: ledger.RuleMonthly, NextOccurrence: ledger.MustDate("2024-02-15"),
	}
	require.NoError(t, s.SaveTemplate(tpl))

	paid := &ledger.Bill{ID: "paid", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-01-15"), IsPaid: true, RecurringTemplateID: "tpl1"}
	unpaid := &ledger.Bill{ID: "unpaid", Name: "Netflix", Amount: 15.99, DueDate: ledger.MustDate("2024-02-15"), RecurringTemplateID: "tpl1"}
	require.NoError(t, s.SaveBill(paid))
	require.NoError(t, s.SaveBill(unpaid))

	require.NoError(t, s.DeleteTemplateCascade("tpl1"))

	// Unpaid sibling removed, paid history kept
	_, err := s.GetBill("unpaid")
	assert.ErrorIs(t, err, ErrNotFound)

	kept, err := s.GetBill("paid")
	require.NoError(t, err)
	assert.True(t, kept.IsPaid)
	assert.Empty(t, kept.RecurringTemplateID)

	_, err = s.GetTemplate("tpl1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearRuns(t *testing.T) {
	s := newTestStorage(t)

	id, err := s.StartClearRun("default")
	require.NoError(t, err)
	require.NoError(t, s.CompleteClearRun(id, 3, 1, 0))

	runs, err := s.ListClearRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "default", runs[0].UserID)
	assert.Equal(t, 3, runs[0].Matched)
	assert.Equal(t, 1, runs[0].Unmatched)
	assert.Equal(t, "completed", runs[0].Status)
	assert.NotEmpty(t, runs[0].CompletedAt)
}

func TestGetStats(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveBill(&ledger.Bill{ID: "b1", Name: "A", Amount: 10, DueDate: ledger.MustDate("2024-01-01")}))
	require.NoError(t, s.SaveBill(&ledger.Bill{ID: "b2", Name: "B", Amount: 20, DueDate: ledger.MustDate("2024-01-02"), IsPaid: true}))
	require.NoError(t, s.SaveTransactions([]ledger.Transaction{
		{ID: "tx1", Name: "A", Amount: -10, Date: ledger.MustDate("2024-01-01")},
	}))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBills)
	assert.Equal(t, 1, stats.UnpaidBills)
	assert.Equal(t, 1, stats.PaidBills)
	assert.Equal(t, 1, stats.TransactionCount)
	assert.InDelta(t, 10.0, stats.UnpaidTotal, 0.001)
}
