package clearer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
	"github.com/fintrack/billmatch-backend/internal/domain/matcher"
)

func newClearer() *Clearer {
	return NewClearer(matcher.NewMatcher(matcher.DefaultConfig()))
}

func makeTransaction(id, name string, amount float64, date string) ledger.Transaction {
	return ledger.Transaction{
		ID:     id,
		Name:   name,
		Amount: amount,
		Date:   ledger.MustDate(date),
	}
}

func makeBill(id, name string, amount float64, dueDate string) *ledger.Bill {
	return &ledger.Bill{
		ID:      id,
		Name:    name,
		Amount:  amount,
		DueDate: ledger.MustDate(dueDate),
	}
}

func TestClearBills_SingleMatch(t *testing.T) {
	// Arrange
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}
	bill := makeBill("bill1", "Netflix", 15.99, "2024-01-15")

	// Act
	results := c.ClearBills(txs, []*ledger.Bill{bill})

	// Assert
	require.Len(t, results, 1)
	assert.Equal(t, "tx1", results[0].TransactionID)
	assert.Equal(t, "bill1", results[0].BillID)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.True(t, bill.IsPaid)
}

func TestClearBills_NoMatchBelowThreshold(t *testing.T) {
	// Amount and date line up but the name does not: reported 0.67,
	// bill stays unpaid
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "SHELL OIL", -50.00, "2024-01-15"),
	}
	bill := makeBill("bill1", "Gym Membership", 50.00, "2024-01-15")

	results := c.ClearBills(txs, []*ledger.Bill{bill})

	require.Len(t, results, 1)
	assert.Empty(t, results[0].BillID)
	assert.Equal(t, 0.67, results[0].Confidence)
	assert.False(t, bill.IsPaid)
}

func TestClearBills_BillClaimedOnce(t *testing.T) {
	// Two identical charges, one bill: the first transaction in batch
	// order wins and the second reports no match
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
		makeTransaction("tx2", "Netflix", -15.99, "2024-01-15"),
	}
	bill := makeBill("bill1", "Netflix", 15.99, "2024-01-15")

	results := c.ClearBills(txs, []*ledger.Bill{bill})

	require.Len(t, results, 2)
	assert.Equal(t, "bill1", results[0].BillID)
	assert.Empty(t, results[1].BillID)
}

func TestClearBills_TieBreakEarliestDueDate(t *testing.T) {
	// Both bills are perfect matches; the more overdue one clears first
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}
	older := makeBill("older", "Netflix", 15.99, "2024-01-10")
	newer := makeBill("newer", "Netflix", 15.99, "2024-01-16")

	results := c.ClearBills(txs, []*ledger.Bill{newer, older})

	require.Len(t, results, 1)
	assert.Equal(t, "older", results[0].BillID)
	assert.True(t, older.IsPaid)
	assert.False(t, newer.IsPaid)
}

func TestClearBills_PicksHighestConfidence(t *testing.T) {
	// A partial candidate loses to a perfect one even when it is older
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}
	partial := makeBill("partial", "Netflix", 42.00, "2024-01-02")
	perfect := makeBill("perfect", "Netflix", 15.99, "2024-01-16")

	results := c.ClearBills(txs, []*ledger.Bill{partial, perfect})

	require.Len(t, results, 1)
	assert.Equal(t, "perfect", results[0].BillID)
}

func TestClearBills_MalformedTransaction(t *testing.T) {
	// One bad record must not block the rest of the batch
	c := newClearer()
	txs := []ledger.Transaction{
		{ID: "bad", Amount: -10.00},
		makeTransaction("tx2", "Netflix", -15.99, "2024-01-15"),
	}
	bill := makeBill("bill1", "Netflix", 15.99, "2024-01-15")

	results := c.ClearBills(txs, []*ledger.Bill{bill})

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, ledger.ErrInvalidRecord)
	assert.Equal(t, "bill1", results[1].BillID)
}

func TestClearBills_MalformedBill(t *testing.T) {
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}
	bad := &ledger.Bill{ID: "bad", Amount: 15.99}
	good := makeBill("good", "Netflix", 15.99, "2024-01-15")

	results := c.ClearBills(txs, []*ledger.Bill{bad, good})

	require.Len(t, results, 2)
	assert.Equal(t, "bad", results[0].BillID)
	assert.ErrorIs(t, results[0].Err, ledger.ErrInvalidRecord)
	assert.Equal(t, "good", results[1].BillID)
	assert.NoError(t, results[1].Err)
}

func TestClearBills_Idempotent(t *testing.T) {
	// A second run over the same pool finds nothing left to clear
	c := newClearer()
	txs := []ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}
	bill := makeBill("bill1", "Netflix", 15.99, "2024-01-15")
	bills := []*ledger.Bill{bill}

	first := c.ClearBills(txs, bills)
	require.Equal(t, "bill1", first[0].BillID)

	second := c.ClearBills(txs, bills)
	require.Len(t, second, 1)
	assert.Empty(t, second[0].BillID)
	assert.True(t, bill.IsPaid)
}

func TestClearBills_PaidBillsExcluded(t *testing.T) {
	c := newClearer()
	paid := makeBill("paid", "Netflix", 15.99, "2024-01-15")
	paid.IsPaid = true

	results := c.ClearBills([]ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}, []*ledger.Bill{paid})

	require.Len(t, results, 1)
	assert.Empty(t, results[0].BillID)
}

func TestClearBills_EmptyInputs(t *testing.T) {
	c := newClearer()

	assert.Empty(t, c.ClearBills(nil, nil))

	results := c.ClearBills([]ledger.Transaction{
		makeTransaction("tx1", "Netflix", -15.99, "2024-01-15"),
	}, nil)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].BillID)
	assert.Equal(t, 0.0, results[0].Confidence)
}
