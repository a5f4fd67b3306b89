// Package clearer applies the matcher across a batch of new transactions
// and the set of currently unpaid bills.
//
// Transactions are processed in the order supplied. Each one claims at
// most one bill, the claimed bill leaves the pool immediately, and a bill
// cleared earlier in the batch can never be claimed again. Malformed
// records are reported per item and never abort the batch.
package clearer

import (
	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
	"github.com/fintrack/billmatch-backend/internal/domain/matcher"
)

// ClearResult reports the outcome for one transaction (or one rejected
// record). BillID is empty when nothing cleared the threshold.
type ClearResult struct {
	TransactionID string  `json:"transaction_id"`
	BillID        string  `json:"bill_id,omitempty"`
	Confidence    float64 `json:"confidence"`
	Err           error   `json:"-"`
}

// Clearer matches transaction batches against unpaid bills.
type Clearer struct {
	matcher *matcher.Matcher
}

// NewClearer creates a clearer backed by the given matcher.
func NewClearer(m *matcher.Matcher) *Clearer {
	return &Clearer{matcher: m}
}

// ClearBills finds the best bill for each transaction and marks it paid.
//
// Bills already paid are excluded up front, which makes a second run over
// the same batch a no-op. Ties on confidence go to the earliest due date,
// clearing the most overdue bill first. The unpaid slice's bills are
// mutated in place (IsPaid flips); callers persist the change.
func (c *Clearer) ClearBills(transactions []ledger.Transaction, unpaid []*ledger.Bill) []ClearResult {
	results := make([]ClearResult, 0, len(transactions))

	// Invalid bills are reported once and withheld from the pool
	pool := make([]*ledger.Bill, 0, len(unpaid))
	for _, bill := range unpaid {
		if bill == nil {
			continue
		}
		if err := bill.Validate(); err != nil {
			results = append(results, ClearResult{BillID: bill.ID, Err: err})
			continue
		}
		if bill.IsPaid {
			continue
		}
		pool = append(pool, bill)
	}

	for _, tx := range transactions {
		if err := tx.Validate(); err != nil {
			results = append(results, ClearResult{TransactionID: tx.ID, Err: err})
			continue
		}

		best, confidence := c.pickBill(tx, pool)
		if best == nil {
			results = append(results, ClearResult{TransactionID: tx.ID, Confidence: confidence})
			continue
		}

		best.IsPaid = true
		pool = removeBill(pool, best.ID)

		results = append(results, ClearResult{
			TransactionID: tx.ID,
			BillID:        best.ID,
			Confidence:    confidence,
		})
	}

	return results
}

// pickBill returns the matching bill with the highest confidence, ties
// broken by earliest due date. The returned confidence is the best score
// seen even when no bill qualified.
func (c *Clearer) pickBill(tx ledger.Transaction, pool []*ledger.Bill) (*ledger.Bill, float64) {
	var best *ledger.Bill
	var bestMatch float64
	var topSeen float64

	for _, bill := range pool {
		result := c.matcher.MatchConfidence(tx, *bill)
		if result.Score > topSeen {
			topSeen = result.Score
		}
		if !result.IsMatch {
			continue
		}

		switch {
		case best == nil, result.Score > bestMatch:
			best = bill
			bestMatch = result.Score
		case result.Score == bestMatch && bill.DueDate.Before(best.DueDate):
			best = bill
		}
	}

	if best != nil {
		return best, bestMatch
	}
	return nil, topSeen
}

func removeBill(pool []*ledger.Bill, id string) []*ledger.Bill {
	out := pool[:0]
	for _, bill := range pool {
		if bill.ID != id {
			out = append(out, bill)
		}
	}
	return out
}
