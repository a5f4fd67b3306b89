// Package matcher decides whether a bank transaction satisfies a bill.
//
// Three independent checks contribute equally to a confidence score:
//   - Name: normalized equality, fuzzy similarity, or a merchant alias hit
//   - Amount: within max($1.00, 2% of the bill amount)
//   - Date: within 7 days of the due date
//
// Confidence is the fraction of checks that pass, compared unrounded
// against a 0.67 threshold. Two of three checks give 0.666..., just under
// the bar, so every check must pass for a true match: a transaction that
// lines up on amount and date but not name never clears a bill on its own,
// and the same holds whichever single check fails.
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	result := m.MatchConfidence(tx, bill)
//	if result.IsMatch {
//		// transaction satisfies the bill
//	}
package matcher

import (
	"math"
	"strings"
	"time"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

// Matcher scores transaction/bill pairs. Stateless and safe for
// concurrent use.
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config.
func NewMatcher(config Config) *Matcher {
	return &Matcher{config: config}
}

// MatchConfidence computes the confidence that tx pays bill.
// Pure function of its inputs; neither record is mutated.
func (m *Matcher) MatchConfidence(tx ledger.Transaction, bill ledger.Bill) Result {
	r := Result{
		NameOK:   m.nameMatches(tx, bill),
		AmountOK: m.amountMatches(tx.Amount, bill.Amount),
		DateOK:   m.dateMatches(tx.Date, bill.DueDate),
	}

	passed := 0
	for _, ok := range []bool{r.NameOK, r.AmountOK, r.DateOK} {
		if ok {
			passed++
		}
	}

	// The decision uses the raw fraction: 2/3 rounds up to 0.67 for
	// reporting but sits below the threshold, so partial matches never
	// clear a bill.
	raw := float64(passed) / 3
	r.Score = math.Round(raw*100) / 100
	r.IsMatch = raw >= MatchThreshold

	return r
}

// nameMatches passes on normalized equality, fuzzy similarity above the
// configured threshold, or a case-insensitive substring hit against any
// merchant alias on the bill.
func (m *Matcher) nameMatches(tx ledger.Transaction, bill ledger.Bill) bool {
	txName := Normalize(tx.Name)
	if txName == "" {
		return false
	}

	billName := Normalize(bill.Name)
	if billName != "" && txName == billName {
		return true
	}
	if billName != "" && Similarity(txName, billName) >= m.config.NameSimilarity {
		return true
	}

	lowerTx := strings.ToLower(tx.Name)
	for _, alias := range bill.MerchantNames {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" && strings.Contains(lowerTx, alias) {
			return true
		}
	}

	return false
}

// amountMatches compares the transaction's magnitude against the bill
// amount. Expenses arrive negative; bills are unsigned. A zero-amount
// bill degenerates to the absolute floor alone.
func (m *Matcher) amountMatches(txAmount, billAmount float64) bool {
	tolerance := math.Max(m.config.AmountToleranceAbs, billAmount*m.config.AmountToleranceRatio)
	return math.Abs(math.Abs(txAmount)-billAmount) <= tolerance
}

// dateMatches passes when the transaction posted within the configured
// window of the due date, in either direction.
func (m *Matcher) dateMatches(txDate, dueDate time.Time) bool {
	return ledger.DaysBetween(txDate, dueDate) <= float64(m.config.DateWindowDays)
}
