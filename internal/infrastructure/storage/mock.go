package storage

import (
	"fmt"
	"sort"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	transactions map[string]*ledger.Transaction
	processed    map[string]string // transaction ID -> matched bill ID ("" = no match)
	bills        map[string]*ledger.Bill
	templates    map[string]*ledger.RecurringTemplate
	runs         []ClearRun
	nextRunID    int64

	// Hooks for test assertions
	CommitClearingCalls int
	LastCommittedBillID string

	// Error injection for testing error paths
	SaveTransactionsErr error
	ListUnprocessedErr  error
	SaveBillErr         error
	SaveTemplateErr     error
	CommitClearingErr   error
	StartClearRunErr    error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[string]*ledger.Transaction),
		processed:    make(map[string]string),
		bills:        make(map[string]*ledger.Bill),
		templates:    make(map[string]*ledger.RecurringTemplate),
		nextRunID:    1,
	}
}

// Close is a no-op.
func (m *MockRepository) Close() error { return nil }

// ---- transactions ----

func (m *MockRepository) SaveTransactions(txs []ledger.Transaction) error {
	if m.SaveTransactionsErr != nil {
		return m.SaveTransactionsErr
	}
	for i := range txs {
		if _, exists := m.transactions[txs[i].ID]; exists {
			continue
		}
		tx := txs[i]
		m.transactions[tx.ID] = &tx
	}
	return nil
}

func (m *MockRepository) ListUnprocessedTransactions() ([]ledger.Transaction, error) {
	if m.ListUnprocessedErr != nil {
		return nil, m.ListUnprocessedErr
	}
	var out []ledger.Transaction
	for id, tx := range m.transactions {
		if _, done := m.processed[id]; !done {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockRepository) MarkTransactionProcessed(id, billID string) error {
	if _, ok := m.transactions[id]; !ok {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	m.processed[id] = billID
	return nil
}

// ---- bills ----

func (m *MockRepository) SaveBill(bill *ledger.Bill) error {
	if m.SaveBillErr != nil {
		return m.SaveBillErr
	}
	clone := *bill
	m.bills[bill.ID] = &clone
	return nil
}

func (m *MockRepository) GetBill(id string) (*ledger.Bill, error) {
	bill, ok := m.bills[id]
	if !ok {
		return nil, fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	clone := *bill
	return &clone, nil
}

func (m *MockRepository) ListUnpaidBills() ([]*ledger.Bill, error) {
	var out []*ledger.Bill
	for _, bill := range m.bills {
		if !bill.IsPaid {
			clone := *bill
			out = append(out, &clone)
		}
	}
	sortBills(out)
	return out, nil
}

func (m *MockRepository) ListBills() ([]*ledger.Bill, error) {
	out := make([]*ledger.Bill, 0, len(m.bills))
	for _, bill := range m.bills {
		clone := *bill
		out = append(out, &clone)
	}
	sortBills(out)
	return out, nil
}

func (m *MockRepository) ListBillsByTemplate(templateID string) ([]ledger.Bill, error) {
	var out []ledger.Bill
	for _, bill := range m.bills {
		if bill.RecurringTemplateID == templateID {
			out = append(out, *bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (m *MockRepository) DeleteBill(id string) error {
	if _, ok := m.bills[id]; !ok {
		return fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	delete(m.bills, id)
	return nil
}

func (m *MockRepository) GetStats() (*Stats, error) {
	stats := &Stats{
		TotalBills:       len(m.bills),
		TotalTemplates:   len(m.templates),
		TransactionCount: len(m.transactions),
	}
	for _, bill := range m.bills {
		if bill.IsPaid {
			stats.PaidBills++
		} else {
			stats.UnpaidBills++
			stats.UnpaidTotal += bill.Amount
		}
	}
	return stats, nil
}

// ---- templates ----

func (m *MockRepository) SaveTemplate(tpl *ledger.RecurringTemplate) error {
	if m.SaveTemplateErr != nil {
		return m.SaveTemplateErr
	}
	clone := *tpl
	clone.SkippedPeriods = append([]string(nil), tpl.SkippedPeriods...)
	m.templates[tpl.ID] = &clone
	return nil
}

func (m *MockRepository) GetTemplate(id string) (*ledger.RecurringTemplate, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	clone := *tpl
	clone.SkippedPeriods = append([]string(nil), tpl.SkippedPeriods...)
	return &clone, nil
}

func (m *MockRepository) ListTemplates() ([]*ledger.RecurringTemplate, error) {
	out := make([]*ledger.RecurringTemplate, 0, len(m.templates))
	for _, tpl := range m.templates {
		clone := *tpl
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockRepository) DeleteTemplateCascade(id string) error {
	if _, ok := m.templates[id]; !ok {
		return fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	for billID, bill := range m.bills {
		if bill.RecurringTemplateID != id {
			continue
		}
		if bill.IsPaid {
			bill.RecurringTemplateID = ""
		} else {
			delete(m.bills, billID)
		}
	}
	delete(m.templates, id)
	return nil
}

func (m *MockRepository) CommitClearing(txID string, bill *ledger.Bill, tpl *ledger.RecurringTemplate, next *ledger.Bill) error {
	m.CommitClearingCalls++
	if m.CommitClearingErr != nil {
		return m.CommitClearingErr
	}

	stored, ok := m.bills[bill.ID]
	if !ok {
		return fmt.Errorf("%w: bill %s", ErrNotFound, bill.ID)
	}
	stored.IsPaid = true
	m.LastCommittedBillID = bill.ID
	m.processed[txID] = bill.ID

	if tpl != nil {
		if err := m.SaveTemplate(tpl); err != nil {
			return err
		}
	}
	if next != nil {
		if err := m.SaveBill(next); err != nil {
			return err
		}
	}
	return nil
}

// ---- clear runs ----

func (m *MockRepository) StartClearRun(userID string) (int64, error) {
	if m.StartClearRunErr != nil {
		return 0, m.StartClearRunErr
	}
	id := m.nextRunID
	m.nextRunID++
	m.runs = append(m.runs, ClearRun{ID: id, UserID: userID, Status: "running"})
	return id, nil
}

func (m *MockRepository) CompleteClearRun(runID int64, matched, unmatched, errored int) error {
	for i := range m.runs {
		if m.runs[i].ID == runID {
			m.runs[i].Matched = matched
			m.runs[i].Unmatched = unmatched
			m.runs[i].Errored = errored
			m.runs[i].Status = "completed"
			return nil
		}
	}
	return fmt.Errorf("%w: clear run %d", ErrNotFound, runID)
}

func (m *MockRepository) ListClearRuns(limit int) ([]ClearRun, error) {
	out := append([]ClearRun(nil), m.runs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortBills(bills []*ledger.Bill) {
	sort.Slice(bills, func(i, j int) bool {
		if !bills[i].DueDate.Equal(bills[j].DueDate) {
			return bills[i].DueDate.Before(bills[j].DueDate)
		}
		return bills[i].ID < bills[j].ID
	})
}
