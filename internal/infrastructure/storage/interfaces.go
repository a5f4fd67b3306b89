package storage

import (
	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionRepository
	BillRepository
	TemplateRepository
	ClearRunRepository
	Close() error
}

// TransactionRepository handles ingested bank transactions.
// Transactions are immutable once saved; only their processing state
// changes.
type TransactionRepository interface {
	// SaveTransactions ingests a batch. Records already present (same ID)
	// are left untouched.
	SaveTransactions(txs []ledger.Transaction) error

	// ListUnprocessedTransactions returns transactions no clearing cycle
	// has consumed yet, oldest first.
	ListUnprocessedTransactions() ([]ledger.Transaction, error)

	// MarkTransactionProcessed records that a cycle consumed the
	// transaction. billID is empty when nothing matched.
	MarkTransactionProcessed(id, billID string) error
}

// BillRepository handles bill instances.
type BillRepository interface {
	// SaveBill inserts or updates a bill.
	SaveBill(bill *ledger.Bill) error

	// GetBill retrieves a bill by ID.
	GetBill(id string) (*ledger.Bill, error)

	// ListUnpaidBills returns all bills not yet paid.
	ListUnpaidBills() ([]*ledger.Bill, error)

	// ListBills returns all bills.
	ListBills() ([]*ledger.Bill, error)

	// ListBillsByTemplate returns every instance of one template.
	ListBillsByTemplate(templateID string) ([]ledger.Bill, error)

	// DeleteBill removes a bill. For template-generated bills the caller
	// is responsible for recording the skip marker first.
	DeleteBill(id string) error

	// GetStats returns aggregate counts.
	GetStats() (*Stats, error)
}

// TemplateRepository handles recurring bill templates.
type TemplateRepository interface {
	// SaveTemplate inserts or updates a template.
	SaveTemplate(tpl *ledger.RecurringTemplate) error

	// GetTemplate retrieves a template by ID.
	GetTemplate(id string) (*ledger.RecurringTemplate, error)

	// ListTemplates returns all templates.
	ListTemplates() ([]*ledger.RecurringTemplate, error)

	// DeleteTemplateCascade removes a template and its UNPAID bill
	// instances in one transaction. Paid history is never touched.
	DeleteTemplateCascade(id string) error

	// CommitClearing atomically records one cleared bill: the bill flips
	// to paid, the transaction is marked processed against it, and when
	// the bill belongs to a template the advanced template state plus the
	// optionally generated next instance are written in the same
	// transaction.
	CommitClearing(txID string, bill *ledger.Bill, tpl *ledger.RecurringTemplate, next *ledger.Bill) error
}

// ClearRunRepository tracks clearing cycles.
type ClearRunRepository interface {
	// StartClearRun records the start of a cycle and returns the run ID.
	StartClearRun(userID string) (int64, error)

	// CompleteClearRun records the outcome of a cycle.
	CompleteClearRun(runID int64, matched, unmatched, errored int) error

	// ListClearRuns returns recent runs, newest first.
	ListClearRuns(limit int) ([]ClearRun, error)
}
