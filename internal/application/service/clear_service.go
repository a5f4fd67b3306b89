// Package service orchestrates clearing cycles: batch matching of pending
// transactions against unpaid bills, atomic per-bill commits, and
// recurrence advancement for cleared bills.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fintrack/billmatch-backend/internal/domain/categorizer"
	"github.com/fintrack/billmatch-backend/internal/domain/clearer"
	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
	"github.com/fintrack/billmatch-backend/internal/domain/matcher"
	"github.com/fintrack/billmatch-backend/internal/domain/recurrence"
	"github.com/fintrack/billmatch-backend/internal/infrastructure/config"
	"github.com/fintrack/billmatch-backend/internal/infrastructure/storage"
)

// DefaultUserID is used when a caller does not identify itself.
const DefaultUserID = "default"

// CycleResult summarizes one clearing cycle.
type CycleResult struct {
	RunID     int64                 `json:"run_id"`
	Matched   int                   `json:"matched"`
	Unmatched int                   `json:"unmatched"`
	Errored   int                   `json:"errored"`
	Results   []clearer.ClearResult `json:"results"`
}

// ClearService runs clearing cycles over storage. At most one cycle per
// user runs at a time; a second caller gets ErrGenerationInFlight and is
// expected to retry on its next cycle.
type ClearService struct {
	storage     storage.Repository
	matcher     *matcher.Matcher
	clearer     *clearer.Clearer
	categorizer *categorizer.Categorizer
	logger      *slog.Logger

	userLocks  map[string]*sync.Mutex
	locksMutex sync.Mutex
}

// NewClearService creates a clear service from config. Zero-valued
// matching tolerances fall back to the matcher defaults; a missing or
// broken categories file falls back to the built-in keyword table.
func NewClearService(cfg *config.Config, store storage.Repository, logger *slog.Logger) *ClearService {
	m := matcher.NewMatcher(matcherConfig(cfg.Matching))

	cat := categorizer.NewDefault()
	if cfg.Categories.File != "" {
		loaded, err := categorizer.LoadFile(cfg.Categories.File)
		if err != nil {
			logger.Warn("failed to load categories file, using defaults",
				"file", cfg.Categories.File, "error", err)
		} else {
			cat = loaded
		}
	}

	return &ClearService{
		storage:     store,
		matcher:     m,
		clearer:     clearer.NewClearer(m),
		categorizer: cat,
		logger:      logger,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

// matcherConfig merges configured tolerances over the defaults.
func matcherConfig(mc config.MatchingConfig) matcher.Config {
	c := matcher.DefaultConfig()
	if mc.AmountToleranceAbs > 0 {
		c.AmountToleranceAbs = mc.AmountToleranceAbs
	}
	if mc.AmountToleranceRatio > 0 {
		c.AmountToleranceRatio = mc.AmountToleranceRatio
	}
	if mc.DateWindowDays > 0 {
		c.DateWindowDays = mc.DateWindowDays
	}
	if mc.NameSimilarity > 0 {
		c.NameSimilarity = mc.NameSimilarity
	}
	return c
}

// RunCycle executes one clearing cycle for a user: load pending
// transactions and unpaid bills, match them, and commit each cleared bill
// (mark paid, advance its template, generate the next instance) as one
// storage transaction.
//
// Unmatched transactions stay pending: the bill they pay may not be
// generated yet, so a later cycle gets another look. Malformed
// transactions are consumed and counted as errors; they never become
// valid by waiting.
func (s *ClearService) RunCycle(ctx context.Context, userID string) (*CycleResult, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	if !s.tryLockUser(userID) {
		return nil, fmt.Errorf("%w: user %s", ErrGenerationInFlight, userID)
	}
	defer s.unlockUser(userID)

	runID, err := s.storage.StartClearRun(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to start clear run: %w", err)
	}

	txs, err := s.storage.ListUnprocessedTransactions()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	bills, err := s.storage.ListUnpaidBills()
	if err != nil {
		return nil, fmt.Errorf("failed to load unpaid bills: %w", err)
	}

	billByID := make(map[string]*ledger.Bill, len(bills))
	for _, b := range bills {
		billByID[b.ID] = b
	}

	results := s.clearer.ClearBills(txs, bills)

	cycle := &CycleResult{RunID: runID, Results: results}
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return cycle, err
		}

		switch {
		case res.Err != nil:
			cycle.Errored++
			s.logger.Warn("rejected malformed record",
				"transaction_id", res.TransactionID, "bill_id", res.BillID, "error", res.Err)
			if res.TransactionID != "" {
				if err := s.storage.MarkTransactionProcessed(res.TransactionID, ""); err != nil {
					s.logger.Error("failed to consume malformed transaction",
						"transaction_id", res.TransactionID, "error", err)
				}
			}

		case res.BillID == "":
			cycle.Unmatched++
			s.logger.Debug("no bill cleared threshold",
				"transaction_id", res.TransactionID, "top_confidence", res.Confidence)

		default:
			if err := s.commitClear(res, billByID[res.BillID]); err != nil {
				cycle.Errored++
				s.logger.Error("failed to commit cleared bill",
					"transaction_id", res.TransactionID, "bill_id", res.BillID, "error", err)
				continue
			}
			cycle.Matched++
			s.logger.Info("bill cleared",
				"transaction_id", res.TransactionID, "bill_id", res.BillID,
				"confidence", res.Confidence)
		}
	}

	if err := s.storage.CompleteClearRun(runID, cycle.Matched, cycle.Unmatched, cycle.Errored); err != nil {
		s.logger.Error("failed to record clear run", "run_id", runID, "error", err)
	}

	s.logger.Info("clearing cycle finished",
		"user_id", userID, "run_id", runID,
		"matched", cycle.Matched, "unmatched", cycle.Unmatched, "errored", cycle.Errored)

	return cycle, nil
}

// commitClear persists one cleared bill. For recurring bills the template
// advances and the next instance generates inside the same storage
// transaction, so a crash never leaves a paid bill with a stale template.
func (s *ClearService) commitClear(res clearer.ClearResult, bill *ledger.Bill) error {
	if bill == nil {
		return fmt.Errorf("cleared bill %s not in unpaid pool", res.BillID)
	}

	if bill.RecurringTemplateID == "" {
		return s.storage.CommitClearing(res.TransactionID, bill, nil, nil)
	}

	tpl, err := s.storage.GetTemplate(bill.RecurringTemplateID)
	if errors.Is(err, storage.ErrNotFound) {
		// Template deleted out from under the bill; clear it as a one-off.
		return s.storage.CommitClearing(res.TransactionID, bill, nil, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to load template %s: %w", bill.RecurringTemplateID, err)
	}

	siblings, err := s.storage.ListBillsByTemplate(tpl.ID)
	if err != nil {
		return fmt.Errorf("failed to load instances of template %s: %w", tpl.ID, err)
	}
	// The bill being cleared no longer counts against the unpaid cap.
	for i := range siblings {
		if siblings[i].ID == bill.ID {
			siblings[i].IsPaid = true
		}
	}

	next, decision := recurrence.Advance(tpl, siblings)
	if decision != recurrence.Generated {
		s.logger.Info("next instance withheld",
			"template_id", tpl.ID, "due", tpl.NextOccurrence.Format(ledger.DateFormat),
			"reason", decision.String())
	}

	return s.storage.CommitClearing(res.TransactionID, bill, tpl, next)
}

// DryRunCycle runs the matching pass over pending transactions and
// unpaid bills without writing anything: no commits, no recurrence
// advancement, no run record. The returned results show what RunCycle
// would clear.
func (s *ClearService) DryRunCycle(ctx context.Context, userID string) (*CycleResult, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	if !s.tryLockUser(userID) {
		return nil, fmt.Errorf("%w: user %s", ErrGenerationInFlight, userID)
	}
	defer s.unlockUser(userID)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txs, err := s.storage.ListUnprocessedTransactions()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	bills, err := s.storage.ListUnpaidBills()
	if err != nil {
		return nil, fmt.Errorf("failed to load unpaid bills: %w", err)
	}

	// ClearBills only mutates the in-memory copies loaded above
	results := s.clearer.ClearBills(txs, bills)

	cycle := &CycleResult{Results: results}
	for _, res := range results {
		switch {
		case res.Err != nil:
			cycle.Errored++
		case res.BillID == "":
			cycle.Unmatched++
		default:
			cycle.Matched++
		}
	}
	return cycle, nil
}

// IngestTransactions stores a batch of bank transactions, assigning a
// spending category to any that arrive without one. Invalid records are
// dropped with a warning; the rest of the batch still lands. Returns the
// number accepted.
func (s *ClearService) IngestTransactions(txs []ledger.Transaction) (int, error) {
	accepted := make([]ledger.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			s.logger.Warn("dropped invalid transaction", "transaction_id", tx.ID, "error", err)
			continue
		}
		if tx.Category == "" {
			tx.Category = s.categorizer.Categorize(tx.Name)
		}
		accepted = append(accepted, tx)
	}

	if len(accepted) == 0 {
		return 0, nil
	}
	if err := s.storage.SaveTransactions(accepted); err != nil {
		return 0, fmt.Errorf("failed to save transactions: %w", err)
	}
	return len(accepted), nil
}

// CreateBill validates and stores a one-off bill, assigning an ID when
// the caller did not.
func (s *ClearService) CreateBill(bill *ledger.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if err := bill.Validate(); err != nil {
		return err
	}
	return s.storage.SaveBill(bill)
}

// DeleteBill removes a bill. For an unpaid recurring instance the bill's
// period is recorded on the template's skip set first, so generation
// never recreates a bill the user explicitly removed.
func (s *ClearService) DeleteBill(id string) error {
	bill, err := s.storage.GetBill(id)
	if err != nil {
		return err
	}

	if bill.RecurringTemplateID != "" && !bill.IsPaid {
		tpl, err := s.storage.GetTemplate(bill.RecurringTemplateID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load template %s: %w", bill.RecurringTemplateID, err)
		}
		if tpl != nil {
			if tpl.AddSkippedPeriod(ledger.PeriodKey(bill.DueDate)) {
				if err := s.storage.SaveTemplate(tpl); err != nil {
					return fmt.Errorf("failed to record skip marker: %w", err)
				}
				s.logger.Info("recorded skip marker",
					"template_id", tpl.ID, "period", ledger.PeriodKey(bill.DueDate))
			}
		}
	}

	return s.storage.DeleteBill(id)
}

// CreateTemplate validates and stores a recurring template and generates
// its first bill instance, due at NextOccurrence. Advancement of later
// instances happens as bills clear.
func (s *ClearService) CreateTemplate(tpl *ledger.RecurringTemplate) (*ledger.Bill, error) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.Name == "" {
		return nil, fmt.Errorf("%w: template missing name", ledger.ErrInvalidRecord)
	}
	if !tpl.Rule.Valid() {
		return nil, fmt.Errorf("%w: template %s has unknown rule %q", ledger.ErrInvalidRecord, tpl.ID, tpl.Rule)
	}
	if tpl.NextOccurrence.IsZero() {
		return nil, fmt.Errorf("%w: template %s missing next occurrence", ledger.ErrInvalidRecord, tpl.ID)
	}
	if tpl.Amount < 0 {
		return nil, fmt.Errorf("%w: template %s has negative amount", ledger.ErrInvalidRecord, tpl.ID)
	}

	if err := s.storage.SaveTemplate(tpl); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	first := &ledger.Bill{
		ID:                  uuid.NewString(),
		Name:                tpl.Name,
		Amount:              tpl.Amount,
		DueDate:             tpl.NextOccurrence,
		RecurringTemplateID: tpl.ID,
	}
	if err := s.storage.SaveBill(first); err != nil {
		return nil, fmt.Errorf("failed to save first instance: %w", err)
	}
	return first, nil
}

// DeleteTemplate removes a template and its unpaid instances. Paid
// instances stay as payment history.
func (s *ClearService) DeleteTemplate(id string) error {
	return s.storage.DeleteTemplateCascade(id)
}

// PreviewMatch scores one transaction against one bill without touching
// storage.
func (s *ClearService) PreviewMatch(tx ledger.Transaction, bill ledger.Bill) matcher.Result {
	return s.matcher.MatchConfidence(tx, bill)
}

// Bills lists bills, optionally restricted to unpaid ones.
func (s *ClearService) Bills(unpaidOnly bool) ([]*ledger.Bill, error) {
	if unpaidOnly {
		return s.storage.ListUnpaidBills()
	}
	return s.storage.ListBills()
}

// Templates lists all recurring templates.
func (s *ClearService) Templates() ([]*ledger.RecurringTemplate, error) {
	return s.storage.ListTemplates()
}

// Runs lists recent clearing cycles, newest first.
func (s *ClearService) Runs(limit int) ([]storage.ClearRun, error) {
	return s.storage.ListClearRuns(limit)
}

// Stats returns aggregate counts for dashboards.
func (s *ClearService) Stats() (*storage.Stats, error) {
	return s.storage.GetStats()
}

// tryLockUser attempts to acquire the clearing lock for a user.
func (s *ClearService) tryLockUser(userID string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.userLocks[userID]; !exists {
		s.userLocks[userID] = &sync.Mutex{}
	}
	return s.userLocks[userID].TryLock()
}

// unlockUser releases the clearing lock for a user.
func (s *ClearService) unlockUser(userID string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.userLocks[userID]; exists {
		lock.Unlock()
	}
}
