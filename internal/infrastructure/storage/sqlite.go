package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

// Storage provides SQLite database access for bills, templates,
// transactions and clear runs. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// ---- transactions ----

// SaveTransactions ingests a batch, leaving already known IDs untouched.
func (s *Storage) SaveTransactions(txs []ledger.Transaction) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	stmt, err := dbTx.Prepare(`
		INSERT OR IGNORE INTO transactions (id, name, amount, date, category)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, tx := range txs {
		if _, err := stmt.Exec(tx.ID, tx.Name, tx.Amount, tx.Date.Format(ledger.DateFormat), tx.Category); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
		}
	}

	return dbTx.Commit()
}

// ListUnprocessedTransactions returns transactions no cycle has consumed
// yet, oldest first.
func (s *Storage) ListUnprocessedTransactions() ([]ledger.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, name, amount, date, category
		FROM transactions
		WHERE processed = 0
		ORDER BY date ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// MarkTransactionProcessed records the cycle outcome for one transaction.
func (s *Storage) MarkTransactionProcessed(id, billID string) error {
	res, err := s.db.Exec(`
		UPDATE transactions SET processed = 1, matched_bill_id = ? WHERE id = ?
	`, nullableString(billID), id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "transaction", id)
}

// ---- bills ----

// SaveBill inserts or updates a bill.
func (s *Storage) SaveBill(bill *ledger.Bill) error {
	aliases, _ := json.Marshal(bill.MerchantNames)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO bills
			(id, name, amount, due_date, merchant_names, is_paid, recurring_template_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		bill.ID,
		bill.Name,
		bill.Amount,
		bill.DueDate.Format(ledger.DateFormat),
		string(aliases),
		bill.IsPaid,
		nullableString(bill.RecurringTemplateID),
	)
	return err
}

// GetBill retrieves a bill by ID.
func (s *Storage) GetBill(id string) (*ledger.Bill, error) {
	row := s.db.QueryRow(billSelect+" WHERE id = ?", id)
	bill, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ListUnpaidBills returns all unpaid bills ordered by due date.
func (s *Storage) ListUnpaidBills() ([]*ledger.Bill, error) {
	return s.queryBills(billSelect + " WHERE is_paid = 0 ORDER BY due_date ASC")
}

// ListBills returns every bill ordered by due date.
func (s *Storage) ListBills() ([]*ledger.Bill, error) {
	return s.queryBills(billSelect + " ORDER BY due_date ASC")
}

// ListBillsByTemplate returns every instance generated from one template.
func (s *Storage) ListBillsByTemplate(templateID string) ([]ledger.Bill, error) {
	bills, err := s.queryBills(billSelect+" WHERE recurring_template_id = ? ORDER BY due_date ASC", templateID)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Bill, len(bills))
	for i, b := range bills {
		out[i] = *b
	}
	return out, nil
}

// DeleteBill removes a bill.
func (s *Storage) DeleteBill(id string) error {
	res, err := s.db.Exec(`DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "bill", id)
}

// GetStats returns aggregate counts.
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_paid = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_paid = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_paid = 0 THEN amount ELSE 0 END), 0)
		FROM bills
	`).Scan(&stats.TotalBills, &stats.UnpaidBills, &stats.PaidBills, &stats.UnpaidTotal)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM recurring_templates`).Scan(&stats.TotalTemplates); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&stats.TransactionCount); err != nil {
		return nil, err
	}

	return stats, nil
}

// ---- templates ----

// SaveTemplate inserts or updates a template.
func (s *Storage) SaveTemplate(tpl *ledger.RecurringTemplate) error {
	return saveTemplate(s.db, tpl)
}

// GetTemplate retrieves a template by ID.
func (s *Storage) GetTemplate(id string) (*ledger.RecurringTemplate, error) {
	row := s.db.QueryRow(templateSelect+" WHERE id = ?", id)
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// ListTemplates returns all templates.
func (s *Storage) ListTemplates() ([]*ledger.RecurringTemplate, error) {
	rows, err := s.db.Query(templateSelect + " ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tpls []*ledger.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, tpl)
	}
	return tpls, rows.Err()
}

// DeleteTemplateCascade removes a template and its unpaid instances in
// one transaction. Paid bills keep their history; only their template
// reference is cleared.
func (s *Storage) DeleteTemplateCascade(id string) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	if _, err := dbTx.Exec(`DELETE FROM bills WHERE recurring_template_id = ? AND is_paid = 0`, id); err != nil {
		return err
	}
	if _, err := dbTx.Exec(`UPDATE bills SET recurring_template_id = NULL WHERE recurring_template_id = ?`, id); err != nil {
		return err
	}

	res, err := dbTx.Exec(`DELETE FROM recurring_templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRowAffected(res, "template", id); err != nil {
		return err
	}

	return dbTx.Commit()
}

// CommitClearing writes one cleared bill as a unit: bill paid,
// transaction consumed, template advanced, next instance inserted. A
// failure rolls the whole unit back so no bill is ever left paid with a
// half-advanced template.
func (s *Storage) CommitClearing(txID string, bill *ledger.Bill, tpl *ledger.RecurringTemplate, next *ledger.Bill) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	res, err := dbTx.Exec(`UPDATE bills SET is_paid = 1 WHERE id = ?`, bill.ID)
	if err != nil {
		return err
	}
	if err := requireRowAffected(res, "bill", bill.ID); err != nil {
		return err
	}

	if _, err := dbTx.Exec(`
		UPDATE transactions SET processed = 1, matched_bill_id = ? WHERE id = ?
	`, bill.ID, txID); err != nil {
		return err
	}

	if tpl != nil {
		if err := saveTemplate(dbTx, tpl); err != nil {
			return err
		}
	}

	if next != nil {
		aliases, _ := json.Marshal(next.MerchantNames)
		if _, err := dbTx.Exec(`
			INSERT INTO bills (id, name, amount, due_date, merchant_names, is_paid, recurring_template_id)
			VALUES (?, ?, ?, ?, ?, 0, ?)
		`, next.ID, next.Name, next.Amount, next.DueDate.Format(ledger.DateFormat), string(aliases), nullableString(next.RecurringTemplateID)); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// ---- clear runs ----

// StartClearRun records the start of a cycle.
func (s *Storage) StartClearRun(userID string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO clear_runs (user_id, started_at, status) VALUES (?, ?, 'running')
	`, userID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CompleteClearRun records a cycle's outcome.
func (s *Storage) CompleteClearRun(runID int64, matched, unmatched, errored int) error {
	res, err := s.db.Exec(`
		UPDATE clear_runs
		SET completed_at = ?, matched = ?, unmatched = ?, errored = ?, status = 'completed'
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), matched, unmatched, errored, runID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "clear run", fmt.Sprint(runID))
}

// ListClearRuns returns recent runs, newest first.
func (s *Storage) ListClearRuns(limit int) ([]ClearRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, started_at, COALESCE(completed_at, ''), matched, unmatched, errored, status
		FROM clear_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []ClearRun
	for rows.Next() {
		var run ClearRun
		if err := rows.Scan(&run.ID, &run.UserID, &run.StartedAt, &run.CompletedAt,
			&run.Matched, &run.Unmatched, &run.Errored, &run.Status); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ---- scanning helpers ----

const billSelect = `
	SELECT id, name, amount, due_date, merchant_names, is_paid, COALESCE(recurring_template_id, '')
	FROM bills`

const templateSelect = `
	SELECT id, name, amount, rule, next_occurrence, skipped_periods
	FROM recurring_templates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*ledger.Bill, error) {
	var bill ledger.Bill
	var dueDate, aliases string
	if err := row.Scan(&bill.ID, &bill.Name, &bill.Amount, &dueDate, &aliases, &bill.IsPaid, &bill.RecurringTemplateID); err != nil {
		return nil, err
	}

	var err error
	if bill.DueDate, err = ledger.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("bill %s has malformed due date %q: %w", bill.ID, dueDate, err)
	}
	if aliases != "" {
		_ = json.Unmarshal([]byte(aliases), &bill.MerchantNames)
	}
	return &bill, nil
}

func (s *Storage) queryBills(query string, args ...any) ([]*ledger.Bill, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var bills []*ledger.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

func scanTransaction(row rowScanner) (ledger.Transaction, error) {
	var tx ledger.Transaction
	var date string
	if err := row.Scan(&tx.ID, &tx.Name, &tx.Amount, &date, &tx.Category); err != nil {
		return tx, err
	}

	var err error
	if tx.Date, err = ledger.ParseDate(date); err != nil {
		return tx, fmt.Errorf("transaction %s has malformed date %q: %w", tx.ID, date, err)
	}
	return tx, nil
}

func scanTemplate(row rowScanner) (*ledger.RecurringTemplate, error) {
	var tpl ledger.RecurringTemplate
	var next, skipped, rule string
	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Amount, &rule, &next, &skipped); err != nil {
		return nil, err
	}

	tpl.Rule = ledger.Rule(rule)
	var err error
	if tpl.NextOccurrence, err = ledger.ParseDate(next); err != nil {
		return nil, fmt.Errorf("template %s has malformed next occurrence %q: %w", tpl.ID, next, err)
	}
	if skipped != "" {
		_ = json.Unmarshal([]byte(skipped), &tpl.SkippedPeriods)
	}
	return &tpl, nil
}

// execer abstracts *sql.DB and *sql.Tx for writes.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveTemplate(db execer, tpl *ledger.RecurringTemplate) error {
	skipped, _ := json.Marshal(tpl.SkippedPeriods)
	_, err := db.Exec(`
		INSERT OR REPLACE INTO recurring_templates
			(id, name, amount, rule, next_occurrence, skipped_periods)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		tpl.ID,
		tpl.Name,
		tpl.Amount,
		string(tpl.Rule),
		tpl.NextOccurrence.Format(ledger.DateFormat),
		string(skipped),
	)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRowAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return nil
}
