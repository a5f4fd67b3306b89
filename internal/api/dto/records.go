// Package dto defines the JSON shapes of the HTTP API. Dates cross the
// wire as "YYYY-MM-DD" strings; conversion to the domain types happens
// here so handlers never parse dates themselves.
package dto

import (
	"fmt"

	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
)

// Transaction is the wire form of a bank transaction.
type Transaction struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"`
	Category string  `json:"category,omitempty"`
}

// ToLedger converts to the domain type, parsing the date.
func (t Transaction) ToLedger() (ledger.Transaction, error) {
	date, err := ledger.ParseDate(t.Date)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %s: invalid date %q", t.ID, t.Date)
	}
	return ledger.Transaction{
		ID:       t.ID,
		Name:     t.Name,
		Amount:   t.Amount,
		Date:     date,
		Category: t.Category,
	}, nil
}

// FromTransaction converts a domain transaction to its wire form.
func FromTransaction(tx ledger.Transaction) Transaction {
	return Transaction{
		ID:       tx.ID,
		Name:     tx.Name,
		Amount:   tx.Amount,
		Date:     tx.Date.Format(ledger.DateFormat),
		Category: tx.Category,
	}
}

// Bill is the wire form of a bill.
type Bill struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Amount              float64  `json:"amount"`
	DueDate             string   `json:"due_date"`
	MerchantNames       []string `json:"merchant_names,omitempty"`
	IsPaid              bool     `json:"is_paid"`
	RecurringTemplateID string   `json:"recurring_template_id,omitempty"`
}

// ToLedger converts to the domain type, parsing the due date.
func (b Bill) ToLedger() (ledger.Bill, error) {
	due, err := ledger.ParseDate(b.DueDate)
	if err != nil {
		return ledger.Bill{}, fmt.Errorf("bill %s: invalid due date %q", b.ID, b.DueDate)
	}
	return ledger.Bill{
		ID:                  b.ID,
		Name:                b.Name,
		Amount:              b.Amount,
		DueDate:             due,
		MerchantNames:       b.MerchantNames,
		IsPaid:              b.IsPaid,
		RecurringTemplateID: b.RecurringTemplateID,
	}, nil
}

// FromBill converts a domain bill to its wire form.
func FromBill(bill *ledger.Bill) Bill {
	return Bill{
		ID:                  bill.ID,
		Name:                bill.Name,
		Amount:              bill.Amount,
		DueDate:             bill.DueDate.Format(ledger.DateFormat),
		MerchantNames:       bill.MerchantNames,
		IsPaid:              bill.IsPaid,
		RecurringTemplateID: bill.RecurringTemplateID,
	}
}

// Template is the wire form of a recurring template.
type Template struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Amount         float64  `json:"amount"`
	Rule           string   `json:"rule"`
	NextOccurrence string   `json:"next_occurrence"`
	SkippedPeriods []string `json:"skipped_periods,omitempty"`
}

// ToLedger converts to the domain type, parsing the next occurrence.
func (t Template) ToLedger() (ledger.RecurringTemplate, error) {
	next, err := ledger.ParseDate(t.NextOccurrence)
	if err != nil {
		return ledger.RecurringTemplate{}, fmt.Errorf("template %s: invalid next occurrence %q", t.ID, t.NextOccurrence)
	}
	return ledger.RecurringTemplate{
		ID:             t.ID,
		Name:           t.Name,
		Amount:         t.Amount,
		Rule:           ledger.Rule(t.Rule),
		NextOccurrence: next,
		SkippedPeriods: t.SkippedPeriods,
	}, nil
}

// FromTemplate converts a domain template to its wire form.
func FromTemplate(tpl *ledger.RecurringTemplate) Template {
	return Template{
		ID:             tpl.ID,
		Name:           tpl.Name,
		Amount:         tpl.Amount,
		Rule:           string(tpl.Rule),
		NextOccurrence: tpl.NextOccurrence.Format(ledger.DateFormat),
		SkippedPeriods: tpl.SkippedPeriods,
	}
}
