package sales

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EntryKind is the type of document behind a statement row
type EntryKind string

const (
	EntryKindInvoice EntryKind = "invoice"
	EntryKindPayment EntryKind = "payment"
	EntryKindReturn  EntryKind = "return"
)

// priority orders rows that share a date: invoices, then payments, then returns
func (k EntryKind) priority() int {
	switch k {
	case EntryKindInvoice:
		return 0
	case EntryKindPayment:
		return 1
	default:
		return 2
	}
}

var titleCaser = cases.Title(language.English)

// Label returns the display label of the kind
func (k EntryKind) Label() string {
	return titleCaser.String(string(k))
}

// StatementEntry is one dated movement on a customer account. Debit and
// Credit are in the local ledger currency; the Reference variants are in the
// reference currency.
type StatementEntry struct {
	Date             time.Time            `json:"date"`
	Kind             EntryKind            `json:"type"`
	DocumentID       uuid.UUID            `json:"document_id"`
	Reference        string               `json:"reference"`
	Currency         valueobject.Currency `json:"transaction_currency"`
	Description      string               `json:"description"`
	Debit            decimal.Decimal      `json:"debit"`
	Credit           decimal.Decimal      `json:"credit"`
	DebitReference   decimal.Decimal      `json:"debit_reference"`
	CreditReference  decimal.Decimal      `json:"credit_reference"`
	Balance          decimal.Decimal      `json:"balance"`
	BalanceReference decimal.Decimal      `json:"balance_reference"`
}

// StatementTotals sums one column pair
type StatementTotals struct {
	Local     decimal.Decimal `json:"local"`
	Reference decimal.Decimal `json:"reference"`
}

func (t *StatementTotals) add(local, ref decimal.Decimal) {
	t.Local = t.Local.Add(local)
	t.Reference = t.Reference.Add(ref)
}

// Statement is a customer account statement for a period
type Statement struct {
	CustomerID              uuid.UUID        `json:"customer_id"`
	CustomerCode            string           `json:"customer_code"`
	CustomerName            string           `json:"customer_name"`
	From                    *time.Time       `json:"from,omitempty"`
	To                      *time.Time       `json:"to,omitempty"`
	OpeningBalance          decimal.Decimal  `json:"opening_balance"`
	OpeningBalanceReference decimal.Decimal  `json:"opening_balance_reference"`
	ClosingBalance          decimal.Decimal  `json:"closing_balance"`
	ClosingBalanceReference decimal.Decimal  `json:"closing_balance_reference"`
	TotalDebit              StatementTotals  `json:"total_debit"`
	TotalCredit             StatementTotals  `json:"total_credit"`
	TotalPayments           StatementTotals  `json:"total_payments"`
	TotalReturns            StatementTotals  `json:"total_returns"`
	Entries                 []StatementEntry `json:"transactions"`
}

// StatementParty identifies the customer and carries the balance the ledger started from
type StatementParty struct {
	ID                      uuid.UUID
	Code                    string
	Name                    string
	OpeningBalance          decimal.Decimal
	OpeningBalanceReference decimal.Decimal
}

// SortEntries orders rows by date, kind priority and document id
func SortEntries(entries []StatementEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Kind.priority() != b.Kind.priority() {
			return a.Kind.priority() < b.Kind.priority()
		}
		return a.DocumentID.String() < b.DocumentID.String()
	})
}

// BuildStatement folds every entry dated before from into the opening
// balance and lists the rest up to to (inclusive) with running balances.
func BuildStatement(party StatementParty, entries []StatementEntry, from, to *time.Time) *Statement {
	all := make([]StatementEntry, len(entries))
	copy(all, entries)
	SortEntries(all)

	st := &Statement{
		CustomerID:              party.ID,
		CustomerCode:            party.Code,
		CustomerName:            party.Name,
		From:                    from,
		To:                      to,
		OpeningBalance:          party.OpeningBalance,
		OpeningBalanceReference: party.OpeningBalanceReference,
		Entries:                 make([]StatementEntry, 0, len(all)),
	}

	for _, e := range all {
		if from != nil && e.Date.Before(*from) {
			st.OpeningBalance = st.OpeningBalance.Add(e.Debit).Sub(e.Credit)
			st.OpeningBalanceReference = st.OpeningBalanceReference.Add(e.DebitReference).Sub(e.CreditReference)
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		st.Entries = append(st.Entries, e)
	}

	running := st.OpeningBalance
	runningRef := st.OpeningBalanceReference
	for idx := range st.Entries {
		e := &st.Entries[idx]
		if e.Description == "" {
			e.Description = fmt.Sprintf("%s %s", e.Kind.Label(), e.Reference)
		}
		running = running.Add(e.Debit).Sub(e.Credit)
		runningRef = runningRef.Add(e.DebitReference).Sub(e.CreditReference)
		e.Balance = running
		e.BalanceReference = runningRef

		st.TotalDebit.add(e.Debit, e.DebitReference)
		st.TotalCredit.add(e.Credit, e.CreditReference)
		switch e.Kind {
		case EntryKindPayment:
			st.TotalPayments.add(e.Credit, e.CreditReference)
		case EntryKindReturn:
			st.TotalReturns.add(e.Credit, e.CreditReference)
		}
	}

	st.ClosingBalance = running
	st.ClosingBalanceReference = runningRef
	return st
}

// InvoiceEntry builds the debit row of a posted invoice
func InvoiceEntry(inv *Invoice) (StatementEntry, error) {
	local, err := inv.LocalAmount(inv.TotalAmount, inv.TotalAmountReference)
	if err != nil {
		return StatementEntry{}, err
	}
	return StatementEntry{
		Date:           inv.InvoiceDate,
		Kind:           EntryKindInvoice,
		DocumentID:     inv.ID,
		Reference:      inv.InvoiceNumber,
		Currency:       inv.TransactionCurrency,
		Debit:          local,
		Credit:         decimal.Zero,
		DebitReference: inv.TotalAmountReference,
	}, nil
}

// PaymentEntry builds the credit row of a payment
func PaymentEntry(p *Payment) (StatementEntry, error) {
	local, err := p.LocalAmount(p.Amount, p.AmountReference)
	if err != nil {
		return StatementEntry{}, err
	}
	return StatementEntry{
		Date:            p.PaymentDate,
		Kind:            EntryKindPayment,
		DocumentID:      p.ID,
		Reference:       p.PaymentNumber,
		Currency:        p.TransactionCurrency,
		Debit:           decimal.Zero,
		Credit:          local,
		CreditReference: p.AmountReference,
	}, nil
}

// ReturnEntry builds the credit row of a sales return
func ReturnEntry(r *SalesReturn) (StatementEntry, error) {
	local, err := r.LocalAmount(r.TotalAmount, r.TotalAmountReference)
	if err != nil {
		return StatementEntry{}, err
	}
	return StatementEntry{
		Date:            r.ReturnDate,
		Kind:            EntryKindReturn,
		DocumentID:      r.ID,
		Reference:       r.ReturnNumber,
		Currency:        r.TransactionCurrency,
		Debit:           decimal.Zero,
		Credit:          local,
		CreditReference: r.TotalAmountReference,
	}, nil
}
