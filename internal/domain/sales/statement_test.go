package sales

import (
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryKind_Label(t *testing.T) {
	assert.Equal(t, "Invoice", EntryKindInvoice.Label())
	assert.Equal(t, "Payment", EntryKindPayment.Label())
	assert.Equal(t, "Return", EntryKindReturn.Label())
}

func TestBuildStatement(t *testing.T) {
	party := StatementParty{
		ID:                      uuid.New(),
		Code:                    "C001",
		Name:                    "Acme",
		OpeningBalance:          d("75000"),
		OpeningBalanceReference: d("5"),
	}
	entries := []StatementEntry{
		{Date: day(time.January, 3), Kind: EntryKindReturn, DocumentID: uuid.New(), Reference: "RET-1", Credit: d("150000"), CreditReference: d("10")},
		{Date: day(time.January, 1), Kind: EntryKindPayment, DocumentID: uuid.New(), Reference: "PAY-1", Credit: d("600000"), CreditReference: d("40")},
		{Date: day(time.January, 1), Kind: EntryKindInvoice, DocumentID: uuid.New(), Reference: "INV-2", Debit: d("1500000"), DebitReference: d("100")},
		{Date: time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC), Kind: EntryKindInvoice, DocumentID: uuid.New(), Reference: "INV-1", Debit: d("750000"), DebitReference: d("50")},
		{Date: day(time.February, 1), Kind: EntryKindInvoice, DocumentID: uuid.New(), Reference: "INV-3", Debit: d("15000"), DebitReference: d("1")},
	}
	from := day(time.January, 1)
	to := day(time.January, 31)

	st := BuildStatement(party, entries, &from, &to)

	assert.True(t, st.OpeningBalanceReference.Equal(d("55")), "earlier rows fold into the opening balance")
	assert.True(t, st.OpeningBalance.Equal(d("825000")))

	require.Len(t, st.Entries, 3)
	assert.Equal(t, "INV-2", st.Entries[0].Reference, "invoices sort before payments on the same day")
	assert.Equal(t, "PAY-1", st.Entries[1].Reference)
	assert.Equal(t, "RET-1", st.Entries[2].Reference)
	assert.Equal(t, "Invoice INV-2", st.Entries[0].Description)

	assert.True(t, st.Entries[0].BalanceReference.Equal(d("155")))
	assert.True(t, st.Entries[1].BalanceReference.Equal(d("115")))
	assert.True(t, st.Entries[2].BalanceReference.Equal(d("105")))
	assert.True(t, st.Entries[2].Balance.Equal(d("1575000")))

	assert.True(t, st.ClosingBalanceReference.Equal(d("105")))
	assert.True(t, st.TotalDebit.Reference.Equal(d("100")))
	assert.True(t, st.TotalPayments.Reference.Equal(d("40")))
	assert.True(t, st.TotalReturns.Reference.Equal(d("10")))

	// closing = opening + debits - credits
	expected := st.OpeningBalanceReference.Add(st.TotalDebit.Reference).Sub(st.TotalCredit.Reference)
	assert.True(t, st.ClosingBalanceReference.Equal(expected))

	assert.Equal(t, "RET-1", entries[0].Reference, "input slice untouched")
}

func TestBuildStatement_Unbounded(t *testing.T) {
	st := BuildStatement(StatementParty{}, []StatementEntry{
		{Date: day(time.January, 1), Kind: EntryKindInvoice, DocumentID: uuid.New(), Debit: d("10"), DebitReference: d("10")},
	}, nil, nil)
	require.Len(t, st.Entries, 1)
	assert.True(t, st.OpeningBalance.IsZero())
	assert.True(t, st.ClosingBalance.Equal(d("10")))
}

func TestStatementRowsFromDocuments(t *testing.T) {
	inv := confirmedCreditInvoice(t, "INV-1", day(time.January, 1), "100")
	row, err := InvoiceEntry(inv)
	require.NoError(t, err)
	assert.True(t, row.DebitReference.Equal(d("100")))
	assert.True(t, row.Debit.Equal(d("1500000")), "USD invoices are shown in SYP_OLD at their snapshot")

	doc, err := fx.NewDocumentFX(valueobject.SYPOld)
	require.NoError(t, err)
	require.NoError(t, doc.Freeze(testSnapshot))
	p, err := NewPayment("PAY-1", inv.CustomerID, day(time.January, 2), PaymentMethodCash, d("100000"), doc)
	require.NoError(t, err)

	row, err = PaymentEntry(p)
	require.NoError(t, err)
	assert.True(t, row.Credit.Equal(d("100000")), "local payments keep their exact amount")
	assert.Equal(t, EntryKindPayment, row.Kind)
	assert.False(t, row.CreditReference.Equal(decimal.Zero))
}
