package fx

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ErrSnapshotFrozen is returned when a document's rates are overwritten with different values
var ErrSnapshotFrozen = shared.NewDomainError("FX_SNAPSHOT_FROZEN", "exchange rate snapshot is already fixed for this document")

// DocumentFX is embedded by every monetary document. It records the currency
// the document is denominated in and the rate snapshot its totals were fixed with.
type DocumentFX struct {
	TransactionCurrency valueobject.Currency `gorm:"type:varchar(10);not null;default:'SYP_OLD'" json:"transaction_currency"`
	FXRateDate          *time.Time           `gorm:"column:fx_rate_date;type:date" json:"fx_rate_date,omitempty"`
	RateOld             decimal.Decimal      `gorm:"column:usd_to_syp_old_snapshot;type:decimal(18,6);not null;default:0" json:"usd_to_syp_old_snapshot"`
	RateNew             decimal.Decimal      `gorm:"column:usd_to_syp_new_snapshot;type:decimal(18,6);not null;default:0" json:"usd_to_syp_new_snapshot"`
}

// NewDocumentFX returns an unfrozen FX block for currency
func NewDocumentFX(currency valueobject.Currency) (DocumentFX, error) {
	if currency == "" {
		currency = valueobject.DefaultLocalCurrency
	}
	if !currency.IsValid() {
		return DocumentFX{}, shared.NewValidationError("transaction_currency", "unsupported currency "+currency.String())
	}
	return DocumentFX{TransactionCurrency: currency}, nil
}

// IsFrozen reports whether rates have been captured
func (d DocumentFX) IsFrozen() bool {
	return d.RateOld.IsPositive() || d.RateNew.IsPositive()
}

// Snapshot returns the captured rates
func (d DocumentFX) Snapshot() Snapshot {
	s := Snapshot{RateOld: d.RateOld, RateNew: d.RateNew}
	if d.FXRateDate != nil {
		s.RateDate = *d.FXRateDate
	}
	return s
}

// Freeze captures s as the document's snapshot. Freezing again with the same
// rates is a no-op; different rates fail with ErrSnapshotFrozen.
func (d *DocumentFX) Freeze(s Snapshot) error {
	old, nw, err := Normalize(s.RateOld, s.RateNew)
	if err != nil {
		return err
	}
	if d.IsFrozen() {
		if d.RateOld.Equal(old) && d.RateNew.Equal(nw) {
			return nil
		}
		return ErrSnapshotFrozen
	}
	d.RateOld = old
	d.RateNew = nw
	if !s.RateDate.IsZero() {
		date := DateOnly(s.RateDate)
		d.FXRateDate = &date
	}
	return nil
}

// ToReference converts an amount in the document currency to the reference currency
func (d DocumentFX) ToReference(amount decimal.Decimal) (decimal.Decimal, error) {
	return ToReference(amount, d.TransactionCurrency, d.Snapshot())
}

// FromReference converts a reference amount to the document currency
func (d DocumentFX) FromReference(amountRef decimal.Decimal) (decimal.Decimal, error) {
	return FromReference(amountRef, d.TransactionCurrency, d.Snapshot())
}

// ToLocal converts a reference amount to the local ledger currency
func (d DocumentFX) ToLocal(amountRef decimal.Decimal) (decimal.Decimal, error) {
	return FromReference(amountRef, valueobject.DefaultLocalCurrency, d.Snapshot())
}

// LocalAmount expresses a document amount in the local ledger currency.
// Documents already in that currency keep their exact transaction amount.
func (d DocumentFX) LocalAmount(amount, amountRef decimal.Decimal) (decimal.Decimal, error) {
	if d.TransactionCurrency == valueobject.DefaultLocalCurrency {
		return amount, nil
	}
	return d.ToLocal(amountRef)
}
