// Package fx converts amounts between the local tenders and the reference
// currency using frozen point-in-time rate snapshots.
package fx

import (
	"fmt"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RedenominationFactor is the number of SYP_OLD units in one SYP_NEW unit
var RedenominationFactor = decimal.NewFromInt(100)

// Snapshot holds the two daily rates, expressed as local units per one
// reference unit, captured for a specific date.
type Snapshot struct {
	RateDate time.Time       `json:"rate_date"`
	RateOld  decimal.Decimal `json:"usd_to_syp_old"`
	RateNew  decimal.Decimal `json:"usd_to_syp_new"`
}

// NewSnapshot creates a snapshot, deriving a missing rate from the other one
func NewSnapshot(date time.Time, rateOld, rateNew decimal.Decimal) (Snapshot, error) {
	old, nw, err := Normalize(rateOld, rateNew)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{RateDate: DateOnly(date), RateOld: old, RateNew: nw}, nil
}

// IsZero reports whether no rate has been captured
func (s Snapshot) IsZero() bool {
	return s.RateOld.IsZero() && s.RateNew.IsZero()
}

// RateFor returns the rate used for currency c. The reference currency
// always converts at 1.
func (s Snapshot) RateFor(c valueobject.Currency) (decimal.Decimal, error) {
	switch c {
	case valueobject.USD:
		return decimal.NewFromInt(1), nil
	case valueobject.SYPOld:
		if !s.RateOld.IsPositive() {
			return decimal.Zero, shared.NewConfigurationError("fx.usd_to_syp_old",
				fmt.Sprintf("no valid SYP_OLD rate in snapshot for %s", s.dateLabel()))
		}
		return s.RateOld, nil
	case valueobject.SYPNew:
		if !s.RateNew.IsPositive() {
			return decimal.Zero, shared.NewConfigurationError("fx.usd_to_syp_new",
				fmt.Sprintf("no valid SYP_NEW rate in snapshot for %s", s.dateLabel()))
		}
		return s.RateNew, nil
	default:
		return decimal.Zero, shared.NewConfigurationError("fx.currency",
			fmt.Sprintf("unsupported currency %q", c))
	}
}

// Validate checks that both rates are usable
func (s Snapshot) Validate() error {
	if _, err := s.RateFor(valueobject.SYPOld); err != nil {
		return err
	}
	_, err := s.RateFor(valueobject.SYPNew)
	return err
}

// Equal reports whether both snapshots carry the same rates
func (s Snapshot) Equal(other Snapshot) bool {
	return s.RateOld.Equal(other.RateOld) && s.RateNew.Equal(other.RateNew)
}

func (s Snapshot) dateLabel() string {
	if s.RateDate.IsZero() {
		return "undated snapshot"
	}
	return s.RateDate.Format("2006-01-02")
}

// Normalize fills in a missing rate from the other through the fixed
// redenomination factor. Negative rates, or both missing, are rejected.
func Normalize(rateOld, rateNew decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if rateOld.IsNegative() || rateNew.IsNegative() {
		return decimal.Zero, decimal.Zero, shared.NewConfigurationError("fx.daily_rate", "exchange rates cannot be negative")
	}
	switch {
	case rateOld.IsZero() && rateNew.IsZero():
		return decimal.Zero, decimal.Zero, shared.NewConfigurationError("fx.daily_rate", "exchange rate snapshot is missing")
	case rateOld.IsZero():
		rateOld = rateNew.Mul(RedenominationFactor)
	case rateNew.IsZero():
		rateNew = rateOld.Div(RedenominationFactor).Round(Precision)
	}
	return rateOld, rateNew, nil
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day
func Today() time.Time {
	return DateOnly(time.Now())
}
