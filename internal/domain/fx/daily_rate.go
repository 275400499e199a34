package fx

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DailyRate is the persisted pair of exchange rates for one calendar day
type DailyRate struct {
	shared.BaseEntity
	RateDate    time.Time       `gorm:"type:date;not null;uniqueIndex:idx_daily_rate_date"`
	USDToSYPOld decimal.Decimal `gorm:"column:usd_to_syp_old;type:decimal(18,6);not null"`
	USDToSYPNew decimal.Decimal `gorm:"column:usd_to_syp_new;type:decimal(18,6);not null"`
}

// TableName returns the table name for GORM
func (DailyRate) TableName() string {
	return "daily_exchange_rates"
}

// NewDailyRate creates a rate row, deriving whichever rate is missing
func NewDailyRate(date time.Time, rateOld, rateNew decimal.Decimal) (*DailyRate, error) {
	s, err := NewSnapshot(date, rateOld, rateNew)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &DailyRate{
		BaseEntity:  shared.NewBaseEntity(),
		RateDate:    s.RateDate,
		USDToSYPOld: s.RateOld,
		USDToSYPNew: s.RateNew,
	}, nil
}

// Snapshot returns the rates as a conversion snapshot
func (r *DailyRate) Snapshot() Snapshot {
	return Snapshot{RateDate: DateOnly(r.RateDate), RateOld: r.USDToSYPOld, RateNew: r.USDToSYPNew}
}

// Update replaces the rates of the day
func (r *DailyRate) Update(rateOld, rateNew decimal.Decimal) error {
	s, err := NewSnapshot(r.RateDate, rateOld, rateNew)
	if err != nil {
		return err
	}
	r.USDToSYPOld = s.RateOld
	r.USDToSYPNew = s.RateNew
	r.Touch()
	return nil
}

// RateProvider supplies the snapshot in force on a date
type RateProvider interface {
	DailyRate(ctx context.Context, date time.Time) (Snapshot, error)
}

// DailyRateRepository persists daily rates
type DailyRateRepository interface {
	FindByDate(ctx context.Context, date time.Time) (*DailyRate, error)
	// FindLatestOnOrBefore returns the most recent row dated in [earliest, date]
	FindLatestOnOrBefore(ctx context.Context, date, earliest time.Time) (*DailyRate, error)
	Save(ctx context.Context, rate *DailyRate) error
}

// Policy selects how a missing day is handled
type Policy string

const (
	// PolicyStrict fails when the exact day has no rate
	PolicyStrict Policy = "strict"
	// PolicyLenient falls back to the nearest prior day within a lookback window
	PolicyLenient Policy = "lenient"
)

// IsValid reports whether p is a known policy
func (p Policy) IsValid() bool {
	return p == PolicyStrict || p == PolicyLenient
}
