package persistence

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDailyRateRepository implements fx.DailyRateRepository using GORM
type GormDailyRateRepository struct {
	db *gorm.DB
}

// NewGormDailyRateRepository creates a new GormDailyRateRepository
func NewGormDailyRateRepository(db *gorm.DB) *GormDailyRateRepository {
	return &GormDailyRateRepository{db: db}
}

// FindByDate finds the rates recorded for exactly date
func (r *GormDailyRateRepository) FindByDate(ctx context.Context, date time.Time) (*fx.DailyRate, error) {
	var rate fx.DailyRate
	if err := first(r.db.WithContext(ctx).Where("rate_date = ?", fx.DateOnly(date)), &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// FindLatestOnOrBefore finds the most recent rates dated in [earliest, date]
func (r *GormDailyRateRepository) FindLatestOnOrBefore(ctx context.Context, date, earliest time.Time) (*fx.DailyRate, error) {
	var rate fx.DailyRate
	query := r.db.WithContext(ctx).
		Where("rate_date <= ? AND rate_date >= ?", fx.DateOnly(date), fx.DateOnly(earliest)).
		Order("rate_date DESC")
	if err := first(query, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Save creates or updates a daily rate
func (r *GormDailyRateRepository) Save(ctx context.Context, rate *fx.DailyRate) error {
	return translateError(r.db.WithContext(ctx).Save(rate).Error)
}

// GormOverrideRepository implements credit.OverrideRepository using GORM
type GormOverrideRepository struct {
	db *gorm.DB
}

// NewGormOverrideRepository creates a new GormOverrideRepository
func NewGormOverrideRepository(db *gorm.DB) *GormOverrideRepository {
	return &GormOverrideRepository{db: db}
}

// Create appends an override record
func (r *GormOverrideRepository) Create(ctx context.Context, o *credit.LimitOverride) error {
	return translateError(r.db.WithContext(ctx).Create(o).Error)
}

// FindByInvoice lists the overrides granted for an invoice
func (r *GormOverrideRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]credit.LimitOverride, error) {
	var overrides []credit.LimitOverride
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at").
		Find(&overrides).Error
	if err != nil {
		return nil, translateError(err)
	}
	return overrides, nil
}

// GormAuditRepository implements audit.Repository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Record appends an audit entry
func (r *GormAuditRepository) Record(ctx context.Context, entry *audit.Entry) error {
	return translateError(r.db.WithContext(ctx).Create(entry).Error)
}

// FindByEntity lists the audit trail of one entity oldest first
func (r *GormAuditRepository) FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]audit.Entry, error) {
	var entries []audit.Entry
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, translateError(err)
	}
	return entries, nil
}

var (
	_ fx.DailyRateRepository    = (*GormDailyRateRepository)(nil)
	_ credit.OverrideRepository = (*GormOverrideRepository)(nil)
	_ audit.Repository          = (*GormAuditRepository)(nil)
)
