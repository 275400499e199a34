// Package fx resolves the exchange-rate snapshots documents are frozen with.
package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateCache is a read-through cache of daily snapshots keyed by date
type RateCache interface {
	Get(ctx context.Context, date time.Time) (fx.Snapshot, bool, error)
	Set(ctx context.Context, date time.Time, s fx.Snapshot) error
	Delete(ctx context.Context, date time.Time) error
}

// Config tunes the rate lookup
type Config struct {
	Policy          fx.Policy
	MaxLookbackDays int
}

// RateService implements fx.RateProvider over the daily rate table
type RateService struct {
	repo    fx.DailyRateRepository
	cache   RateCache
	cfg     Config
	metrics appshared.Metrics
	logger  *zap.Logger
}

// NewRateService creates a RateService. cache may be nil.
func NewRateService(repo fx.DailyRateRepository, cache RateCache, cfg Config, logger *zap.Logger) *RateService {
	if !cfg.Policy.IsValid() {
		cfg.Policy = fx.PolicyStrict
	}
	if cfg.MaxLookbackDays < 0 {
		cfg.MaxLookbackDays = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateService{
		repo:    repo,
		cache:   cache,
		cfg:     cfg,
		metrics: appshared.NopMetrics{},
		logger:  logger,
	}
}

// SetMetrics sets the metrics sink
func (s *RateService) SetMetrics(m appshared.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// DailyRate returns the snapshot in force on date. Under the strict policy
// the exact day must have a row; the lenient policy falls back to the
// nearest earlier day inside the lookback window.
func (s *RateService) DailyRate(ctx context.Context, date time.Time) (fx.Snapshot, error) {
	day := fx.DateOnly(date)

	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, day)
		switch {
		case err != nil:
			s.logger.Warn("fx rate cache read failed", zap.Time("rate_date", day), zap.Error(err))
		case ok:
			s.metrics.RecordFXLookup(ctx, "cache")
			return snap, nil
		}
	}

	rate, err := s.lookup(ctx, day)
	if err != nil {
		return fx.Snapshot{}, err
	}
	snap := rate.Snapshot()
	s.metrics.RecordFXLookup(ctx, "database")

	if s.cache != nil {
		if err := s.cache.Set(ctx, day, snap); err != nil {
			s.logger.Warn("fx rate cache write failed", zap.Time("rate_date", day), zap.Error(err))
		}
	}
	return snap, nil
}

func (s *RateService) lookup(ctx context.Context, day time.Time) (*fx.DailyRate, error) {
	rate, err := s.repo.FindByDate(ctx, day)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("load daily rate: %w", err)
	}
	if s.cfg.Policy == fx.PolicyLenient && s.cfg.MaxLookbackDays > 0 {
		earliest := day.AddDate(0, 0, -s.cfg.MaxLookbackDays)
		rate, err = s.repo.FindLatestOnOrBefore(ctx, day, earliest)
		if err == nil {
			s.logger.Info("using earlier fx rate",
				zap.Time("requested_date", day),
				zap.Time("rate_date", rate.RateDate))
			return rate, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("load daily rate: %w", err)
		}
	}
	return nil, shared.NewConfigurationError("fx.daily_rate",
		fmt.Sprintf("no exchange rate configured for %s", day.Format(time.DateOnly)))
}

// SetDailyRate creates or replaces the rates for date. A single supplied rate
// is completed through the redenomination factor.
func (s *RateService) SetDailyRate(ctx context.Context, date time.Time, rateOld, rateNew decimal.Decimal) (*fx.DailyRate, error) {
	day := fx.DateOnly(date)
	if day.IsZero() {
		return nil, shared.NewValidationError("rate_date", "rate date is required")
	}

	rate, err := s.repo.FindByDate(ctx, day)
	switch {
	case err == nil:
		if err := rate.Update(rateOld, rateNew); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		rate, err = fx.NewDailyRate(day, rateOld, rateNew)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load daily rate: %w", err)
	}

	if err := s.repo.Save(ctx, rate); err != nil {
		return nil, fmt.Errorf("save daily rate: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, day); err != nil {
			s.logger.Warn("fx rate cache invalidation failed", zap.Time("rate_date", day), zap.Error(err))
		}
	}
	s.logger.Info("daily fx rate set",
		zap.Time("rate_date", day),
		zap.String("usd_to_syp_old", rate.USDToSYPOld.String()),
		zap.String("usd_to_syp_new", rate.USDToSYPNew.String()))
	return rate, nil
}

// SnapshotInput carries optional caller-supplied rates
type SnapshotInput struct {
	RateDate *time.Time       `json:"fx_rate_date"`
	RateOld  *decimal.Decimal `json:"usd_to_syp_old_snapshot"`
	RateNew  *decimal.Decimal `json:"usd_to_syp_new_snapshot"`
}

// HasRates reports whether the caller supplied at least one rate
func (in SnapshotInput) HasRates() bool {
	return in.RateOld != nil || in.RateNew != nil
}

// Resolve returns the caller's rates when given, normalized, or the daily
// snapshot for the input's rate date (falling back to docDate).
func (s *RateService) Resolve(ctx context.Context, in SnapshotInput, docDate time.Time) (fx.Snapshot, error) {
	date := docDate
	if in.RateDate != nil && !in.RateDate.IsZero() {
		date = *in.RateDate
	}
	if date.IsZero() {
		date = time.Now()
	}
	if !in.HasRates() {
		return s.DailyRate(ctx, date)
	}
	var rateOld, rateNew decimal.Decimal
	if in.RateOld != nil {
		rateOld = *in.RateOld
	}
	if in.RateNew != nil {
		rateNew = *in.RateNew
	}
	return fx.NewSnapshot(date, rateOld, rateNew)
}

var _ fx.RateProvider = (*RateService)(nil)
