package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentSequence holds the last number issued per prefix and year
type documentSequence struct {
	Prefix    string `gorm:"type:varchar(10);primaryKey"`
	Year      int    `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (documentSequence) TableName() string {
	return "document_sequences"
}

// GormNumberGenerator issues PREFIX-YYYY-NNNNN numbers from a locked
// counter row, so numbers stay gapless per prefix and year within
// committed transactions.
type GormNumberGenerator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormNumberGenerator creates a new GormNumberGenerator
func NewGormNumberGenerator(db *gorm.DB) *GormNumberGenerator {
	return &GormNumberGenerator{db: db, now: time.Now}
}

// Next returns the next number for prefix
func (g *GormNumberGenerator) Next(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", shared.NewValidationError("prefix", "number prefix is required")
	}
	year := g.now().Year()

	var next int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := documentSequence{Prefix: prefix, Year: year}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var seq documentSequence
		if err := forUpdate(tx).Where("prefix = ? AND year = ?", prefix, year).First(&seq).Error; err != nil {
			return err
		}
		next = seq.LastValue + 1
		return tx.Model(&documentSequence{}).
			Where("prefix = ? AND year = ?", prefix, year).
			Update("last_value", next).Error
	})
	if err != nil {
		return "", translateError(err)
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, year, next), nil
}

var _ shared.NumberGenerator = (*GormNumberGenerator)(nil)
