package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormExchangeRateRepository implements currency.RateRepository using GORM
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewGormExchangeRateRepository creates a new GormExchangeRateRepository
func NewGormExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// Save upserts every quote of the table at its date
func (r *GormExchangeRateRepository) Save(ctx context.Context, table *currency.RateTable) error {
	if table == nil || table.Base() == "" {
		return fmt.Errorf("%w: rate table needs a base currency", shared.ErrInvalidInput)
	}
	rows := models.ExchangeRateModelsFromTable(table)
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "base"}, {Name: "currency"}, {Name: "effective_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
		}).
		Create(&rows).Error
}

// Latest returns the newest quote per currency dated on or before asOf. The
// table is dated with the newest quote it holds.
func (r *GormExchangeRateRepository) Latest(ctx context.Context, base valueobject.Currency, asOf time.Time) (*currency.RateTable, error) {
	var rows []models.ExchangeRateModel
	if err := r.db.WithContext(ctx).
		Where("base = ? AND effective_date <= ?", string(base), models.DateOnly(asOf)).
		Order("effective_date DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no exchange rates for %s on or before %s",
			shared.ErrNotFound, base, asOf.Format(time.DateOnly))
	}

	seen := make(map[string]bool, len(rows))
	rates := make([]currency.Rate, 0, len(rows))
	for i := range rows {
		if seen[rows[i].Currency] {
			continue
		}
		seen[rows[i].Currency] = true
		rates = append(rates, rows[i].ToRate())
	}
	return currency.NewRateTable(base, rows[0].EffectiveDate, rates)
}

var _ currency.RateRepository = (*GormExchangeRateRepository)(nil)
