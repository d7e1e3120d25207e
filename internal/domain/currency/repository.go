package currency

import (
	"context"
	"time"

	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// RateRepository persists rate tables by effective date.
type RateRepository interface {
	// Save stores every quote of the table at the table's date. Quotes
	// already stored for that date are overwritten.
	Save(ctx context.Context, table *RateTable) error
	// Latest assembles, per currency, the newest quote against base dated
	// on or before asOf. It returns shared.ErrNotFound when none exists.
	Latest(ctx context.Context, base valueobject.Currency, asOf time.Time) (*RateTable, error)
}
