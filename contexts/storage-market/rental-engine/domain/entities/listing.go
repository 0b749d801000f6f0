package entities

import (
	"math"
	"strings"
	"time"

	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
)

// Listing is a provider's published storage offer. Listing ids are allocated
// monotonically from 1 and never reused; listings are never deleted.
type Listing struct {
	ID          uint64
	Provider    string
	StorageSize uint64
	PricePerDay uint64
	Available   bool
	CreatedAt   time.Time
}

func NewListing(provider string, storageSize uint64, pricePerDay uint64, createdAt time.Time) (Listing, error) {
	if strings.TrimSpace(provider) == "" {
		return Listing{}, domainerrors.ErrInvalidParameters
	}
	if storageSize == 0 || pricePerDay == 0 {
		return Listing{}, domainerrors.ErrInvalidParameters
	}
	return Listing{
		Provider:    provider,
		StorageSize: storageSize,
		PricePerDay: pricePerDay,
		Available:   true,
		CreatedAt:   createdAt.UTC(),
	}, nil
}

// CostFor is the exact integer rental cost, price per day times duration.
// Fails closed on overflow instead of wrapping.
func (l Listing) CostFor(durationDays uint64) (uint64, error) {
	if durationDays == 0 {
		return 0, domainerrors.ErrInvalidParameters
	}
	if durationDays > math.MaxUint64/l.PricePerDay {
		return 0, domainerrors.ErrOverflow
	}
	return l.PricePerDay * durationDays, nil
}
