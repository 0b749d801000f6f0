package entities

import (
	"math"
	"strings"
	"time"

	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
)

// maxDurationDays keeps StartTime + duration representable as a time.Duration.
const maxDurationDays = uint64(math.MaxInt64 / (24 * int64(time.Hour)))

// Request is a consumer's reservation against a listing, keyed
// (ListingID, ID) with per-listing ids allocated from 1. Accepted and
// Completed are monotonic; StartTime is set on acceptance only.
type Request struct {
	ID           uint64
	ListingID    uint64
	Consumer     string
	DurationDays uint64
	Accepted     bool
	Completed    bool
	StartTime    time.Time
	CreatedAt    time.Time
}

func NewRequest(listingID uint64, consumer string, durationDays uint64, createdAt time.Time) (Request, error) {
	if strings.TrimSpace(consumer) == "" || listingID == 0 {
		return Request{}, domainerrors.ErrInvalidParameters
	}
	if durationDays == 0 {
		return Request{}, domainerrors.ErrInvalidParameters
	}
	if durationDays > maxDurationDays {
		return Request{}, domainerrors.ErrOverflow
	}
	return Request{
		ListingID:    listingID,
		Consumer:     consumer,
		DurationDays: durationDays,
		CreatedAt:    createdAt.UTC(),
	}, nil
}

// EndTime is the earliest instant the rental may complete. Only meaningful
// once the request is accepted.
func (r Request) EndTime() time.Time {
	return r.StartTime.Add(time.Duration(r.DurationDays) * 24 * time.Hour)
}
