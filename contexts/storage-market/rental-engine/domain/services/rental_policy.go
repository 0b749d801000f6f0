package services

import (
	"time"

	"stornet/contexts/storage-market/rental-engine/domain/entities"
	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
)

// EvaluateAcceptance guards the Created -> Accepted transition. Only the
// listing provider may accept, a request accepts once, and the listing must
// still be available.
func EvaluateAcceptance(listing entities.Listing, request entities.Request, caller string) error {
	if caller != listing.Provider {
		return domainerrors.ErrUnauthorized
	}
	if request.Accepted {
		return domainerrors.ErrAlreadyAccepted
	}
	if !listing.Available {
		return domainerrors.ErrListingUnavailable
	}
	return nil
}

// EvaluateCompletion guards the Accepted -> Completed transition. Only the
// request consumer may complete, and only after the full rental duration has
// elapsed since acceptance.
func EvaluateCompletion(request entities.Request, caller string, now time.Time) error {
	if caller != request.Consumer {
		return domainerrors.ErrUnauthorized
	}
	if request.Completed {
		return domainerrors.ErrAlreadyCompleted
	}
	if !request.Accepted {
		return domainerrors.ErrNotYetAccepted
	}
	if now.UTC().Before(request.EndTime()) {
		return domainerrors.ErrTooEarly
	}
	return nil
}
