package errors

import "errors"

var (
	ErrUnauthorized         = errors.New("caller is not authorized for this transition")
	ErrListingNotFound      = errors.New("storage listing not found")
	ErrRequestNotFound      = errors.New("rental request not found")
	ErrInvalidParameters    = errors.New("listing or request parameters are invalid")
	ErrListingUnavailable   = errors.New("storage listing is not available")
	ErrAlreadyAccepted      = errors.New("rental request already accepted")
	ErrNotYetAccepted       = errors.New("rental request has not been accepted")
	ErrAlreadyCompleted     = errors.New("rental request already completed")
	ErrTooEarly             = errors.New("rental duration has not elapsed")
	ErrOverflow             = errors.New("rental cost arithmetic overflows")
	ErrStoreInvariantBroken = errors.New("marketplace store invariant broken")
)
