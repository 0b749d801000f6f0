package entities

import (
	"math"

	domainerrors "stornet/contexts/finance-core/token-ledger/domain/errors"
)

// Amounts are unsigned integer base units. Display scaling is a front-end
// concern; the ledger never applies decimal conversion.

type Account struct {
	Address string
	Balance uint64
}

type Allowance struct {
	Owner     string
	Spender   string
	Remaining uint64
}

// AddAmount fails closed instead of wrapping. Conservation depends on every
// issuance and balance mutation going through checked arithmetic.
func AddAmount(a uint64, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, domainerrors.ErrOverflow
	}
	return a + b, nil
}
