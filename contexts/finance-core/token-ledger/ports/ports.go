package ports

import "context"

// Repository owns the committed ledger state: balances, allowances, the
// owner capability and total issuance. Compound mutations (debit+credit,
// allowance consumption) are applied atomically by the adapter, which also
// enforces balance/allowance sufficiency so checks and writes share one
// critical section.
type Repository interface {
	Owner(ctx context.Context) (string, error)
	SetOwner(ctx context.Context, owner string) error
	TotalIssuance(ctx context.Context) (uint64, error)
	BalanceOf(ctx context.Context, address string) (uint64, error)
	Allowance(ctx context.Context, owner string, spender string) (uint64, error)

	// Mint increases total issuance and the recipient balance together.
	Mint(ctx context.Context, to string, amount uint64) (uint64, error)
	Transfer(ctx context.Context, from string, to string, amount uint64) error
	// TransferFrom decrements the (owner, spender) allowance and moves
	// owner balance to the recipient in one step.
	TransferFrom(ctx context.Context, owner string, spender string, to string, amount uint64) error
	// Approve is an absolute set, not additive.
	Approve(ctx context.Context, owner string, spender string, amount uint64) error
}
