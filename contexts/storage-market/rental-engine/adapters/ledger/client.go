package ledgeradapter

import (
	"context"

	ledgerapp "stornet/contexts/finance-core/token-ledger/application"
)

// Client adapts the token ledger service to the engine's ledger port. Every
// call is made with the engine's own address as caller: Mint relies on the
// engine holding ledger ownership, TransferFrom spends allowances consumers
// approved to the engine.
type Client struct {
	Service       *ledgerapp.Service
	EngineAddress string
}

func (c Client) Mint(ctx context.Context, to string, amount uint64) error {
	_, err := c.Service.Mint(ctx, c.EngineAddress, to, amount)
	return err
}

func (c Client) TransferFrom(ctx context.Context, owner string, to string, amount uint64) error {
	return c.Service.TransferFrom(ctx, c.EngineAddress, owner, to, amount)
}
