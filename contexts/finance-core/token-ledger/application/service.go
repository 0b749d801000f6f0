package application

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	domainerrors "stornet/contexts/finance-core/token-ledger/domain/errors"
	"stornet/contexts/finance-core/token-ledger/ports"
)

// Service executes ledger transitions. Mutating operations serialize on an
// exclusive lock so owner checks and the subsequent state write form one
// atomic transition; reads go straight to the repository snapshot.
type Service struct {
	mu     sync.Mutex
	Repo   ports.Repository
	Logger *slog.Logger
}

// InitializeGenesis sets the deploying identity as owner and mints the
// initial supply to it. A second call is rejected; genesis happens once.
func (s *Service) InitializeGenesis(ctx context.Context, deployer string, supply uint64) error {
	if strings.TrimSpace(deployer) == "" {
		return domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.Repo.Owner(ctx)
	if err != nil {
		return err
	}
	if owner != "" {
		return domainerrors.ErrAlreadyInitialized
	}
	if err := s.Repo.SetOwner(ctx, deployer); err != nil {
		return err
	}
	if supply > 0 {
		if _, err := s.Repo.Mint(ctx, deployer, supply); err != nil {
			return err
		}
	}

	ResolveLogger(s.Logger).Info("ledger genesis initialized",
		"event", "ledger_genesis_initialized",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"owner", deployer,
		"supply", supply,
	)
	return nil
}

// Mint is restricted to the ledger owner.
func (s *Service) Mint(ctx context.Context, caller string, to string, amount uint64) (uint64, error) {
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(to) == "" {
		return 0, domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.Repo.Owner(ctx)
	if err != nil {
		return 0, err
	}
	if caller != owner {
		return 0, domainerrors.ErrUnauthorized
	}

	balance, err := s.Repo.Mint(ctx, to, amount)
	if err != nil {
		return 0, err
	}

	ResolveLogger(s.Logger).Info("tokens minted",
		"event", "ledger_minted",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"to", to,
		"amount", amount,
	)
	return balance, nil
}

func (s *Service) Transfer(ctx context.Context, caller string, to string, amount uint64) error {
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(to) == "" {
		return domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.Transfer(ctx, caller, to, amount); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("tokens transferred",
		"event", "ledger_transferred",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"from", caller,
		"to", to,
		"amount", amount,
	)
	return nil
}

func (s *Service) Approve(ctx context.Context, caller string, spender string, amount uint64) error {
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(spender) == "" {
		return domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.Approve(ctx, caller, spender, amount); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("allowance approved",
		"event", "ledger_approved",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"owner", caller,
		"spender", spender,
		"amount", amount,
	)
	return nil
}

// TransferFrom spends from the caller's allowance on the owner's balance.
// Allowance sufficiency is checked before balance sufficiency.
func (s *Service) TransferFrom(ctx context.Context, caller string, owner string, to string, amount uint64) error {
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(owner) == "" || strings.TrimSpace(to) == "" {
		return domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.TransferFrom(ctx, owner, caller, to, amount); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("delegated transfer executed",
		"event", "ledger_transfer_from",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"owner", owner,
		"spender", caller,
		"to", to,
		"amount", amount,
	)
	return nil
}

// TransferOwnership hands the mint capability to a new owner. Used once at
// bootstrap to make the marketplace engine the only minter.
func (s *Service) TransferOwnership(ctx context.Context, caller string, newOwner string) error {
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(newOwner) == "" {
		return domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.Repo.Owner(ctx)
	if err != nil {
		return err
	}
	if caller != owner {
		return domainerrors.ErrUnauthorized
	}
	if err := s.Repo.SetOwner(ctx, newOwner); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("ledger ownership transferred",
		"event", "ledger_ownership_transferred",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"previous_owner", owner,
		"new_owner", newOwner,
	)
	return nil
}

func (s *Service) BalanceOf(ctx context.Context, address string) (uint64, error) {
	if strings.TrimSpace(address) == "" {
		return 0, domainerrors.ErrInvalidAddress
	}
	return s.Repo.BalanceOf(ctx, address)
}

func (s *Service) Allowance(ctx context.Context, owner string, spender string) (uint64, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(spender) == "" {
		return 0, domainerrors.ErrInvalidAddress
	}
	return s.Repo.Allowance(ctx, owner, spender)
}

func (s *Service) TotalIssuance(ctx context.Context) (uint64, error) {
	return s.Repo.TotalIssuance(ctx)
}

func (s *Service) Owner(ctx context.Context) (string, error) {
	return s.Repo.Owner(ctx)
}
