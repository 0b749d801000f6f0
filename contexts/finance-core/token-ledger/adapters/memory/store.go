package memory

import (
	"context"
	"sync"

	"stornet/contexts/finance-core/token-ledger/domain/entities"
	domainerrors "stornet/contexts/finance-core/token-ledger/domain/errors"
)

// Store holds committed ledger state in process memory. All compound
// mutations run under one write lock, so sufficiency checks and the writes
// they guard are a single critical section.
type Store struct {
	mu sync.RWMutex

	owner      string
	issuance   uint64
	balances   map[string]uint64
	allowances map[string]map[string]uint64
}

func NewStore() *Store {
	return &Store{
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
	}
}

func (s *Store) Owner(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, nil
}

func (s *Store) SetOwner(_ context.Context, owner string) error {
	if owner == "" {
		return domainerrors.ErrInvalidAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
	return nil
}

func (s *Store) TotalIssuance(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issuance, nil
}

func (s *Store) BalanceOf(_ context.Context, address string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[address], nil
}

func (s *Store) Allowance(_ context.Context, owner string, spender string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowances[owner][spender], nil
}

func (s *Store) Mint(_ context.Context, to string, amount uint64) (uint64, error) {
	if to == "" {
		return 0, domainerrors.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issuance, err := entities.AddAmount(s.issuance, amount)
	if err != nil {
		return 0, err
	}
	balance, err := entities.AddAmount(s.balances[to], amount)
	if err != nil {
		return 0, err
	}
	s.issuance = issuance
	s.balances[to] = balance
	return balance, nil
}

func (s *Store) Transfer(_ context.Context, from string, to string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[from] < amount {
		return domainerrors.ErrInsufficientBalance
	}
	credited, err := entities.AddAmount(s.balances[to], amount)
	if err != nil {
		return err
	}
	s.balances[from] -= amount
	s.balances[to] = credited
	return nil
}

func (s *Store) TransferFrom(_ context.Context, owner string, spender string, to string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.allowances[owner][spender]
	if remaining < amount {
		return domainerrors.ErrInsufficientAllowance
	}
	if s.balances[owner] < amount {
		return domainerrors.ErrInsufficientBalance
	}
	credited, err := entities.AddAmount(s.balances[to], amount)
	if err != nil {
		return err
	}
	if s.allowances[owner] == nil {
		s.allowances[owner] = make(map[string]uint64)
	}
	s.allowances[owner][spender] = remaining - amount
	s.balances[owner] -= amount
	s.balances[to] = credited
	return nil
}

func (s *Store) Approve(_ context.Context, owner string, spender string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.allowances[owner] == nil {
		s.allowances[owner] = make(map[string]uint64)
	}
	s.allowances[owner][spender] = amount
	return nil
}

// Snapshot returns a copy of all balances. Test helper for conservation
// checks; not part of the repository port.
func (s *Store) Snapshot() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]uint64, len(s.balances))
	for address, balance := range s.balances {
		out[address] = balance
	}
	return out
}
