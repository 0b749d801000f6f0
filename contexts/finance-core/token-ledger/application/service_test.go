package application

import (
	"context"
	"errors"
	"testing"

	"stornet/contexts/finance-core/token-ledger/adapters/memory"
	domainerrors "stornet/contexts/finance-core/token-ledger/domain/errors"
)

const (
	deployer = "deployer"
	engine   = "engine"
	alice    = "alice"
	bob      = "bob"
)

func newLedger(t *testing.T, supply uint64) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	service := &Service{Repo: store}
	if err := service.InitializeGenesis(context.Background(), deployer, supply); err != nil {
		t.Fatalf("InitializeGenesis: %v", err)
	}
	return service, store
}

func totalBalance(store *memory.Store) uint64 {
	var total uint64
	for _, balance := range store.Snapshot() {
		total += balance
	}
	return total
}

func TestGenesisMintsSupplyToDeployerOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, 100_000)

	balance, err := service.BalanceOf(ctx, deployer)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance != 100_000 {
		t.Fatalf("deployer balance = %d, want 100000", balance)
	}

	issuance, err := service.TotalIssuance(ctx)
	if err != nil {
		t.Fatalf("TotalIssuance: %v", err)
	}
	if issuance != 100_000 {
		t.Fatalf("issuance = %d, want 100000", issuance)
	}

	if err := service.InitializeGenesis(ctx, deployer, 1); !errors.Is(err, domainerrors.ErrAlreadyInitialized) {
		t.Fatalf("second genesis err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestMintIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, 0)

	if _, err := service.Mint(ctx, alice, alice, 500); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("non-owner mint err = %v, want ErrUnauthorized", err)
	}

	balance, err := service.Mint(ctx, deployer, alice, 500)
	if err != nil {
		t.Fatalf("owner mint: %v", err)
	}
	if balance != 500 {
		t.Fatalf("minted balance = %d, want 500", balance)
	}

	issuance, err := service.TotalIssuance(ctx)
	if err != nil {
		t.Fatalf("TotalIssuance: %v", err)
	}
	if issuance != 500 {
		t.Fatalf("issuance = %d, want 500", issuance)
	}
}

func TestTransferMovesBalanceAndConservesSupply(t *testing.T) {
	ctx := context.Background()
	service, store := newLedger(t, 1_000)

	if err := service.Transfer(ctx, deployer, alice, 300); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	deployerBalance, _ := service.BalanceOf(ctx, deployer)
	aliceBalance, _ := service.BalanceOf(ctx, alice)
	if deployerBalance != 700 || aliceBalance != 300 {
		t.Fatalf("balances = (%d, %d), want (700, 300)", deployerBalance, aliceBalance)
	}
	if total := totalBalance(store); total != 1_000 {
		t.Fatalf("total balance = %d, want 1000", total)
	}
}

func TestTransferInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	service, store := newLedger(t, 100)

	if err := service.Transfer(ctx, deployer, alice, 101); !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	deployerBalance, _ := service.BalanceOf(ctx, deployer)
	aliceBalance, _ := service.BalanceOf(ctx, alice)
	if deployerBalance != 100 || aliceBalance != 0 {
		t.Fatalf("balances = (%d, %d), want (100, 0)", deployerBalance, aliceBalance)
	}
	if total := totalBalance(store); total != 100 {
		t.Fatalf("total balance = %d, want 100", total)
	}
}

func TestApproveThenTransferFromDecrementsAllowance(t *testing.T) {
	ctx := context.Background()
	service, store := newLedger(t, 1_000)

	if err := service.Approve(ctx, deployer, engine, 400); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := service.TransferFrom(ctx, engine, deployer, bob, 250); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}

	remaining, err := service.Allowance(ctx, deployer, engine)
	if err != nil {
		t.Fatalf("Allowance: %v", err)
	}
	if remaining != 150 {
		t.Fatalf("remaining allowance = %d, want 150", remaining)
	}

	bobBalance, _ := service.BalanceOf(ctx, bob)
	if bobBalance != 250 {
		t.Fatalf("bob balance = %d, want 250", bobBalance)
	}
	if total := totalBalance(store); total != 1_000 {
		t.Fatalf("total balance = %d, want 1000", total)
	}
}

func TestTransferFromChecksAllowanceBeforeBalance(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, 100)

	// No approval at all: allowance check fires even though balance is short too.
	if err := service.TransferFrom(ctx, engine, deployer, bob, 200); !errors.Is(err, domainerrors.ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}

	if err := service.Approve(ctx, deployer, engine, 200); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := service.TransferFrom(ctx, engine, deployer, bob, 200); !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	remaining, _ := service.Allowance(ctx, deployer, engine)
	if remaining != 200 {
		t.Fatalf("allowance after failed pull = %d, want 200", remaining)
	}
}

func TestApproveOverwritesAllowance(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, 100)

	if err := service.Approve(ctx, deployer, engine, 500); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := service.Approve(ctx, deployer, engine, 70); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	remaining, _ := service.Allowance(ctx, deployer, engine)
	if remaining != 70 {
		t.Fatalf("allowance = %d, want 70 (absolute set)", remaining)
	}
}

func TestTransferOwnershipMovesMintCapability(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, 0)

	if err := service.TransferOwnership(ctx, alice, engine); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("non-owner handover err = %v, want ErrUnauthorized", err)
	}
	if err := service.TransferOwnership(ctx, deployer, engine); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}

	if _, err := service.Mint(ctx, deployer, alice, 1); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("previous owner mint err = %v, want ErrUnauthorized", err)
	}
	if _, err := service.Mint(ctx, engine, alice, 1); err != nil {
		t.Fatalf("new owner mint: %v", err)
	}
}

func TestMintOverflowFailsClosed(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, ^uint64(0))

	if _, err := service.Mint(ctx, deployer, alice, 1); !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}

	issuance, _ := service.TotalIssuance(ctx)
	if issuance != ^uint64(0) {
		t.Fatalf("issuance changed after failed mint")
	}
	balance, _ := service.BalanceOf(ctx, alice)
	if balance != 0 {
		t.Fatalf("alice balance changed after failed mint")
	}
}

func TestBlankAddressesRejected(t *testing.T) {
	ctx := context.Background()
	service, _ := newLedger(t, 100)

	if err := service.Transfer(ctx, deployer, " ", 1); !errors.Is(err, domainerrors.ErrInvalidAddress) {
		t.Fatalf("blank to err = %v, want ErrInvalidAddress", err)
	}
	if _, err := service.BalanceOf(ctx, ""); !errors.Is(err, domainerrors.ErrInvalidAddress) {
		t.Fatalf("blank balance query err = %v, want ErrInvalidAddress", err)
	}
}
