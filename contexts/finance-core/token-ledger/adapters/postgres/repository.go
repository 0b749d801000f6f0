package postgresadapter

import (
	"context"
	"errors"
	"log/slog"

	"stornet/contexts/finance-core/token-ledger/domain/entities"
	domainerrors "stornet/contexts/finance-core/token-ledger/domain/errors"
	platformdb "stornet/internal/platform/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists ledger state in Postgres. Compound mutations run in a
// transaction with row locks so sufficiency checks and writes are atomic
// under concurrent callers.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// handle joins the shared transaction when the caller opened one; mutations
// then nest as savepoints inside it.
func (r *Repository) handle(ctx context.Context) *gorm.DB {
	return platformdb.HandleFromContext(ctx, r.db).WithContext(ctx)
}

func (r *Repository) Owner(ctx context.Context) (string, error) {
	state, err := r.loadState(ctx)
	if err != nil {
		return "", err
	}
	return state.Owner, nil
}

func (r *Repository) SetOwner(ctx context.Context, owner string) error {
	if owner == "" {
		return domainerrors.ErrInvalidAddress
	}
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		state.Owner = owner
		return tx.Save(&state).Error
	})
}

func (r *Repository) TotalIssuance(ctx context.Context) (uint64, error) {
	state, err := r.loadState(ctx)
	if err != nil {
		return 0, err
	}
	return state.TotalIssuance, nil
}

func (r *Repository) BalanceOf(ctx context.Context, address string) (uint64, error) {
	var row accountModel
	err := r.handle(ctx).
		Where("address = ?", address).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Balance, nil
}

func (r *Repository) Allowance(ctx context.Context, owner string, spender string) (uint64, error) {
	var row allowanceModel
	err := r.handle(ctx).
		Where("owner = ? AND spender = ?", owner, spender).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Remaining, nil
}

func (r *Repository) Mint(ctx context.Context, to string, amount uint64) (uint64, error) {
	if to == "" {
		return 0, domainerrors.ErrInvalidAddress
	}

	var balance uint64
	err := r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		issuance, err := entities.AddAmount(state.TotalIssuance, amount)
		if err != nil {
			return err
		}

		account, err := lockAccount(tx, to)
		if err != nil {
			return err
		}
		credited, err := entities.AddAmount(account.Balance, amount)
		if err != nil {
			return err
		}

		state.TotalIssuance = issuance
		if err := tx.Save(&state).Error; err != nil {
			return err
		}
		if err := upsertBalance(tx, to, credited); err != nil {
			return err
		}
		balance = credited
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *Repository) Transfer(ctx context.Context, from string, to string, amount uint64) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := lockAccount(tx, from)
		if err != nil {
			return err
		}
		if source.Balance < amount {
			return domainerrors.ErrInsufficientBalance
		}
		target, err := lockAccount(tx, to)
		if err != nil {
			return err
		}
		credited, err := entities.AddAmount(target.Balance, amount)
		if err != nil {
			return err
		}
		if err := upsertBalance(tx, from, source.Balance-amount); err != nil {
			return err
		}
		return upsertBalance(tx, to, credited)
	})
}

func (r *Repository) TransferFrom(ctx context.Context, owner string, spender string, to string, amount uint64) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		allowance, err := lockAllowance(tx, owner, spender)
		if err != nil {
			return err
		}
		if allowance.Remaining < amount {
			return domainerrors.ErrInsufficientAllowance
		}
		source, err := lockAccount(tx, owner)
		if err != nil {
			return err
		}
		if source.Balance < amount {
			return domainerrors.ErrInsufficientBalance
		}
		target, err := lockAccount(tx, to)
		if err != nil {
			return err
		}
		credited, err := entities.AddAmount(target.Balance, amount)
		if err != nil {
			return err
		}

		if err := upsertAllowance(tx, owner, spender, allowance.Remaining-amount); err != nil {
			return err
		}
		if err := upsertBalance(tx, owner, source.Balance-amount); err != nil {
			return err
		}
		return upsertBalance(tx, to, credited)
	})
}

func (r *Repository) Approve(ctx context.Context, owner string, spender string, amount uint64) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertAllowance(tx, owner, spender, amount)
	})
}

func (r *Repository) loadState(ctx context.Context) (ledgerStateModel, error) {
	var state ledgerStateModel
	err := r.handle(ctx).
		Where("id = ?", 1).
		First(&state).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerStateModel{ID: 1}, nil
		}
		return ledgerStateModel{}, err
	}
	return state, nil
}

func lockState(tx *gorm.DB) (ledgerStateModel, error) {
	var state ledgerStateModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", 1).
		First(&state).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = ledgerStateModel{ID: 1}
			if err := tx.Create(&state).Error; err != nil {
				return ledgerStateModel{}, err
			}
			return state, nil
		}
		return ledgerStateModel{}, err
	}
	return state, nil
}

func lockAccount(tx *gorm.DB, address string) (accountModel, error) {
	var row accountModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return accountModel{Address: address}, nil
		}
		return accountModel{}, err
	}
	return row, nil
}

func lockAllowance(tx *gorm.DB, owner string, spender string) (allowanceModel, error) {
	var row allowanceModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner = ? AND spender = ?", owner, spender).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return allowanceModel{Owner: owner, Spender: spender}, nil
		}
		return allowanceModel{}, err
	}
	return row, nil
}

func upsertBalance(tx *gorm.DB, address string, balance uint64) error {
	row := accountModel{Address: address, Balance: balance}
	return tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{"balance": balance}),
		}).
		Create(&row).
		Error
}

func upsertAllowance(tx *gorm.DB, owner string, spender string, remaining uint64) error {
	row := allowanceModel{Owner: owner, Spender: spender, Remaining: remaining}
	return tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "spender"}},
			DoUpdates: clause.Assignments(map[string]any{"remaining": remaining}),
		}).
		Create(&row).
		Error
}

type ledgerStateModel struct {
	ID            int    `gorm:"column:id;primaryKey"`
	Owner         string `gorm:"column:owner"`
	TotalIssuance uint64 `gorm:"column:total_issuance"`
}

func (ledgerStateModel) TableName() string {
	return "ledger_state"
}

type accountModel struct {
	Address string `gorm:"column:address;primaryKey"`
	Balance uint64 `gorm:"column:balance"`
}

func (accountModel) TableName() string {
	return "ledger_accounts"
}

type allowanceModel struct {
	Owner     string `gorm:"column:owner;primaryKey"`
	Spender   string `gorm:"column:spender;primaryKey"`
	Remaining uint64 `gorm:"column:remaining"`
}

func (allowanceModel) TableName() string {
	return "ledger_allowances"
}
