package rentalengine

import (
	"context"
	"log/slog"

	tokenledger "stornet/contexts/finance-core/token-ledger"
	httpadapter "stornet/contexts/storage-market/rental-engine/adapters/http"
	ledgeradapter "stornet/contexts/storage-market/rental-engine/adapters/ledger"
	"stornet/contexts/storage-market/rental-engine/adapters/memory"
	"stornet/contexts/storage-market/rental-engine/application"
	"stornet/contexts/storage-market/rental-engine/ports"
)

// Defaults mirror the reference deployment: genesis supply to the deployer,
// ownership handed to the engine, 10k-token initial grants. Amounts are
// base units (1 whole token = 1_000_000 base units).
const (
	DefaultDeployerAddress = "stornet-deployer"
	DefaultEngineAddress   = "stornet-market-engine"
	DefaultGenesisSupply   = uint64(100_000 * 1_000_000)
	DefaultGrantAmount     = uint64(10_000 * 1_000_000)
)

// Module is the composition surface for the marketplace engine.
// Runtime wiring should consume Handler or Service; Store is exposed for
// tests/inspection.
type Module struct {
	Handler httpadapter.Handler
	Service *application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Listings    ports.ListingRepository
	Requests    ports.RequestRepository
	Grants      ports.GrantRepository
	Ledger      ports.Ledger
	Transactor  ports.Transactor
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	GrantAmount uint64
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := &application.Service{
		Listings:    deps.Listings,
		Requests:    deps.Requests,
		Grants:      deps.Grants,
		Ledger:      deps.Ledger,
		Tx:          deps.Transactor,
		Clock:       deps.Clock,
		IDGen:       deps.IDGenerator,
		GrantAmount: deps.GrantAmount,
		Logger:      deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires a complete deterministic system against in-memory
// adapters: ledger genesis to the deployer, ownership handed to the engine,
// then the engine on top. This is the developer/test bootstrap path.
func NewInMemoryModule(logger *slog.Logger) (Module, tokenledger.Module) {
	ledger := tokenledger.NewInMemoryModule(logger)

	// Fresh store: genesis and the ownership handover cannot fail.
	ctx := context.Background()
	if err := ledger.Service.InitializeGenesis(ctx, DefaultDeployerAddress, DefaultGenesisSupply); err != nil {
		panic(err)
	}
	if err := ledger.Service.TransferOwnership(ctx, DefaultDeployerAddress, DefaultEngineAddress); err != nil {
		panic(err)
	}

	store := memory.NewStore()
	module := NewModule(Dependencies{
		Listings: store,
		Requests: store,
		Grants:   store,
		Ledger: ledgeradapter.Client{
			Service:       ledger.Service,
			EngineAddress: DefaultEngineAddress,
		},
		Clock:       store,
		IDGenerator: store,
		GrantAmount: DefaultGrantAmount,
		Logger:      logger,
	})
	module.Store = store
	return module, ledger
}
