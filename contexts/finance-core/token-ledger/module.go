package tokenledger

import (
	"log/slog"

	httpadapter "stornet/contexts/finance-core/token-ledger/adapters/http"
	"stornet/contexts/finance-core/token-ledger/adapters/memory"
	"stornet/contexts/finance-core/token-ledger/application"
	"stornet/contexts/finance-core/token-ledger/ports"
)

// Module is the composition surface for the ledger.
// Runtime wiring should consume Handler or Service; Store is exposed for
// tests/inspection.
type Module struct {
	Handler httpadapter.Handler
	Service *application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := &application.Service{
		Repo:   deps.Repository,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
