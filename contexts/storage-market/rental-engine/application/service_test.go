package application

import (
	"context"
	"errors"
	"testing"
	"time"

	ledgermemory "stornet/contexts/finance-core/token-ledger/adapters/memory"
	ledgerapp "stornet/contexts/finance-core/token-ledger/application"
	ledgererrors "stornet/contexts/finance-core/token-ledger/domain/errors"
	ledgeradapter "stornet/contexts/storage-market/rental-engine/adapters/ledger"
	"stornet/contexts/storage-market/rental-engine/adapters/memory"
	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
	"stornet/contexts/storage-market/rental-engine/ports"
)

const (
	deployer = "deployer"
	engine   = "engine"
	provider = "provider"
	consumer = "consumer"
	grant    = uint64(10_000)
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// scopeTransactor tracks whether a shared transaction scope is open so
// repository fakes can verify their writes run inside it.
type scopeTransactor struct {
	active bool
	scopes int
}

func (tx *scopeTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	tx.scopes++
	tx.active = true
	defer func() { tx.active = false }()
	return fn(ctx)
}

type txGuardedLedger struct {
	inner ports.Ledger
	tx    *scopeTransactor
	t     *testing.T
}

func (l txGuardedLedger) Mint(ctx context.Context, to string, amount uint64) error {
	if !l.tx.active {
		l.t.Errorf("ledger mint ran outside the shared transaction")
	}
	return l.inner.Mint(ctx, to, amount)
}

func (l txGuardedLedger) TransferFrom(ctx context.Context, owner string, to string, amount uint64) error {
	if !l.tx.active {
		l.t.Errorf("ledger transfer ran outside the shared transaction")
	}
	return l.inner.TransferFrom(ctx, owner, to, amount)
}

type txGuardedRequests struct {
	*memory.Store
	tx *scopeTransactor
	t  *testing.T
}

func (r txGuardedRequests) CompleteRequestWithOutbox(
	ctx context.Context,
	listingID uint64,
	requestID uint64,
	completedAt time.Time,
	envelope ports.EventEnvelope,
) error {
	if !r.tx.active {
		r.t.Errorf("completion write ran outside the shared transaction")
	}
	return r.Store.CompleteRequestWithOutbox(ctx, listingID, requestID, completedAt, envelope)
}

type txGuardedGrants struct {
	*memory.Store
	tx *scopeTransactor
	t  *testing.T
}

func (g txGuardedGrants) RecordGrantWithOutbox(
	ctx context.Context,
	address string,
	grantedAt time.Time,
	envelope ports.EventEnvelope,
) error {
	if !g.tx.active {
		g.t.Errorf("grant record ran outside the shared transaction")
	}
	return g.Store.RecordGrantWithOutbox(ctx, address, grantedAt, envelope)
}

type fixture struct {
	service *Service
	store   *memory.Store
	ledger  *ledgerapp.Service
	clock   *fakeClock
	tx      *scopeTransactor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	ledgerStore := ledgermemory.NewStore()
	ledgerService := &ledgerapp.Service{Repo: ledgerStore}
	if err := ledgerService.InitializeGenesis(ctx, deployer, 100_000); err != nil {
		t.Fatalf("InitializeGenesis: %v", err)
	}
	if err := ledgerService.TransferOwnership(ctx, deployer, engine); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}

	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
	tx := &scopeTransactor{}
	service := &Service{
		Listings: store,
		Requests: txGuardedRequests{Store: store, tx: tx, t: t},
		Grants:   txGuardedGrants{Store: store, tx: tx, t: t},
		Ledger: txGuardedLedger{
			inner: ledgeradapter.Client{
				Service:       ledgerService,
				EngineAddress: engine,
			},
			tx: tx,
			t:  t,
		},
		Tx:          tx,
		Clock:       clock,
		IDGen:       store,
		GrantAmount: grant,
	}
	return &fixture{
		service: service,
		store:   store,
		ledger:  ledgerService,
		clock:   clock,
		tx:      tx,
	}
}

// rentedListing walks a request to the accepted state: provider lists,
// consumer is granted tokens, approves the engine for the full cost, requests
// five days and the provider accepts.
func (f *fixture) rentedListing(t *testing.T) (listingID uint64, requestID uint64, cost uint64) {
	t.Helper()
	ctx := context.Background()

	listing, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	if _, err := f.service.GrantInitialTokens(ctx, consumer); err != nil {
		t.Fatalf("GrantInitialTokens: %v", err)
	}

	cost, err = listing.CostFor(5)
	if err != nil {
		t.Fatalf("CostFor: %v", err)
	}
	if err := f.ledger.Approve(ctx, consumer, engine, cost); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	request, err := f.service.CreateRequest(ctx, consumer, listing.ID, 5)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := f.service.AcceptRequest(ctx, provider, listing.ID, request.ID); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	return listing.ID, request.ID, cost
}

func TestGrantInitialTokensIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	granted, err := f.service.GrantInitialTokens(ctx, consumer)
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if !granted {
		t.Fatalf("first grant reported replayed")
	}

	balance, _ := f.ledger.BalanceOf(ctx, consumer)
	if balance != grant {
		t.Fatalf("balance after grant = %d, want %d", balance, grant)
	}

	granted, err = f.service.GrantInitialTokens(ctx, consumer)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if granted {
		t.Fatalf("second grant minted again")
	}
	balance, _ = f.ledger.BalanceOf(ctx, consumer)
	if balance != grant {
		t.Fatalf("balance after replay = %d, want %d", balance, grant)
	}
}

func TestListStorageAllocatesIDsFromOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("first listing id = %d, want 1", first.ID)
	}
	if !first.Available {
		t.Fatalf("new listing not available")
	}

	second, err := f.service.ListStorage(ctx, provider, 200, 3)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("second listing id = %d, want 2", second.ID)
	}

	if _, err := f.service.ListStorage(ctx, provider, 0, 10); !errors.Is(err, domainerrors.ErrInvalidParameters) {
		t.Fatalf("zero size err = %v, want ErrInvalidParameters", err)
	}
	if _, err := f.service.ListStorage(ctx, provider, 500, 0); !errors.Is(err, domainerrors.ErrInvalidParameters) {
		t.Fatalf("zero price err = %v, want ErrInvalidParameters", err)
	}
}

func TestAcceptRequestFlipsListingUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listingID, requestID, _ := f.rentedListing(t)

	listing, err := f.service.GetListing(ctx, listingID)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.Available {
		t.Fatalf("listing still available after acceptance")
	}

	request, err := f.service.GetRequest(ctx, listingID, requestID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if !request.Accepted {
		t.Fatalf("request not accepted")
	}
	if !request.StartTime.Equal(f.clock.now) {
		t.Fatalf("start time = %v, want %v", request.StartTime, f.clock.now)
	}

	if _, err := f.service.AcceptRequest(ctx, provider, listingID, requestID); !errors.Is(err, domainerrors.ErrAlreadyAccepted) {
		t.Fatalf("re-accept err = %v, want ErrAlreadyAccepted", err)
	}
	if _, err := f.service.CreateRequest(ctx, consumer, listingID, 2); !errors.Is(err, domainerrors.ErrListingUnavailable) {
		t.Fatalf("request on rented listing err = %v, want ErrListingUnavailable", err)
	}
}

func TestAcceptRequestIsProviderOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listing, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	request, err := f.service.CreateRequest(ctx, consumer, listing.ID, 5)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if _, err := f.service.AcceptRequest(ctx, consumer, listing.ID, request.ID); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("non-provider accept err = %v, want ErrUnauthorized", err)
	}
}

func TestCompleteRequestPaysProviderAfterDurationElapses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listingID, requestID, cost := f.rentedListing(t)

	if _, err := f.service.CompleteRequest(ctx, consumer, listingID, requestID); !errors.Is(err, domainerrors.ErrTooEarly) {
		t.Fatalf("early completion err = %v, want ErrTooEarly", err)
	}

	f.clock.now = f.clock.now.Add(5 * 24 * time.Hour)
	request, err := f.service.CompleteRequest(ctx, consumer, listingID, requestID)
	if err != nil {
		t.Fatalf("CompleteRequest: %v", err)
	}
	if !request.Completed {
		t.Fatalf("request not completed")
	}

	providerBalance, _ := f.ledger.BalanceOf(ctx, provider)
	if providerBalance != cost {
		t.Fatalf("provider balance = %d, want %d", providerBalance, cost)
	}
	consumerBalance, _ := f.ledger.BalanceOf(ctx, consumer)
	if consumerBalance != grant-cost {
		t.Fatalf("consumer balance = %d, want %d", consumerBalance, grant-cost)
	}
	remaining, _ := f.ledger.Allowance(ctx, consumer, engine)
	if remaining != 0 {
		t.Fatalf("remaining allowance = %d, want 0", remaining)
	}

	if _, err := f.service.CompleteRequest(ctx, consumer, listingID, requestID); !errors.Is(err, domainerrors.ErrAlreadyCompleted) {
		t.Fatalf("re-complete err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestCompleteRequestIsConsumerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listingID, requestID, _ := f.rentedListing(t)
	f.clock.now = f.clock.now.Add(5 * 24 * time.Hour)

	if _, err := f.service.CompleteRequest(ctx, provider, listingID, requestID); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("provider completion err = %v, want ErrUnauthorized", err)
	}
}

func TestCompleteRequestRequiresAcceptance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listing, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	request, err := f.service.CreateRequest(ctx, consumer, listing.ID, 1)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	f.clock.now = f.clock.now.Add(48 * time.Hour)
	if _, err := f.service.CompleteRequest(ctx, consumer, listing.ID, request.ID); !errors.Is(err, domainerrors.ErrNotYetAccepted) {
		t.Fatalf("unaccepted completion err = %v, want ErrNotYetAccepted", err)
	}
}

func TestCompleteRequestFailsClosedOnInsufficientAllowance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listing, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	if _, err := f.service.GrantInitialTokens(ctx, consumer); err != nil {
		t.Fatalf("GrantInitialTokens: %v", err)
	}
	request, err := f.service.CreateRequest(ctx, consumer, listing.ID, 5)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := f.service.AcceptRequest(ctx, provider, listing.ID, request.ID); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}

	// No approval was ever made; the pull fails and the request stays open.
	f.clock.now = f.clock.now.Add(5 * 24 * time.Hour)
	if _, err := f.service.CompleteRequest(ctx, consumer, listing.ID, request.ID); !errors.Is(err, ledgererrors.ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}

	got, err := f.service.GetRequest(ctx, listing.ID, request.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Completed {
		t.Fatalf("request marked completed after failed payment")
	}
	providerBalance, _ := f.ledger.BalanceOf(ctx, provider)
	if providerBalance != 0 {
		t.Fatalf("provider balance = %d, want 0", providerBalance)
	}
}

func TestCreateRequestRejectsUnpayableCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listing, err := f.service.ListStorage(ctx, provider, 500, ^uint64(0))
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	if _, err := f.service.CreateRequest(ctx, consumer, listing.ID, 2); !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
	if _, err := f.service.CreateRequest(ctx, consumer, listing.ID, 0); !errors.Is(err, domainerrors.ErrInvalidParameters) {
		t.Fatalf("zero duration err = %v, want ErrInvalidParameters", err)
	}
}

func TestRequestIDsAreScopedPerListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	second, err := f.service.ListStorage(ctx, provider, 200, 3)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}

	requestA, err := f.service.CreateRequest(ctx, consumer, first.ID, 1)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	requestB, err := f.service.CreateRequest(ctx, consumer, second.ID, 1)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if requestA.ID != 1 || requestB.ID != 1 {
		t.Fatalf("request ids = (%d, %d), want (1, 1)", requestA.ID, requestB.ID)
	}

	requestC, err := f.service.CreateRequest(ctx, "other-consumer", first.ID, 2)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if requestC.ID != 2 {
		t.Fatalf("second request on first listing id = %d, want 2", requestC.ID)
	}
}

func TestQuerySurfacesFilterState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listingID, requestID, _ := f.rentedListing(t)
	other, err := f.service.ListStorage(ctx, "other-provider", 100, 1)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}

	available, err := f.service.ListAvailableListings(ctx)
	if err != nil {
		t.Fatalf("ListAvailableListings: %v", err)
	}
	if len(available) != 1 || available[0].ID != other.ID {
		t.Fatalf("available listings = %+v, want only listing %d", available, other.ID)
	}

	mine, err := f.service.ListProviderListings(ctx, provider)
	if err != nil {
		t.Fatalf("ListProviderListings: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != listingID {
		t.Fatalf("provider listings = %+v, want only listing %d", mine, listingID)
	}

	requests, err := f.service.ListConsumerRequests(ctx, consumer)
	if err != nil {
		t.Fatalf("ListConsumerRequests: %v", err)
	}
	if len(requests) != 1 || requests[0].ID != requestID {
		t.Fatalf("consumer requests = %+v, want only request %d", requests, requestID)
	}

	pending, err := f.service.ListPendingRequests(ctx, listingID)
	if err != nil {
		t.Fatalf("ListPendingRequests: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending requests = %+v, want none after acceptance", pending)
	}
}

func TestCrossLedgerWritesShareOneTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The fixture's guarded repositories fail the test if the mint, the
	// payment, or either state write lands outside the shared scope.
	if _, err := f.service.GrantInitialTokens(ctx, consumer); err != nil {
		t.Fatalf("GrantInitialTokens: %v", err)
	}
	if f.tx.scopes != 1 {
		t.Fatalf("scopes after grant = %d, want 1", f.tx.scopes)
	}

	// A replayed grant moves no funds and opens no transaction.
	if _, err := f.service.GrantInitialTokens(ctx, consumer); err != nil {
		t.Fatalf("replayed grant: %v", err)
	}
	if f.tx.scopes != 1 {
		t.Fatalf("scopes after replay = %d, want 1", f.tx.scopes)
	}

	listing, err := f.service.ListStorage(ctx, provider, 500, 10)
	if err != nil {
		t.Fatalf("ListStorage: %v", err)
	}
	cost, err := listing.CostFor(5)
	if err != nil {
		t.Fatalf("CostFor: %v", err)
	}
	if err := f.ledger.Approve(ctx, consumer, engine, cost); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	request, err := f.service.CreateRequest(ctx, consumer, listing.ID, 5)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := f.service.AcceptRequest(ctx, provider, listing.ID, request.ID); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}

	f.clock.now = f.clock.now.Add(5 * 24 * time.Hour)
	if _, err := f.service.CompleteRequest(ctx, consumer, listing.ID, request.ID); err != nil {
		t.Fatalf("CompleteRequest: %v", err)
	}
	if f.tx.scopes != 2 {
		t.Fatalf("scopes after completion = %d, want 2", f.tx.scopes)
	}
}

func TestLifecycleAppendsOutboxEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listingID, requestID, _ := f.rentedListing(t)
	f.clock.now = f.clock.now.Add(5 * 24 * time.Hour)
	if _, err := f.service.CompleteRequest(ctx, consumer, listingID, requestID); err != nil {
		t.Fatalf("CompleteRequest: %v", err)
	}

	pending, err := f.store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}

	seen := make(map[string]int)
	for _, message := range pending {
		seen[message.EventType]++
	}
	for _, eventType := range []string{
		EventListingCreated,
		EventGrantIssued,
		EventRequestCreated,
		EventRequestAccepted,
		EventRentalCompleted,
	} {
		if seen[eventType] != 1 {
			t.Fatalf("outbox has %d %s events, want 1", seen[eventType], eventType)
		}
	}
}
