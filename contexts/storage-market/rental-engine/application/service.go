package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stornet/contexts/storage-market/rental-engine/domain/entities"
	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
	"stornet/contexts/storage-market/rental-engine/domain/services"
	"stornet/contexts/storage-market/rental-engine/ports"
)

const (
	sourceService = "storage-market/rental-engine"

	EventGrantIssued     = "market.grant.issued"
	EventListingCreated  = "market.listing.created"
	EventRequestCreated  = "market.request.created"
	EventRequestAccepted = "market.request.accepted"
	EventRentalCompleted = "market.rental.completed"
)

// Service executes marketplace transitions. Mutating operations serialize on
// an exclusive lock; every operation validates all preconditions before any
// write. Operations that touch both the ledger and engine state run their
// writes through the Transactor, so on the durable path a failure in either
// write rolls back both and no partial mutation is observable.
type Service struct {
	mu sync.Mutex

	Listings ports.ListingRepository
	Requests ports.RequestRepository
	Grants   ports.GrantRepository
	Ledger   ports.Ledger
	Tx       ports.Transactor
	Clock    ports.Clock
	IDGen    ports.IDGenerator

	GrantAmount uint64
	Logger      *slog.Logger
}

// GrantInitialTokens mints the initial grant to a new address once. Repeat
// calls are a hard no-op: they report replayed and move no funds.
func (s *Service) GrantInitialTokens(ctx context.Context, caller string) (bool, error) {
	if strings.TrimSpace(caller) == "" {
		return false, domainerrors.ErrInvalidParameters
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	granted, err := s.Grants.HasGrant(ctx, caller)
	if err != nil {
		return false, err
	}
	if granted {
		ResolveLogger(s.Logger).Info("initial grant replayed",
			"event", "market_grant_replayed",
			"module", sourceService,
			"layer", "application",
			"address", caller,
		)
		return false, nil
	}

	now := s.now()
	envelope, err := s.buildEnvelope(ctx, EventGrantIssued, caller, now, map[string]any{
		"address": caller,
		"amount":  s.GrantAmount,
	})
	if err != nil {
		return false, err
	}

	// The mint and the grant record share one commit: a failed record never
	// leaves minted tokens behind to be replayed.
	if err := s.withinTransaction(ctx, func(ctx context.Context) error {
		if err := s.Ledger.Mint(ctx, caller, s.GrantAmount); err != nil {
			return err
		}
		return s.Grants.RecordGrantWithOutbox(ctx, caller, now, envelope)
	}); err != nil {
		return false, err
	}

	ResolveLogger(s.Logger).Info("initial grant issued",
		"event", "market_grant_issued",
		"module", sourceService,
		"layer", "application",
		"address", caller,
		"amount", s.GrantAmount,
	)
	return true, nil
}

// ListStorage publishes a new listing and returns it with its allocated id.
func (s *Service) ListStorage(ctx context.Context, caller string, storageSize uint64, pricePerDay uint64) (entities.Listing, error) {
	now := s.now()
	listing, err := entities.NewListing(caller, storageSize, pricePerDay, now)
	if err != nil {
		return entities.Listing{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listingID, err := s.Listings.NextListingID(ctx)
	if err != nil {
		return entities.Listing{}, err
	}
	listing.ID = listingID

	envelope, err := s.buildEnvelope(ctx, EventListingCreated, listing.Provider, now, map[string]any{
		"listing_id":    listing.ID,
		"provider":      listing.Provider,
		"storage_size":  listing.StorageSize,
		"price_per_day": listing.PricePerDay,
	})
	if err != nil {
		return entities.Listing{}, err
	}
	if err := s.Listings.CreateListingWithOutbox(ctx, listing, envelope); err != nil {
		return entities.Listing{}, err
	}

	ResolveLogger(s.Logger).Info("storage listed",
		"event", "market_listing_created",
		"module", sourceService,
		"layer", "application",
		"listing_id", listing.ID,
		"provider", listing.Provider,
		"storage_size", listing.StorageSize,
		"price_per_day", listing.PricePerDay,
	)
	return listing, nil
}

// CreateRequest reserves an available listing for a duration. Escrow is the
// two-phase protocol: the consumer must have approved at least the rental
// cost to the engine on the ledger beforehand; funds are not pulled here.
// Cost is overflow-checked now so an unpayable request fails closed early.
func (s *Service) CreateRequest(ctx context.Context, caller string, listingID uint64, durationDays uint64) (entities.Request, error) {
	now := s.now()
	request, err := entities.NewRequest(listingID, caller, durationDays, now)
	if err != nil {
		return entities.Request{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.Listings.GetListing(ctx, listingID)
	if err != nil {
		return entities.Request{}, err
	}
	if !listing.Available {
		return entities.Request{}, domainerrors.ErrListingUnavailable
	}
	cost, err := listing.CostFor(durationDays)
	if err != nil {
		return entities.Request{}, err
	}

	requestID, err := s.Requests.NextRequestID(ctx, listingID)
	if err != nil {
		return entities.Request{}, err
	}
	request.ID = requestID

	envelope, err := s.buildEnvelope(ctx, EventRequestCreated, listing.Provider, now, map[string]any{
		"listing_id":      listingID,
		"request_id":      request.ID,
		"consumer":        request.Consumer,
		"duration_days":   request.DurationDays,
		"escrow_required": cost,
	})
	if err != nil {
		return entities.Request{}, err
	}
	if err := s.Requests.CreateRequestWithOutbox(ctx, request, envelope); err != nil {
		return entities.Request{}, err
	}

	ResolveLogger(s.Logger).Info("rental request created",
		"event", "market_request_created",
		"module", sourceService,
		"layer", "application",
		"listing_id", listingID,
		"request_id", request.ID,
		"consumer", request.Consumer,
		"duration_days", request.DurationDays,
		"escrow_required", cost,
	)
	return request, nil
}

// AcceptRequest is the provider's Created -> Accepted transition. It stamps
// the rental start time and flips the listing unavailable in one write. No
// funds move; payment is pulled at completion.
func (s *Service) AcceptRequest(ctx context.Context, caller string, listingID uint64, requestID uint64) (entities.Request, error) {
	if strings.TrimSpace(caller) == "" {
		return entities.Request{}, domainerrors.ErrInvalidParameters
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.Listings.GetListing(ctx, listingID)
	if err != nil {
		return entities.Request{}, err
	}
	request, err := s.Requests.GetRequest(ctx, listingID, requestID)
	if err != nil {
		return entities.Request{}, err
	}
	if err := services.EvaluateAcceptance(listing, request, caller); err != nil {
		return entities.Request{}, err
	}

	now := s.now()
	envelope, err := s.buildEnvelope(ctx, EventRequestAccepted, listing.Provider, now, map[string]any{
		"listing_id": listingID,
		"request_id": requestID,
		"provider":   listing.Provider,
		"consumer":   request.Consumer,
		"start_time": now.Format(time.RFC3339),
	})
	if err != nil {
		return entities.Request{}, err
	}
	if err := s.Requests.AcceptRequestWithOutbox(ctx, listingID, requestID, now, envelope); err != nil {
		return entities.Request{}, err
	}

	request.Accepted = true
	request.StartTime = now

	ResolveLogger(s.Logger).Info("rental request accepted",
		"event", "market_request_accepted",
		"module", sourceService,
		"layer", "application",
		"listing_id", listingID,
		"request_id", requestID,
		"provider", listing.Provider,
		"consumer", request.Consumer,
	)
	return request, nil
}

// CompleteRequest is the consumer's Accepted -> Completed transition. Once
// the rental duration has elapsed it pulls the escrowed cost from the
// consumer's allowance to the provider, then marks the request completed.
func (s *Service) CompleteRequest(ctx context.Context, caller string, listingID uint64, requestID uint64) (entities.Request, error) {
	if strings.TrimSpace(caller) == "" {
		return entities.Request{}, domainerrors.ErrInvalidParameters
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.Listings.GetListing(ctx, listingID)
	if err != nil {
		return entities.Request{}, err
	}
	request, err := s.Requests.GetRequest(ctx, listingID, requestID)
	if err != nil {
		return entities.Request{}, err
	}

	now := s.now()
	if err := services.EvaluateCompletion(request, caller, now); err != nil {
		return entities.Request{}, err
	}
	cost, err := listing.CostFor(request.DurationDays)
	if err != nil {
		return entities.Request{}, err
	}

	envelope, err := s.buildEnvelope(ctx, EventRentalCompleted, listing.Provider, now, map[string]any{
		"listing_id": listingID,
		"request_id": requestID,
		"provider":   listing.Provider,
		"consumer":   request.Consumer,
		"cost":       cost,
	})
	if err != nil {
		return entities.Request{}, err
	}

	// Payment and the completion flip share one commit: the provider is
	// never paid with the request left open, and insufficient
	// allowance/balance from the ledger propagates untouched.
	if err := s.withinTransaction(ctx, func(ctx context.Context) error {
		if err := s.Ledger.TransferFrom(ctx, request.Consumer, listing.Provider, cost); err != nil {
			return err
		}
		return s.Requests.CompleteRequestWithOutbox(ctx, listingID, requestID, now, envelope)
	}); err != nil {
		return entities.Request{}, err
	}

	request.Completed = true

	ResolveLogger(s.Logger).Info("rental completed",
		"event", "market_rental_completed",
		"module", sourceService,
		"layer", "application",
		"listing_id", listingID,
		"request_id", requestID,
		"provider", listing.Provider,
		"consumer", request.Consumer,
		"cost", cost,
	)
	return request, nil
}

func (s *Service) GetListing(ctx context.Context, listingID uint64) (entities.Listing, error) {
	return s.Listings.GetListing(ctx, listingID)
}

func (s *Service) GetRequest(ctx context.Context, listingID uint64, requestID uint64) (entities.Request, error) {
	return s.Requests.GetRequest(ctx, listingID, requestID)
}

func (s *Service) ListAvailableListings(ctx context.Context) ([]entities.Listing, error) {
	return s.Listings.ListAvailableListings(ctx)
}

func (s *Service) ListProviderListings(ctx context.Context, provider string) ([]entities.Listing, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, domainerrors.ErrInvalidParameters
	}
	return s.Listings.ListListingsByProvider(ctx, provider)
}

func (s *Service) ListConsumerRequests(ctx context.Context, consumer string) ([]entities.Request, error) {
	if strings.TrimSpace(consumer) == "" {
		return nil, domainerrors.ErrInvalidParameters
	}
	return s.Requests.ListRequestsByConsumer(ctx, consumer)
}

func (s *Service) ListPendingRequests(ctx context.Context, listingID uint64) ([]entities.Request, error) {
	return s.Requests.ListPendingRequests(ctx, listingID)
}

func (s *Service) buildEnvelope(
	ctx context.Context,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "listing_id",
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}

// withinTransaction runs fn under the shared commit when a Transactor is
// wired. The memory adapters are atomic under the service lock, so the
// in-memory wiring runs fn directly.
func (s *Service) withinTransaction(ctx context.Context, fn func(context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTransaction(ctx, fn)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
