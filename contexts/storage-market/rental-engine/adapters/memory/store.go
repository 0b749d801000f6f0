package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"stornet/contexts/storage-market/rental-engine/domain/entities"
	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
	"stornet/contexts/storage-market/rental-engine/ports"
	"stornet/internal/shared/outbox"

	"github.com/google/uuid"
)

// Store holds committed marketplace state in process memory and implements
// the listing/request/grant/outbox repositories plus clock and id ports.
type Store struct {
	mu sync.RWMutex

	listings   map[uint64]entities.Listing
	requests   map[uint64]map[uint64]entities.Request
	grants     map[string]time.Time
	outbox     map[string]outboxRecord
	listingSeq uint64
	requestSeq map[uint64]uint64
}

type outboxRecord struct {
	Message     outbox.Message
	Status      string
	PublishedAt *time.Time
}

func NewStore() *Store {
	return &Store{
		listings:   make(map[uint64]entities.Listing),
		requests:   make(map[uint64]map[uint64]entities.Request),
		grants:     make(map[string]time.Time),
		outbox:     make(map[string]outboxRecord),
		requestSeq: make(map[uint64]uint64),
	}
}

func (s *Store) NextListingID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listingSeq++
	return s.listingSeq, nil
}

func (s *Store) CreateListingWithOutbox(_ context.Context, listing entities.Listing, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if listing.ID == 0 {
		return domainerrors.ErrInvalidParameters
	}
	if _, exists := s.listings[listing.ID]; exists {
		return domainerrors.ErrStoreInvariantBroken
	}
	if err := s.appendOutbox(envelope); err != nil {
		return err
	}
	s.listings[listing.ID] = listing
	return nil
}

func (s *Store) GetListing(_ context.Context, listingID uint64) (entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[listingID]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	return listing, nil
}

func (s *Store) ListAvailableListings(_ context.Context) ([]entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Listing, 0)
	for _, listing := range s.listings {
		if listing.Available {
			items = append(items, listing)
		}
	}
	sortListings(items)
	return items, nil
}

func (s *Store) ListListingsByProvider(_ context.Context, provider string) ([]entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Listing, 0)
	for _, listing := range s.listings {
		if listing.Provider == provider {
			items = append(items, listing)
		}
	}
	sortListings(items)
	return items, nil
}

func (s *Store) NextRequestID(_ context.Context, listingID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestSeq[listingID]++
	return s.requestSeq[listingID], nil
}

func (s *Store) CreateRequestWithOutbox(_ context.Context, request entities.Request, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.ID == 0 || request.ListingID == 0 {
		return domainerrors.ErrInvalidParameters
	}
	byListing := s.requests[request.ListingID]
	if byListing == nil {
		byListing = make(map[uint64]entities.Request)
		s.requests[request.ListingID] = byListing
	}
	if _, exists := byListing[request.ID]; exists {
		return domainerrors.ErrStoreInvariantBroken
	}
	if err := s.appendOutbox(envelope); err != nil {
		return err
	}
	byListing[request.ID] = request
	return nil
}

func (s *Store) GetRequest(_ context.Context, listingID uint64, requestID uint64) (entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[listingID][requestID]
	if !ok {
		return entities.Request{}, domainerrors.ErrRequestNotFound
	}
	return request, nil
}

func (s *Store) ListRequestsByConsumer(_ context.Context, consumer string) ([]entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Request, 0)
	for _, byListing := range s.requests {
		for _, request := range byListing {
			if request.Consumer == consumer {
				items = append(items, request)
			}
		}
	}
	sortRequests(items)
	return items, nil
}

func (s *Store) ListPendingRequests(_ context.Context, listingID uint64) ([]entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Request, 0)
	for _, request := range s.requests[listingID] {
		if !request.Accepted {
			items = append(items, request)
		}
	}
	sortRequests(items)
	return items, nil
}

func (s *Store) AcceptRequestWithOutbox(
	_ context.Context,
	listingID uint64,
	requestID uint64,
	startTime time.Time,
	envelope ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[listingID][requestID]
	if !ok {
		return domainerrors.ErrRequestNotFound
	}
	listing, ok := s.listings[listingID]
	if !ok {
		return domainerrors.ErrListingNotFound
	}
	if err := s.appendOutbox(envelope); err != nil {
		return err
	}

	request.Accepted = true
	request.StartTime = startTime.UTC()
	s.requests[listingID][requestID] = request

	listing.Available = false
	s.listings[listingID] = listing
	return nil
}

func (s *Store) CompleteRequestWithOutbox(
	_ context.Context,
	listingID uint64,
	requestID uint64,
	_ time.Time,
	envelope ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[listingID][requestID]
	if !ok {
		return domainerrors.ErrRequestNotFound
	}
	if err := s.appendOutbox(envelope); err != nil {
		return err
	}

	request.Completed = true
	s.requests[listingID][requestID] = request
	return nil
}

func (s *Store) HasGrant(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[address]
	return ok, nil
}

func (s *Store) RecordGrantWithOutbox(_ context.Context, address string, grantedAt time.Time, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if address == "" {
		return domainerrors.ErrInvalidParameters
	}
	if _, ok := s.grants[address]; ok {
		return domainerrors.ErrStoreInvariantBroken
	}
	if err := s.appendOutbox(envelope); err != nil {
		return err
	}
	s.grants[address] = grantedAt.UTC()
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]outbox.Message, 0)
	for _, row := range s.outbox {
		if row.Status == outbox.StatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrStoreInvariantBroken
	}
	ts := publishedAt.UTC()
	row.Status = outbox.StatusPublished
	row.PublishedAt = &ts
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// appendOutbox runs under the caller's write lock.
func (s *Store) appendOutbox(envelope ports.EventEnvelope) error {
	if envelope.EventID == "" {
		return domainerrors.ErrInvalidParameters
	}
	if _, exists := s.outbox[envelope.EventID]; exists {
		return domainerrors.ErrStoreInvariantBroken
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox[envelope.EventID] = outboxRecord{
		Message: outbox.Message{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Status: outbox.StatusPending,
	}
	return nil
}

func sortListings(items []entities.Listing) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
}

func sortRequests(items []entities.Request) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].ListingID != items[j].ListingID {
			return items[i].ListingID < items[j].ListingID
		}
		return items[i].ID < items[j].ID
	})
}
