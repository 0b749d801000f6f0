package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stornet/contexts/storage-market/rental-engine/domain/entities"
	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
	"stornet/contexts/storage-market/rental-engine/ports"
)

func envelope(id string, eventType string) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:    id,
		EventType:  eventType,
		OccurredAt: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateListingWithOutboxAppendsPendingRow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	listingID, err := store.NextListingID(ctx)
	if err != nil {
		t.Fatalf("NextListingID: %v", err)
	}
	listing := entities.Listing{ID: listingID, Provider: "p", StorageSize: 1, PricePerDay: 1, Available: true}
	if err := store.CreateListingWithOutbox(ctx, listing, envelope("ev-1", "market.listing.created")); err != nil {
		t.Fatalf("CreateListingWithOutbox: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "ev-1" {
		t.Fatalf("pending = %+v, want one row ev-1", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "ev-1", time.Now()); err != nil {
		t.Fatalf("MarkOutboxPublished: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("pending after publish = %+v, want none", pending)
	}
}

func TestDuplicateListingIDRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	listing := entities.Listing{ID: 1, Provider: "p", StorageSize: 1, PricePerDay: 1, Available: true}
	if err := store.CreateListingWithOutbox(ctx, listing, envelope("ev-1", "market.listing.created")); err != nil {
		t.Fatalf("CreateListingWithOutbox: %v", err)
	}
	if err := store.CreateListingWithOutbox(ctx, listing, envelope("ev-2", "market.listing.created")); !errors.Is(err, domainerrors.ErrStoreInvariantBroken) {
		t.Fatalf("err = %v, want ErrStoreInvariantBroken", err)
	}
}

func TestRequestSequencesAreIndependentPerListing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	a1, _ := store.NextRequestID(ctx, 1)
	a2, _ := store.NextRequestID(ctx, 1)
	b1, _ := store.NextRequestID(ctx, 2)
	if a1 != 1 || a2 != 2 || b1 != 1 {
		t.Fatalf("sequences = (%d, %d, %d), want (1, 2, 1)", a1, a2, b1)
	}
}

func TestAcceptRequestFlipsBothRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	listing := entities.Listing{ID: 1, Provider: "p", StorageSize: 1, PricePerDay: 1, Available: true}
	if err := store.CreateListingWithOutbox(ctx, listing, envelope("ev-1", "market.listing.created")); err != nil {
		t.Fatalf("CreateListingWithOutbox: %v", err)
	}
	request := entities.Request{ID: 1, ListingID: 1, Consumer: "c", DurationDays: 3}
	if err := store.CreateRequestWithOutbox(ctx, request, envelope("ev-2", "market.request.created")); err != nil {
		t.Fatalf("CreateRequestWithOutbox: %v", err)
	}

	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if err := store.AcceptRequestWithOutbox(ctx, 1, 1, start, envelope("ev-3", "market.request.accepted")); err != nil {
		t.Fatalf("AcceptRequestWithOutbox: %v", err)
	}

	got, err := store.GetRequest(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if !got.Accepted || !got.StartTime.Equal(start) {
		t.Fatalf("request after accept = %+v", got)
	}

	listingAfter, _ := store.GetListing(ctx, 1)
	if listingAfter.Available {
		t.Fatalf("listing still available after accept")
	}

	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 3 {
		t.Fatalf("pending outbox rows = %d, want 3", len(pending))
	}
	if pending[0].CreatedAt.After(pending[len(pending)-1].CreatedAt) {
		t.Fatalf("pending rows not ordered by creation time")
	}
}

func TestGrantRecordedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	has, err := store.HasGrant(ctx, "addr")
	if err != nil {
		t.Fatalf("HasGrant: %v", err)
	}
	if has {
		t.Fatalf("fresh store reports grant")
	}

	now := time.Now()
	if err := store.RecordGrantWithOutbox(ctx, "addr", now, envelope("ev-1", "market.grant.issued")); err != nil {
		t.Fatalf("RecordGrantWithOutbox: %v", err)
	}
	has, _ = store.HasGrant(ctx, "addr")
	if !has {
		t.Fatalf("grant not recorded")
	}
	if err := store.RecordGrantWithOutbox(ctx, "addr", now, envelope("ev-2", "market.grant.issued")); !errors.Is(err, domainerrors.ErrStoreInvariantBroken) {
		t.Fatalf("err = %v, want ErrStoreInvariantBroken", err)
	}
}
