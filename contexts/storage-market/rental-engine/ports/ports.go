package ports

import (
	"context"
	"time"

	contractsv1 "stornet/contracts/gen/events/v1"
	"stornet/contexts/storage-market/rental-engine/domain/entities"
	"stornet/internal/shared/outbox"
)

// EventEnvelope is the canonical envelope appended to the outbox alongside
// every committed transition.
type EventEnvelope = contractsv1.Envelope

// ListingRepository owns listing state. Id allocation is split out so the
// service can build a complete event envelope before the write; allocated
// ids are never reused even when the subsequent write fails.
type ListingRepository interface {
	NextListingID(ctx context.Context) (uint64, error)
	CreateListingWithOutbox(ctx context.Context, listing entities.Listing, envelope EventEnvelope) error
	GetListing(ctx context.Context, listingID uint64) (entities.Listing, error)
	ListAvailableListings(ctx context.Context) ([]entities.Listing, error)
	ListListingsByProvider(ctx context.Context, provider string) ([]entities.Listing, error)
}

// RequestRepository owns request state, keyed (listingID, requestID).
// Accept flips the listing unavailable in the same atomic write as the
// request transition.
type RequestRepository interface {
	NextRequestID(ctx context.Context, listingID uint64) (uint64, error)
	CreateRequestWithOutbox(ctx context.Context, request entities.Request, envelope EventEnvelope) error
	GetRequest(ctx context.Context, listingID uint64, requestID uint64) (entities.Request, error)
	ListRequestsByConsumer(ctx context.Context, consumer string) ([]entities.Request, error)
	ListPendingRequests(ctx context.Context, listingID uint64) ([]entities.Request, error)
	AcceptRequestWithOutbox(ctx context.Context, listingID uint64, requestID uint64, startTime time.Time, envelope EventEnvelope) error
	CompleteRequestWithOutbox(ctx context.Context, listingID uint64, requestID uint64, completedAt time.Time, envelope EventEnvelope) error
}

// GrantRepository records which addresses already received the initial
// token grant.
type GrantRepository interface {
	HasGrant(ctx context.Context, address string) (bool, error)
	RecordGrantWithOutbox(ctx context.Context, address string, grantedAt time.Time, envelope EventEnvelope) error
}

// Ledger is the engine's view of the token ledger. The adapter supplies the
// engine's own address as caller, so Mint relies on the engine holding
// ledger ownership and TransferFrom spends the consumer's pre-approved
// allowance to the engine.
type Ledger interface {
	Mint(ctx context.Context, to string, amount uint64) error
	TransferFrom(ctx context.Context, owner string, to string, amount uint64) error
}

// Transactor shares one atomic commit across repositories writing to the
// same database. Completing a rental binds the ledger movement and the
// request flip to one commit; issuing a grant binds the mint and the grant
// record the same way.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
