package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"stornet/contexts/storage-market/rental-engine/domain/entities"
	domainerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
	"stornet/contexts/storage-market/rental-engine/ports"
	platformdb "stornet/internal/platform/db"
	"stornet/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	listingCounter = "listing_id"
)

// Repository persists marketplace state in Postgres. Compound transitions
// (state change + outbox row) commit in one transaction.
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

func (r *Repository) NextListingID(ctx context.Context) (uint64, error) {
	return r.nextCounter(ctx, listingCounter)
}

func (r *Repository) NextRequestID(ctx context.Context, listingID uint64) (uint64, error) {
	return r.nextCounter(ctx, requestCounterName(listingID))
}

func (r *Repository) CreateListingWithOutbox(ctx context.Context, listing entities.Listing, envelope ports.EventEnvelope) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		row := listingModelFromEntity(listing)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrStoreInvariantBroken
			}
			return err
		}
		return appendOutbox(tx, envelope)
	})
}

func (r *Repository) GetListing(ctx context.Context, listingID uint64) (entities.Listing, error) {
	var row listingModel
	err := r.handle(ctx).
		Where("listing_id = ?", listingID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, domainerrors.ErrListingNotFound
		}
		return entities.Listing{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListAvailableListings(ctx context.Context) ([]entities.Listing, error) {
	var rows []listingModel
	if err := r.handle(ctx).
		Where("available = ?", true).
		Order("listing_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return listingsToEntities(rows), nil
}

func (r *Repository) ListListingsByProvider(ctx context.Context, provider string) ([]entities.Listing, error) {
	var rows []listingModel
	if err := r.handle(ctx).
		Where("provider = ?", provider).
		Order("listing_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return listingsToEntities(rows), nil
}

func (r *Repository) CreateRequestWithOutbox(ctx context.Context, request entities.Request, envelope ports.EventEnvelope) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		row := requestModelFromEntity(request)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrStoreInvariantBroken
			}
			return err
		}
		return appendOutbox(tx, envelope)
	})
}

func (r *Repository) GetRequest(ctx context.Context, listingID uint64, requestID uint64) (entities.Request, error) {
	var row requestModel
	err := r.handle(ctx).
		Where("listing_id = ? AND request_id = ?", listingID, requestID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, domainerrors.ErrRequestNotFound
		}
		return entities.Request{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRequestsByConsumer(ctx context.Context, consumer string) ([]entities.Request, error) {
	var rows []requestModel
	if err := r.handle(ctx).
		Where("consumer = ?", consumer).
		Order("listing_id ASC, request_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return requestsToEntities(rows), nil
}

func (r *Repository) ListPendingRequests(ctx context.Context, listingID uint64) ([]entities.Request, error) {
	var rows []requestModel
	if err := r.handle(ctx).
		Where("listing_id = ? AND accepted = ?", listingID, false).
		Order("request_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return requestsToEntities(rows), nil
}

func (r *Repository) AcceptRequestWithOutbox(
	ctx context.Context,
	listingID uint64,
	requestID uint64,
	startTime time.Time,
	envelope ports.EventEnvelope,
) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		start := startTime.UTC()
		result := tx.
			Model(&requestModel{}).
			Where("listing_id = ? AND request_id = ? AND accepted = ?", listingID, requestID, false).
			Updates(map[string]any{
				"accepted":   true,
				"start_time": &start,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrRequestNotFound
		}

		result = tx.
			Model(&listingModel{}).
			Where("listing_id = ?", listingID).
			Update("available", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrListingNotFound
		}
		return appendOutbox(tx, envelope)
	})
}

func (r *Repository) CompleteRequestWithOutbox(
	ctx context.Context,
	listingID uint64,
	requestID uint64,
	completedAt time.Time,
	envelope ports.EventEnvelope,
) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		completed := completedAt.UTC()
		result := tx.
			Model(&requestModel{}).
			Where("listing_id = ? AND request_id = ? AND completed = ?", listingID, requestID, false).
			Updates(map[string]any{
				"completed":    true,
				"completed_at": &completed,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrRequestNotFound
		}
		return appendOutbox(tx, envelope)
	})
}

func (r *Repository) HasGrant(ctx context.Context, address string) (bool, error) {
	var row grantModel
	err := r.handle(ctx).
		Where("address = ?", address).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) RecordGrantWithOutbox(ctx context.Context, address string, grantedAt time.Time, envelope ports.EventEnvelope) error {
	return r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		row := grantModel{
			Address:   address,
			GrantedAt: grantedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrStoreInvariantBroken
			}
			return err
		}
		return appendOutbox(tx, envelope)
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.handle(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toMessage())
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.handle(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStoreInvariantBroken
	}
	return nil
}

func (r *Repository) nextCounter(ctx context.Context, name string) (uint64, error) {
	var value uint64
	err := r.handle(ctx).Transaction(func(tx *gorm.DB) error {
		var row counterModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).
			First(&row).
			Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			row = counterModel{Name: name}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		row.Value++
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		value = row.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

func appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrStoreInvariantBroken
		}
		return err
	}
	return nil
}

func requestCounterName(listingID uint64) string {
	return "request_id:" + strconv.FormatUint(listingID, 10)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

type listingModel struct {
	ListingID   uint64    `gorm:"column:listing_id;primaryKey"`
	Provider    string    `gorm:"column:provider"`
	StorageSize uint64    `gorm:"column:storage_size"`
	PricePerDay uint64    `gorm:"column:price_per_day"`
	Available   bool      `gorm:"column:available"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (listingModel) TableName() string {
	return "market_listings"
}

func listingModelFromEntity(listing entities.Listing) listingModel {
	return listingModel{
		ListingID:   listing.ID,
		Provider:    listing.Provider,
		StorageSize: listing.StorageSize,
		PricePerDay: listing.PricePerDay,
		Available:   listing.Available,
		CreatedAt:   listing.CreatedAt.UTC(),
	}
}

func (m listingModel) toEntity() entities.Listing {
	return entities.Listing{
		ID:          m.ListingID,
		Provider:    m.Provider,
		StorageSize: m.StorageSize,
		PricePerDay: m.PricePerDay,
		Available:   m.Available,
		CreatedAt:   m.CreatedAt,
	}
}

func listingsToEntities(rows []listingModel) []entities.Listing {
	items := make([]entities.Listing, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type requestModel struct {
	ListingID    uint64     `gorm:"column:listing_id;primaryKey"`
	RequestID    uint64     `gorm:"column:request_id;primaryKey"`
	Consumer     string     `gorm:"column:consumer"`
	DurationDays uint64     `gorm:"column:duration_days"`
	Accepted     bool       `gorm:"column:accepted"`
	Completed    bool       `gorm:"column:completed"`
	StartTime    *time.Time `gorm:"column:start_time"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

func (requestModel) TableName() string {
	return "market_requests"
}

func requestModelFromEntity(request entities.Request) requestModel {
	row := requestModel{
		ListingID:    request.ListingID,
		RequestID:    request.ID,
		Consumer:     request.Consumer,
		DurationDays: request.DurationDays,
		Accepted:     request.Accepted,
		Completed:    request.Completed,
		CreatedAt:    request.CreatedAt.UTC(),
	}
	if !request.StartTime.IsZero() {
		start := request.StartTime.UTC()
		row.StartTime = &start
	}
	return row
}

func (m requestModel) toEntity() entities.Request {
	request := entities.Request{
		ID:           m.RequestID,
		ListingID:    m.ListingID,
		Consumer:     m.Consumer,
		DurationDays: m.DurationDays,
		Accepted:     m.Accepted,
		Completed:    m.Completed,
		CreatedAt:    m.CreatedAt,
	}
	if m.StartTime != nil {
		request.StartTime = m.StartTime.UTC()
	}
	return request
}

func requestsToEntities(rows []requestModel) []entities.Request {
	items := make([]entities.Request, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type grantModel struct {
	Address   string    `gorm:"column:address;primaryKey"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (grantModel) TableName() string {
	return "market_grants"
}

type counterModel struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value uint64 `gorm:"column:value"`
}

func (counterModel) TableName() string {
	return "market_counters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "market_outbox"
}

func (m outboxModel) toMessage() outbox.Message {
	return outbox.Message{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      m.Payload,
		CreatedAt:    m.CreatedAt,
	}
}
