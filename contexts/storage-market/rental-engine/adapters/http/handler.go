package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"stornet/contexts/storage-market/rental-engine/application"
	"stornet/contexts/storage-market/rental-engine/domain/entities"
	httptransport "stornet/contexts/storage-market/rental-engine/transport/http"
)

type Handler struct {
	Service *application.Service
	Logger  *slog.Logger
}

func (h Handler) GrantInitialTokensHandler(ctx context.Context, caller string) (httptransport.GrantResponse, error) {
	granted, err := h.Service.GrantInitialTokens(ctx, caller)
	if err != nil {
		return httptransport.GrantResponse{}, err
	}
	resp := httptransport.GrantResponse{
		Status:  "success",
		Address: caller,
		Granted: granted,
	}
	if granted {
		resp.Amount = h.Service.GrantAmount
	}
	return resp, nil
}

func (h Handler) ListStorageHandler(
	ctx context.Context,
	caller string,
	req httptransport.ListStorageRequest,
) (httptransport.ListStorageResponse, error) {
	listing, err := h.Service.ListStorage(ctx, caller, req.StorageSize, req.PricePerDay)
	if err != nil {
		return httptransport.ListStorageResponse{}, err
	}
	return httptransport.ListStorageResponse{
		Status: "success",
		Data:   listingToDTO(listing),
	}, nil
}

func (h Handler) GetListingHandler(ctx context.Context, listingID uint64) (httptransport.GetListingResponse, error) {
	listing, err := h.Service.GetListing(ctx, listingID)
	if err != nil {
		return httptransport.GetListingResponse{}, err
	}
	return httptransport.GetListingResponse{Item: listingToDTO(listing)}, nil
}

func (h Handler) ListAvailableListingsHandler(ctx context.Context) (httptransport.ListListingsResponse, error) {
	listings, err := h.Service.ListAvailableListings(ctx)
	if err != nil {
		return httptransport.ListListingsResponse{}, err
	}
	return listingsResponse(listings), nil
}

func (h Handler) ListProviderListingsHandler(ctx context.Context, provider string) (httptransport.ListListingsResponse, error) {
	listings, err := h.Service.ListProviderListings(ctx, provider)
	if err != nil {
		return httptransport.ListListingsResponse{}, err
	}
	return listingsResponse(listings), nil
}

func (h Handler) CreateRequestHandler(
	ctx context.Context,
	caller string,
	listingID uint64,
	req httptransport.CreateRequestRequest,
) (httptransport.RequestResponse, error) {
	request, err := h.Service.CreateRequest(ctx, caller, listingID, req.DurationDays)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return httptransport.RequestResponse{
		Status: "success",
		Data:   requestToDTO(request),
	}, nil
}

func (h Handler) GetRequestHandler(
	ctx context.Context,
	listingID uint64,
	requestID uint64,
) (httptransport.GetRequestResponse, error) {
	request, err := h.Service.GetRequest(ctx, listingID, requestID)
	if err != nil {
		return httptransport.GetRequestResponse{}, err
	}
	return httptransport.GetRequestResponse{Item: requestToDTO(request)}, nil
}

func (h Handler) AcceptRequestHandler(
	ctx context.Context,
	caller string,
	listingID uint64,
	requestID uint64,
) (httptransport.RequestResponse, error) {
	request, err := h.Service.AcceptRequest(ctx, caller, listingID, requestID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return httptransport.RequestResponse{
		Status: "success",
		Data:   requestToDTO(request),
	}, nil
}

func (h Handler) CompleteRequestHandler(
	ctx context.Context,
	caller string,
	listingID uint64,
	requestID uint64,
) (httptransport.RequestResponse, error) {
	request, err := h.Service.CompleteRequest(ctx, caller, listingID, requestID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return httptransport.RequestResponse{
		Status: "success",
		Data:   requestToDTO(request),
	}, nil
}

func (h Handler) ListConsumerRequestsHandler(ctx context.Context, consumer string) (httptransport.ListRequestsResponse, error) {
	requests, err := h.Service.ListConsumerRequests(ctx, consumer)
	if err != nil {
		return httptransport.ListRequestsResponse{}, err
	}
	return requestsResponse(requests), nil
}

func (h Handler) ListPendingRequestsHandler(ctx context.Context, listingID uint64) (httptransport.ListRequestsResponse, error) {
	requests, err := h.Service.ListPendingRequests(ctx, listingID)
	if err != nil {
		return httptransport.ListRequestsResponse{}, err
	}
	return requestsResponse(requests), nil
}

func listingToDTO(listing entities.Listing) httptransport.ListingDTO {
	return httptransport.ListingDTO{
		ListingID:   listing.ID,
		Provider:    listing.Provider,
		StorageSize: listing.StorageSize,
		PricePerDay: listing.PricePerDay,
		Available:   listing.Available,
		CreatedAt:   listing.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func listingsResponse(listings []entities.Listing) httptransport.ListListingsResponse {
	resp := httptransport.ListListingsResponse{
		Items: make([]httptransport.ListingDTO, 0, len(listings)),
	}
	for _, listing := range listings {
		resp.Items = append(resp.Items, listingToDTO(listing))
	}
	return resp
}

func requestToDTO(request entities.Request) httptransport.RequestDTO {
	dto := httptransport.RequestDTO{
		RequestID:    request.ID,
		ListingID:    request.ListingID,
		Consumer:     request.Consumer,
		DurationDays: request.DurationDays,
		Accepted:     request.Accepted,
		Completed:    request.Completed,
		CreatedAt:    request.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !request.StartTime.IsZero() {
		dto.StartTime = request.StartTime.UTC().Format(time.RFC3339)
	}
	return dto
}

func requestsResponse(requests []entities.Request) httptransport.ListRequestsResponse {
	resp := httptransport.ListRequestsResponse{
		Items: make([]httptransport.RequestDTO, 0, len(requests)),
	}
	for _, request := range requests {
		resp.Items = append(resp.Items, requestToDTO(request))
	}
	return resp
}
