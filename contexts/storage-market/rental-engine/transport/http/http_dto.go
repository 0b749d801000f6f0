package httptransport

type GrantResponse struct {
	Status  string `json:"status"`
	Address string `json:"address"`
	Granted bool   `json:"granted"`
	Amount  uint64 `json:"amount,omitempty"`
}

type ListStorageRequest struct {
	StorageSize uint64 `json:"storage_size"`
	PricePerDay uint64 `json:"price_per_day"`
}

type ListingDTO struct {
	ListingID   uint64 `json:"listing_id"`
	Provider    string `json:"provider"`
	StorageSize uint64 `json:"storage_size"`
	PricePerDay uint64 `json:"price_per_day"`
	Available   bool   `json:"available"`
	CreatedAt   string `json:"created_at"`
}

type ListStorageResponse struct {
	Status string     `json:"status"`
	Data   ListingDTO `json:"data"`
}

type GetListingResponse struct {
	Item ListingDTO `json:"item"`
}

type ListListingsResponse struct {
	Items []ListingDTO `json:"items"`
}

type CreateRequestRequest struct {
	DurationDays uint64 `json:"duration_days"`
}

type RequestDTO struct {
	RequestID    uint64 `json:"request_id"`
	ListingID    uint64 `json:"listing_id"`
	Consumer     string `json:"consumer"`
	DurationDays uint64 `json:"duration_days"`
	Accepted     bool   `json:"accepted"`
	Completed    bool   `json:"completed"`
	StartTime    string `json:"start_time,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type RequestResponse struct {
	Status string     `json:"status"`
	Data   RequestDTO `json:"data"`
}

type GetRequestResponse struct {
	Item RequestDTO `json:"item"`
}

type ListRequestsResponse struct {
	Items []RequestDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
