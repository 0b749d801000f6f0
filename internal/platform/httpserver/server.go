package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tokenledger "stornet/contexts/finance-core/token-ledger"
	ledgererrors "stornet/contexts/finance-core/token-ledger/domain/errors"
	ledgerhttp "stornet/contexts/finance-core/token-ledger/transport/http"
	rentalengine "stornet/contexts/storage-market/rental-engine"
	marketerrors "stornet/contexts/storage-market/rental-engine/domain/errors"
	markethttp "stornet/contexts/storage-market/rental-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "stornet/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	ledger tokenledger.Module
	market rentalengine.Module
}

func New(
	ledger tokenledger.Module,
	market rentalengine.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ledger: ledger,
		market: market,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /v1/ledger/accounts/{address}/balance", s.handleLedgerBalance)
	s.mux.HandleFunc("GET /v1/ledger/allowances/{owner}/{spender}", s.handleLedgerAllowance)
	s.mux.HandleFunc("GET /v1/ledger/supply", s.handleLedgerSupply)
	s.mux.HandleFunc("POST /v1/ledger/transfer", s.handleLedgerTransfer)
	s.mux.HandleFunc("POST /v1/ledger/approve", s.handleLedgerApprove)
	s.mux.HandleFunc("POST /v1/ledger/transfer-from", s.handleLedgerTransferFrom)
	s.mux.HandleFunc("POST /v1/ledger/mint", s.handleLedgerMint)
	s.mux.HandleFunc("POST /v1/ledger/transfer-ownership", s.handleLedgerTransferOwnership)

	s.mux.HandleFunc("POST /v1/market/grants", s.handleMarketGrant)
	s.mux.HandleFunc("POST /v1/market/listings", s.handleMarketCreateListing)
	s.mux.HandleFunc("GET /v1/market/listings", s.handleMarketListListings)
	s.mux.HandleFunc("GET /v1/market/listings/{listing_id}", s.handleMarketGetListing)
	s.mux.HandleFunc("POST /v1/market/listings/{listing_id}/requests", s.handleMarketCreateRequest)
	s.mux.HandleFunc("GET /v1/market/listings/{listing_id}/requests", s.handleMarketListPendingRequests)
	s.mux.HandleFunc("GET /v1/market/listings/{listing_id}/requests/{request_id}", s.handleMarketGetRequest)
	s.mux.HandleFunc("POST /v1/market/listings/{listing_id}/requests/{request_id}/accept", s.handleMarketAcceptRequest)
	s.mux.HandleFunc("POST /v1/market/listings/{listing_id}/requests/{request_id}/complete", s.handleMarketCompleteRequest)
	s.mux.HandleFunc("GET /v1/market/requests", s.handleMarketListConsumerRequests)
}

func (s *Server) handleLedgerBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.BalanceHandler(r.Context(), r.PathValue("address"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerAllowance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.AllowanceHandler(r.Context(), r.PathValue("owner"), r.PathValue("spender"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerSupply(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.SupplyHandler(r.Context())
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ledger.Handler.TransferHandler(r.Context(), caller, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ledger.Handler.ApproveHandler(r.Context(), caller, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.TransferFromRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ledger.Handler.TransferFromHandler(r.Context(), caller, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ledger.Handler.MintHandler(r.Context(), caller, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedgerTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ledger.Handler.TransferOwnershipHandler(r.Context(), caller, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketGrant(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	resp, err := s.market.Handler.GrantInitialTokensHandler(r.Context(), caller)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	var req markethttp.ListStorageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.market.Handler.ListStorageHandler(r.Context(), caller, req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleMarketListListings(w http.ResponseWriter, r *http.Request) {
	if provider := r.URL.Query().Get("provider"); provider != "" {
		resp, err := s.market.Handler.ListProviderListingsHandler(r.Context(), provider)
		if err != nil {
			writeMarketDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp, err := s.market.Handler.ListAvailableListingsHandler(r.Context())
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, r *http.Request) {
	listingID, ok := parseID(w, r, "listing_id")
	if !ok {
		return
	}
	resp, err := s.market.Handler.GetListingHandler(r.Context(), listingID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketCreateRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	listingID, ok := parseID(w, r, "listing_id")
	if !ok {
		return
	}
	var req markethttp.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.market.Handler.CreateRequestHandler(r.Context(), caller, listingID, req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleMarketListPendingRequests(w http.ResponseWriter, r *http.Request) {
	listingID, ok := parseID(w, r, "listing_id")
	if !ok {
		return
	}
	resp, err := s.market.Handler.ListPendingRequestsHandler(r.Context(), listingID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketGetRequest(w http.ResponseWriter, r *http.Request) {
	listingID, ok := parseID(w, r, "listing_id")
	if !ok {
		return
	}
	requestID, ok := parseID(w, r, "request_id")
	if !ok {
		return
	}
	resp, err := s.market.Handler.GetRequestHandler(r.Context(), listingID, requestID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketAcceptRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	listingID, ok := parseID(w, r, "listing_id")
	if !ok {
		return
	}
	requestID, ok := parseID(w, r, "request_id")
	if !ok {
		return
	}
	resp, err := s.market.Handler.AcceptRequestHandler(r.Context(), caller, listingID, requestID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketCompleteRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := resolveCaller(w, r)
	if !ok {
		return
	}
	listingID, ok := parseID(w, r, "listing_id")
	if !ok {
		return
	}
	requestID, ok := parseID(w, r, "request_id")
	if !ok {
		return
	}
	resp, err := s.market.Handler.CompleteRequestHandler(r.Context(), caller, listingID, requestID)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarketListConsumerRequests(w http.ResponseWriter, r *http.Request) {
	consumer := r.URL.Query().Get("consumer")
	if consumer == "" {
		caller, ok := resolveCaller(w, r)
		if !ok {
			return
		}
		consumer = caller
	}
	resp, err := s.market.Handler.ListConsumerRequestsHandler(r.Context(), consumer)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeLedgerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrUnauthorized):
		writeLedgerError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, ledgererrors.ErrInsufficientBalance):
		writeLedgerError(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error())
	case errors.Is(err, ledgererrors.ErrInsufficientAllowance):
		writeLedgerError(w, http.StatusUnprocessableEntity, "insufficient_allowance", err.Error())
	case errors.Is(err, ledgererrors.ErrOverflow):
		writeLedgerError(w, http.StatusUnprocessableEntity, "amount_overflow", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidAddress):
		writeLedgerError(w, http.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, ledgererrors.ErrAlreadyInitialized):
		writeLedgerError(w, http.StatusConflict, "already_initialized", err.Error())
	default:
		writeLedgerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeMarketDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketerrors.ErrUnauthorized):
		writeMarketError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, marketerrors.ErrListingNotFound):
		writeMarketError(w, http.StatusNotFound, "listing_not_found", err.Error())
	case errors.Is(err, marketerrors.ErrRequestNotFound):
		writeMarketError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, marketerrors.ErrInvalidParameters):
		writeMarketError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
	case errors.Is(err, marketerrors.ErrListingUnavailable):
		writeMarketError(w, http.StatusConflict, "listing_unavailable", err.Error())
	case errors.Is(err, marketerrors.ErrAlreadyAccepted):
		writeMarketError(w, http.StatusConflict, "already_accepted", err.Error())
	case errors.Is(err, marketerrors.ErrNotYetAccepted):
		writeMarketError(w, http.StatusConflict, "not_yet_accepted", err.Error())
	case errors.Is(err, marketerrors.ErrAlreadyCompleted):
		writeMarketError(w, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, marketerrors.ErrTooEarly):
		writeMarketError(w, http.StatusConflict, "rental_period_active", err.Error())
	case errors.Is(err, marketerrors.ErrOverflow):
		writeMarketError(w, http.StatusUnprocessableEntity, "amount_overflow", err.Error())
	case errors.Is(err, ledgererrors.ErrInsufficientAllowance):
		writeMarketError(w, http.StatusUnprocessableEntity, "insufficient_allowance", err.Error())
	case errors.Is(err, ledgererrors.ErrInsufficientBalance):
		writeMarketError(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error())
	default:
		writeMarketError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLedgerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeMarketError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, markethttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := strings.TrimSpace(r.Header.Get("X-Caller-Address"))
	if caller == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_caller", "X-Caller-Address header is required")
		return "", false
	}
	return caller, true
}

func parseID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	value, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return value, true
}
