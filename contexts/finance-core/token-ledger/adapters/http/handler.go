package httpadapter

import (
	"context"
	"log/slog"

	"stornet/contexts/finance-core/token-ledger/application"
	httptransport "stornet/contexts/finance-core/token-ledger/transport/http"
)

type Handler struct {
	Service *application.Service
	Logger  *slog.Logger
}

func (h Handler) TransferHandler(
	ctx context.Context,
	caller string,
	req httptransport.TransferRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Service.Transfer(ctx, caller, req.To, req.Amount); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "success"}, nil
}

func (h Handler) ApproveHandler(
	ctx context.Context,
	caller string,
	req httptransport.ApproveRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Service.Approve(ctx, caller, req.Spender, req.Amount); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "success"}, nil
}

func (h Handler) TransferFromHandler(
	ctx context.Context,
	caller string,
	req httptransport.TransferFromRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Service.TransferFrom(ctx, caller, req.Owner, req.To, req.Amount); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "success"}, nil
}

func (h Handler) MintHandler(
	ctx context.Context,
	caller string,
	req httptransport.MintRequest,
) (httptransport.MintResponse, error) {
	balance, err := h.Service.Mint(ctx, caller, req.To, req.Amount)
	if err != nil {
		return httptransport.MintResponse{}, err
	}
	return httptransport.MintResponse{
		Status:  "success",
		To:      req.To,
		Balance: balance,
	}, nil
}

func (h Handler) TransferOwnershipHandler(
	ctx context.Context,
	caller string,
	req httptransport.TransferOwnershipRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Service.TransferOwnership(ctx, caller, req.NewOwner); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "success"}, nil
}

func (h Handler) BalanceHandler(ctx context.Context, address string) (httptransport.BalanceResponse, error) {
	balance, err := h.Service.BalanceOf(ctx, address)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		Address: address,
		Balance: balance,
	}, nil
}

func (h Handler) AllowanceHandler(
	ctx context.Context,
	owner string,
	spender string,
) (httptransport.AllowanceResponse, error) {
	remaining, err := h.Service.Allowance(ctx, owner, spender)
	if err != nil {
		return httptransport.AllowanceResponse{}, err
	}
	return httptransport.AllowanceResponse{
		Owner:     owner,
		Spender:   spender,
		Remaining: remaining,
	}, nil
}

func (h Handler) SupplyHandler(ctx context.Context) (httptransport.SupplyResponse, error) {
	issuance, err := h.Service.TotalIssuance(ctx)
	if err != nil {
		return httptransport.SupplyResponse{}, err
	}
	owner, err := h.Service.Owner(ctx)
	if err != nil {
		return httptransport.SupplyResponse{}, err
	}
	return httptransport.SupplyResponse{
		TotalIssuance: issuance,
		Owner:         owner,
	}, nil
}
