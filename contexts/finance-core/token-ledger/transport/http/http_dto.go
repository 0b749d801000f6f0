package httptransport

type TransferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type TransferFromRequest struct {
	Owner  string `json:"owner"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type MintRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Remaining uint64 `json:"remaining"`
}

type SupplyResponse struct {
	TotalIssuance uint64 `json:"total_issuance"`
	Owner         string `json:"owner"`
}

type MintResponse struct {
	Status  string `json:"status"`
	To      string `json:"to"`
	Balance uint64 `json:"balance"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
