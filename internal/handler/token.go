package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/ledger"
	"github.com/efreitasn/custodex/internal/service"
)

// TokenHandler handles HTTP requests for token endpoints.
type TokenHandler struct {
	tokenSvc *service.TokenService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokenSvc *service.TokenService) *TokenHandler {
	return &TokenHandler{tokenSvc: tokenSvc}
}

// deployTokenRequest is the JSON request body for POST /tokens.
type deployTokenRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"total_supply"`
}

// tokenResponse describes one token.
type tokenResponse struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int32  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
}

// tokenListResponse is the JSON response for GET /tokens.
type tokenListResponse struct {
	Tokens []tokenResponse `json:"tokens"`
}

type balanceResponse struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type allowanceResponse struct {
	Token     string `json:"token"`
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

// transferRequest is the JSON request body for transfer and transfer-from.
// From is only read by transfer-from.
type transferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type transferResponse struct {
	Token string `json:"token"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type approvalResponse struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// Deploy handles POST /tokens. The caller becomes the deployer.
func (h *TokenHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req deployTokenRequest
	if !readJSON(w, r, &req) {
		return
	}

	token, err := h.tokenSvc.Deploy(service.DeployTokenRequest{
		Deployer:    callerFrom(r),
		Name:        req.Name,
		Symbol:      req.Symbol,
		TotalSupply: req.TotalSupply,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildTokenResponse(token.Metadata()))
}

// List handles GET /tokens.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens := h.tokenSvc.List()
	resp := tokenListResponse{Tokens: make([]tokenResponse, len(tokens))}
	for i, m := range tokens {
		resp.Tokens[i] = buildTokenResponse(m)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /tokens/{token}.
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokenSvc.Get(chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildTokenResponse(token.Metadata()))
}

// BalanceOf handles GET /tokens/{token}/balances/{account}.
func (h *TokenHandler) BalanceOf(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	account := chi.URLParam(r, "account")

	balance, err := h.tokenSvc.BalanceOf(token, account)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, balanceResponse{
		Token:   canonical(token),
		Account: canonical(account),
		Balance: units(balance),
	})
}

// Allowance handles GET /tokens/{token}/allowances/{owner}/{spender}.
func (h *TokenHandler) Allowance(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	owner := chi.URLParam(r, "owner")
	spender := chi.URLParam(r, "spender")

	allowance, err := h.tokenSvc.Allowance(token, owner, spender)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, allowanceResponse{
		Token:     canonical(token),
		Owner:     canonical(owner),
		Spender:   canonical(spender),
		Allowance: units(allowance),
	})
}

// Transfer handles POST /tokens/{token}/transfer.
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !readJSON(w, r, &req) {
		return
	}

	ev, err := h.tokenSvc.Transfer(chi.URLParam(r, "token"), service.TransferRequest{
		Caller: callerFrom(r),
		To:     req.To,
		Amount: req.Amount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildTransferResponse(ev))
}

// Approve handles POST /tokens/{token}/approve.
func (h *TokenHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !readJSON(w, r, &req) {
		return
	}

	ev, err := h.tokenSvc.Approve(chi.URLParam(r, "token"), service.ApproveRequest{
		Owner:   callerFrom(r),
		Spender: req.Spender,
		Amount:  req.Amount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, approvalResponse{
		Token:   ev.Token.String(),
		Owner:   ev.Owner.String(),
		Spender: ev.Spender.String(),
		Value:   units(ev.Value),
	})
}

// TransferFrom handles POST /tokens/{token}/transfer-from.
func (h *TokenHandler) TransferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !readJSON(w, r, &req) {
		return
	}

	ev, err := h.tokenSvc.TransferFrom(chi.URLParam(r, "token"), service.TransferRequest{
		Caller: callerFrom(r),
		From:   req.From,
		To:     req.To,
		Amount: req.Amount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildTransferResponse(ev))
}

func buildTokenResponse(m ledger.Metadata) tokenResponse {
	return tokenResponse{
		Address:     m.Address.String(),
		Name:        m.Name,
		Symbol:      m.Symbol,
		Decimals:    m.Decimals,
		TotalSupply: units(m.TotalSupply),
	}
}

func buildTransferResponse(ev domain.TransferEvent) transferResponse {
	return transferResponse{
		Token: ev.Token.String(),
		From:  ev.From.String(),
		To:    ev.To.String(),
		Value: units(ev.Value),
	}
}
