package service

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/ledger"
)

var (
	tokenNameRegex   = regexp.MustCompile(`^[A-Za-z0-9 ._-]{1,64}$`)
	tokenSymbolRegex = regexp.MustCompile(`^[A-Z0-9]{1,11}$`)
)

// parseAccount validates an address-valued request field.
func parseAccount(field, s string) (domain.Address, error) {
	addr, err := domain.ParseAddress(s)
	if err != nil {
		return "", &domain.ValidationError{Message: field + " must match ^0x[0-9a-fA-F]{40}$"}
	}
	return addr, nil
}

// parseAmount converts a whole-token decimal string to base units.
func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, &domain.ValidationError{Message: field + " is required"}
	}
	amount, err := domain.ParseUnits(s)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Message: field + ": " + err.Error()}
	}
	return amount, nil
}

// DeployTokenRequest represents the input for token deployment.
type DeployTokenRequest struct {
	Deployer    string
	Name        string
	Symbol      string
	TotalSupply string // whole tokens
}

// TransferRequest represents the input for transfer and transferFrom.
// From is only used by transferFrom.
type TransferRequest struct {
	Caller string
	From   string
	To     string
	Amount string
}

// ApproveRequest represents the input for approve.
type ApproveRequest struct {
	Owner   string
	Spender string
	Amount  string
}

// TokenService handles deployment and ledger operations on assets.
type TokenService struct {
	tokens    *ledger.Registry
	custodian domain.Address
	publisher *Publisher
	clock     func() time.Time
}

// NewTokenService creates a new TokenService. custodian is the exchange's
// own account: its ledger balances back custody and only the exchange may
// move them, so it is refused as a caller here.
func NewTokenService(tokens *ledger.Registry, custodian domain.Address, publisher *Publisher, clock func() time.Time) *TokenService {
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{
		tokens:    tokens,
		custodian: custodian,
		publisher: publisher,
		clock:     clock,
	}
}

// guard rejects any operation the custodian takes part in. Tokens sent to
// it directly would sit outside custody.
func (s *TokenService) guard(accounts ...domain.Address) error {
	if s.custodian.IsNull() {
		return nil
	}
	for _, a := range accounts {
		if a == s.custodian {
			return domain.ErrUnauthorized
		}
	}
	return nil
}

// Deploy validates the request and creates a token whose supply is
// credited to the deployer.
func (s *TokenService) Deploy(req DeployTokenRequest) (*ledger.Token, error) {
	deployer, err := parseAccount("deployer", req.Deployer)
	if err != nil {
		return nil, err
	}
	if !tokenNameRegex.MatchString(req.Name) {
		return nil, &domain.ValidationError{Message: "name must match ^[A-Za-z0-9 ._-]{1,64}$"}
	}
	if !tokenSymbolRegex.MatchString(req.Symbol) {
		return nil, &domain.ValidationError{Message: "symbol must match ^[A-Z0-9]{1,11}$"}
	}
	supply, err := decimal.NewFromString(req.TotalSupply)
	if err != nil || !domain.ValidAmount(supply) {
		return nil, &domain.ValidationError{Message: "total_supply must be a non-negative whole number of tokens"}
	}
	if err := s.guard(deployer); err != nil {
		return nil, err
	}

	var tok *ledger.Token
	_, err = commit(s.publisher, s.clock, func(time.Time) (domain.DeployEvent, error) {
		t, err := s.tokens.Deploy(req.Name, req.Symbol, supply, deployer)
		if err != nil {
			return domain.DeployEvent{}, err
		}
		tok = t
		m := t.Metadata()
		return domain.DeployEvent{
			Token:       m.Address,
			Name:        m.Name,
			Symbol:      m.Symbol,
			Decimals:    m.Decimals,
			TotalSupply: m.TotalSupply,
			Deployer:    deployer,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// List returns every deployed token.
func (s *TokenService) List() []ledger.Metadata {
	tokens := s.tokens.List()
	out := make([]ledger.Metadata, len(tokens))
	for i, t := range tokens {
		out[i] = t.Metadata()
	}
	return out
}

// Get returns one token by address.
func (s *TokenService) Get(address string) (*ledger.Token, error) {
	addr, err := parseAccount("token", address)
	if err != nil {
		return nil, err
	}
	return s.tokens.Get(addr)
}

// BalanceOf returns account's ledger balance of token.
func (s *TokenService) BalanceOf(token, account string) (decimal.Decimal, error) {
	t, err := s.Get(token)
	if err != nil {
		return decimal.Zero, err
	}
	addr, err := parseAccount("account", account)
	if err != nil {
		return decimal.Zero, err
	}
	return t.BalanceOf(addr), nil
}

// Allowance returns how much spender may still move out of owner's balance.
func (s *TokenService) Allowance(token, owner, spender string) (decimal.Decimal, error) {
	t, err := s.Get(token)
	if err != nil {
		return decimal.Zero, err
	}
	o, err := parseAccount("owner", owner)
	if err != nil {
		return decimal.Zero, err
	}
	sp, err := parseAccount("spender", spender)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Allowance(o, sp), nil
}

// Transfer moves tokens from the caller to req.To.
func (s *TokenService) Transfer(token string, req TransferRequest) (domain.TransferEvent, error) {
	t, err := s.Get(token)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	caller, err := parseAccount("caller", req.Caller)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return domain.TransferEvent{}, err
	}

	if err := s.guard(caller, to); err != nil {
		return domain.TransferEvent{}, err
	}

	return commit(s.publisher, s.clock, func(time.Time) (domain.TransferEvent, error) {
		return t.Transfer(caller, to, amount)
	})
}

// Approve sets the caller's allowance for req.Spender, replacing any
// previous value.
func (s *TokenService) Approve(token string, req ApproveRequest) (domain.ApprovalEvent, error) {
	t, err := s.Get(token)
	if err != nil {
		return domain.ApprovalEvent{}, err
	}
	owner, err := parseAccount("caller", req.Owner)
	if err != nil {
		return domain.ApprovalEvent{}, err
	}
	spender, err := parseAccount("spender", req.Spender)
	if err != nil {
		return domain.ApprovalEvent{}, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return domain.ApprovalEvent{}, err
	}

	if err := s.guard(owner); err != nil {
		return domain.ApprovalEvent{}, err
	}

	return commit(s.publisher, s.clock, func(time.Time) (domain.ApprovalEvent, error) {
		return t.Approve(owner, spender, amount)
	})
}

// TransferFrom moves tokens from req.From to req.To under the caller's
// allowance.
func (s *TokenService) TransferFrom(token string, req TransferRequest) (domain.TransferEvent, error) {
	t, err := s.Get(token)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	caller, err := parseAccount("caller", req.Caller)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return domain.TransferEvent{}, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return domain.TransferEvent{}, err
	}

	if err := s.guard(caller, from, to); err != nil {
		return domain.TransferEvent{}, err
	}

	return commit(s.publisher, s.clock, func(time.Time) (domain.TransferEvent, error) {
		return t.TransferFrom(caller, from, to, amount)
	})
}
