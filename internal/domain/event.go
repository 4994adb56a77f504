package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event names, shared by the event log, the websocket stream and webhooks.
const (
	EventDeploy   = "Deploy"
	EventTransfer = "Transfer"
	EventApproval = "Approval"
	EventDeposit  = "Deposit"
	EventWithdraw = "Withdraw"
	EventOrder    = "Order"
	EventCancel   = "Cancel"
	EventTrade    = "Trade"
)

// Event is a notification returned by a successful state-changing operation.
type Event interface {
	EventName() string
}

// DeployEvent records a new token. TotalSupply is in base units and was
// credited to Deployer.
type DeployEvent struct {
	Token       Address         `json:"token"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    int32           `json:"decimals"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	Deployer    Address         `json:"deployer"`
}

func (DeployEvent) EventName() string { return EventDeploy }

// TransferEvent is emitted by transfer and transferFrom. Spender is set
// only by transferFrom.
type TransferEvent struct {
	Token   Address         `json:"token"`
	From    Address         `json:"from"`
	To      Address         `json:"to"`
	Value   decimal.Decimal `json:"value"`
	Spender Address         `json:"spender,omitempty"`
}

func (TransferEvent) EventName() string { return EventTransfer }

// ApprovalEvent is emitted by approve.
type ApprovalEvent struct {
	Token   Address         `json:"token"`
	Owner   Address         `json:"owner"`
	Spender Address         `json:"spender"`
	Value   decimal.Decimal `json:"value"`
}

func (ApprovalEvent) EventName() string { return EventApproval }

// DepositEvent carries the user's custody balance after the deposit.
type DepositEvent struct {
	Token     Address         `json:"token"`
	User      Address         `json:"user"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
}

func (DepositEvent) EventName() string { return EventDeposit }

// WithdrawEvent carries the user's custody balance after the withdrawal.
type WithdrawEvent struct {
	Token     Address         `json:"token"`
	User      Address         `json:"user"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
}

func (WithdrawEvent) EventName() string { return EventWithdraw }

// OrderEvent is emitted when an order is created.
type OrderEvent struct {
	ID         uint64          `json:"id"`
	User       Address         `json:"user"`
	TokenGet   Address         `json:"token_get"`
	AmountGet  decimal.Decimal `json:"amount_get"`
	TokenGive  Address         `json:"token_give"`
	AmountGive decimal.Decimal `json:"amount_give"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (OrderEvent) EventName() string { return EventOrder }

// CancelEvent repeats the order's fields with the cancellation time.
type CancelEvent struct {
	ID         uint64          `json:"id"`
	User       Address         `json:"user"`
	TokenGet   Address         `json:"token_get"`
	AmountGet  decimal.Decimal `json:"amount_get"`
	TokenGive  Address         `json:"token_give"`
	AmountGive decimal.Decimal `json:"amount_give"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (CancelEvent) EventName() string { return EventCancel }

// TradeEvent is emitted when an order is filled.
type TradeEvent struct {
	Trade
}

func (TradeEvent) EventName() string { return EventTrade }

// NewOrderEvent builds the creation notification for o.
func NewOrderEvent(o Order) OrderEvent {
	return OrderEvent{
		ID:         o.ID,
		User:       o.Maker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  o.Timestamp,
	}
}

// NewCancelEvent builds the cancellation notification for o at time at.
func NewCancelEvent(o Order, at time.Time) CancelEvent {
	return CancelEvent{
		ID:         o.ID,
		User:       o.Maker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  at,
	}
}
