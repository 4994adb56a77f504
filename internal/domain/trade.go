package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade records one settled fill. The maker received AmountGet of TokenGet
// and gave AmountGive of TokenGive; the filler paid AmountGet + Fee.
type Trade struct {
	OrderID    uint64          `json:"id"`
	Maker      Address         `json:"user"`
	TokenGet   Address         `json:"token_get"`
	AmountGet  decimal.Decimal `json:"amount_get"`
	TokenGive  Address         `json:"token_give"`
	AmountGive decimal.Decimal `json:"amount_give"`
	Filler     Address         `json:"creator"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt time.Time       `json:"timestamp"`
}
