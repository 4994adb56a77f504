package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

func TestFee(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		percent int64
		want    decimal.Decimal
	}{
		{"ten percent of ten tokens", domain.Tokens(10), 10, domain.Tokens(1)},
		{"zero percent", domain.Tokens(10), 0, decimal.Zero},
		{"hundred percent", domain.Tokens(3), 100, domain.Tokens(3)},
		{"truncates toward zero", decimal.NewFromInt(19), 10, decimal.NewFromInt(1)},
		{"below one base unit", decimal.NewFromInt(9), 10, decimal.Zero},
		{"zero amount", decimal.Zero, 50, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fee(tt.amount, tt.percent)
			if !got.Equal(tt.want) {
				t.Errorf("Fee(%s, %d) = %s, want %s", tt.amount, tt.percent, got, tt.want)
			}
			if !got.IsInteger() {
				t.Errorf("Fee(%s, %d) = %s is not a whole base unit", tt.amount, tt.percent, got)
			}
		})
	}
}
