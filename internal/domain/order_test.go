package domain

import "testing"

func TestOrderStatus_Terminal(t *testing.T) {
	if OrderStatusOpen.Terminal() {
		t.Error("open should not be terminal")
	}
	if !OrderStatusCancelled.Terminal() {
		t.Error("cancelled should be terminal")
	}
	if !OrderStatusFilled.Terminal() {
		t.Error("filled should be terminal")
	}
}

func TestOrder_TerminalError(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   error
	}{
		{OrderStatusOpen, nil},
		{OrderStatusFilled, ErrAlreadyFilled},
		{OrderStatusCancelled, ErrAlreadyCancelled},
	}
	for _, tt := range tests {
		o := Order{Status: tt.status}
		if got := o.TerminalError(); got != tt.want {
			t.Errorf("TerminalError() for %s = %v, want %v", tt.status, got, tt.want)
		}
		if o.IsOpen() != (tt.status == OrderStatusOpen) {
			t.Errorf("IsOpen() for %s = %v", tt.status, o.IsOpen())
		}
	}
}
