package payment

import (
	"errors"
	"testing"
)

func TestCalculateFees(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		method Method
		want   Fees
	}{
		{
			name:   "card",
			amount: 100000,
			method: MethodCard,
			want:   Fees{PlatformFee: 10000, ProviderFee: 4900, Tax: 1000, TotalFees: 15900},
		},
		{
			name:   "wallet",
			amount: 100000,
			method: MethodWallet,
			want:   Fees{PlatformFee: 10000, ProviderFee: 1000, Tax: 1000, TotalFees: 12000},
		},
		{
			name:   "cash has no provider fee",
			amount: 100000,
			method: MethodCash,
			want:   Fees{PlatformFee: 10000, ProviderFee: 0, Tax: 1000, TotalFees: 11000},
		},
		{
			name:   "bank transfer hits the minimum",
			amount: 100000, // 0.1% = 100, below the 5000 floor
			method: MethodBankTransfer,
			want:   Fees{PlatformFee: 10000, ProviderFee: 5000, Tax: 1000, TotalFees: 16000},
		},
		{
			name:   "bank transfer above the minimum",
			amount: 10000000, // 0.1% = 10000
			method: MethodBankTransfer,
			want:   Fees{PlatformFee: 1000000, ProviderFee: 10000, Tax: 100000, TotalFees: 1110000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateFees(tt.amount, tt.method)
			if err != nil {
				t.Fatalf("CalculateFees: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateFeesRejectsBadInput(t *testing.T) {
	if _, err := CalculateFees(0, MethodCash); !errors.Is(err, ErrAmountNotPositive) {
		t.Errorf("zero amount: want ErrAmountNotPositive, got %v", err)
	}
	if _, err := CalculateFees(-100, MethodCard); !errors.Is(err, ErrAmountNotPositive) {
		t.Errorf("negative amount: want ErrAmountNotPositive, got %v", err)
	}
	if _, err := CalculateFees(1000, Method("crypto")); !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("unknown method: want ErrInvalidMethod, got %v", err)
	}
}

func TestCalculateFeesRejectsFeesOverAmount(t *testing.T) {
	// the fixed fee components dominate small amounts; fees are carved out of
	// the amount, so such payments must be rejected rather than go negative
	tests := []struct {
		name   string
		amount int64
		method Method
	}{
		{"tiny card payment under the fixed fee", 100, MethodCard},
		{"bank transfer under the minimum fee", 1000, MethodBankTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CalculateFees(tt.amount, tt.method); !errors.Is(err, ErrFeesExceedAmount) {
				t.Errorf("want ErrFeesExceedAmount, got %v", err)
			}
		})
	}
}

func TestCalculateFeesIsDeterministic(t *testing.T) {
	first, err := CalculateFees(123457, MethodCard)
	if err != nil {
		t.Fatalf("CalculateFees: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := CalculateFees(123457, MethodCard)
		if again != first {
			t.Fatalf("fee computation drifted: %+v vs %+v", again, first)
		}
	}
}
