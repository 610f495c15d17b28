package payment

// Fee parameters. Amounts are integer minor units; percentage fees use
// integer basis-point math so the result is exact and deterministic.
const (
	platformFeeBPS    int64 = 1000 // 10% of amount
	taxOnPlatformBPS  int64 = 1000 // 10% of the platform fee
	cardFeeBPS        int64 = 290  // 2.9% of amount
	cardFixedFee      int64 = 2000
	walletFeeBPS      int64 = 100 // 1% of amount
	bankTransferBPS   int64 = 10  // 0.1% of amount
	bankTransferMinim int64 = 5000
)

// Fees is the fee decomposition of a payment.
type Fees struct {
	PlatformFee int64
	ProviderFee int64
	Tax         int64
	TotalFees   int64
}

// CalculateFees computes the deterministic fee breakdown for an amount and
// method:
//
//	platformFee = amount * 10%
//	providerFee = method-specific (card 2.9%+fixed, wallet 1%,
//	              bank_transfer max(0.1%, minimum), cash 0)
//	tax         = platformFee * 10%
//	totalFees   = platformFee + providerFee + tax
//
// Fees are carved out of the amount, never added on top, so totalFees must
// fit inside it. Amounts too small to cover the fixed fee components are
// rejected.
func CalculateFees(amount int64, method Method) (Fees, error) {
	if amount <= 0 {
		return Fees{}, ErrAmountNotPositive
	}

	platform := amount * platformFeeBPS / 10000

	var provider int64
	switch method {
	case MethodCard:
		provider = amount*cardFeeBPS/10000 + cardFixedFee
	case MethodWallet:
		provider = amount * walletFeeBPS / 10000
	case MethodBankTransfer:
		provider = amount * bankTransferBPS / 10000
		if provider < bankTransferMinim {
			provider = bankTransferMinim
		}
	case MethodCash:
		provider = 0
	default:
		return Fees{}, ErrInvalidMethod
	}

	tax := platform * taxOnPlatformBPS / 10000

	total := platform + provider + tax
	if total > amount {
		return Fees{}, ErrFeesExceedAmount
	}

	return Fees{
		PlatformFee: platform,
		ProviderFee: provider,
		Tax:         tax,
		TotalFees:   total,
	}, nil
}
