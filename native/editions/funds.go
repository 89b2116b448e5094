package editions

import (
	"fmt"
	"math/big"
)

// DefaultProtocolFeeWei is the fixed per-mint-call protocol fee: 0.000777
// ether. It does not scale with quantity and is configurable per deployment.
var DefaultProtocolFeeWei = big.NewInt(777_000_000_000_000)

// PaymentSplit is the deterministic division of a payment into the fixed
// protocol fee and the remainder owed to the tenant's funds recipient.
type PaymentSplit struct {
	Fee *big.Int
	Net *big.Int
}

// SplitPayment divides payment into the protocol fee and the remainder. A fee
// larger than the payment consumes the whole payment; negative or nil inputs
// are treated as zero.
func SplitPayment(payment *big.Int, protocolFee *big.Int) PaymentSplit {
	split := PaymentSplit{Fee: big.NewInt(0), Net: big.NewInt(0)}
	if payment == nil || payment.Sign() <= 0 {
		return split
	}
	split.Net = new(big.Int).Set(payment)
	if protocolFee == nil || protocolFee.Sign() <= 0 {
		return split
	}
	if protocolFee.Cmp(split.Net) >= 0 {
		split.Fee = new(big.Int).Set(split.Net)
		split.Net = big.NewInt(0)
		return split
	}
	split.Fee = new(big.Int).Set(protocolFee)
	split.Net = new(big.Int).Sub(split.Net, split.Fee)
	return split
}

// routePayment splits the payment and forwards each share through the ledger:
// the remainder to the tenant's funds recipient and the fee to the protocol
// treasury. Either transfer failing aborts the whole mint; the module never
// retains funds or routes them partially.
func (e *Engine) routePayment(tenant [20]byte, payer [20]byte, payment *big.Int) (PaymentSplit, [20]byte, error) {
	var recipient [20]byte
	cfg, ok, err := e.state.EditionsConfigGet(tenant)
	if err != nil {
		return PaymentSplit{}, recipient, err
	}
	if !ok || cfg == nil {
		return PaymentSplit{}, recipient, ErrTenantNotConfigured
	}
	recipient = cfg.FundsRecipient
	split := SplitPayment(payment, e.protocolFee)
	if split.Net.Sign() > 0 {
		if err := e.ledger.Transfer(payer, recipient, split.Net); err != nil {
			return PaymentSplit{}, recipient, fmt.Errorf("%w: recipient payout: %v", ErrTransferFailed, err)
		}
	}
	if split.Fee.Sign() > 0 {
		if err := e.ledger.Transfer(payer, e.treasury, split.Fee); err != nil {
			return PaymentSplit{}, recipient, fmt.Errorf("%w: treasury fee: %v", ErrTransferFailed, err)
		}
	}
	return split, recipient, nil
}
