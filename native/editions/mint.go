package editions

import (
	"math/big"
)

// ValidateAndRecord is the inbound hook the ledger calls as part of its own
// mint transaction. Any edition ever created for the tenant remains mintable
// under its frozen terms; only edition creation is time-gated. Checks run in
// order (existence, supply cap, per-address cap, payment) and a failure at any
// point aborts the enclosing call with no partial effect: funds are routed
// through the ledger before the counters are persisted, and the staged state
// writes are discarded by the environment when an error propagates back.
func (e *Engine) ValidateAndRecord(tenant [20]byte, editionID uint64, quantity uint64, minter [20]byte, payment *big.Int) (*MintReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, errZeroQuantity
	}
	if payment != nil && payment.Sign() < 0 {
		return nil, errInvalidPayment
	}
	record, ok, err := e.state.EditionsRecordGet(tenant, editionID)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrUnknownEdition
	}
	if quantity > record.MaxSupply-record.TotalMinted {
		return nil, ErrSoldOut
	}
	mintedBy, err := e.state.EditionsMintedBy(tenant, editionID, minter)
	if err != nil {
		return nil, err
	}
	if mintedBy > record.MaxTokensPerAddress || quantity > record.MaxTokensPerAddress-mintedBy {
		return nil, ErrPerAddressLimitExceeded
	}
	paid := big.NewInt(0)
	if payment != nil {
		paid = new(big.Int).Set(payment)
	}
	owed := new(big.Int).Mul(record.PricePerToken, new(big.Int).SetUint64(quantity))
	owed = owed.Add(owed, e.ProtocolFee())
	if paid.Cmp(owed) < 0 {
		return nil, ErrInsufficientFunds
	}
	split, recipient, err := e.routePayment(tenant, minter, paid)
	if err != nil {
		return nil, err
	}
	record.TotalMinted += quantity
	mintedBy += quantity
	if err := e.state.EditionsRecordPut(tenant, record); err != nil {
		return nil, err
	}
	if err := e.state.EditionsSetMintedBy(tenant, editionID, minter, mintedBy); err != nil {
		return nil, err
	}
	e.emit(TokenMintedEvent(tenant, editionID, minter, quantity, record.TotalMinted))
	e.emit(FundsRoutedEvent(tenant, recipient, split.Net, split.Fee))
	return &MintReceipt{
		Tenant:          tenant,
		EditionID:       editionID,
		Minter:          minter,
		Quantity:        quantity,
		TotalMinted:     record.TotalMinted,
		MintedByAddress: mintedBy,
		Payment:         paid,
		Fee:             split.Fee,
		Net:             split.Net,
	}, nil
}
