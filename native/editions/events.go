package editions

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"perpeditions/core/events"
	"perpeditions/core/types"
)

const (
	// EventTypeConfigUpdated is emitted when a tenant's sale config is written.
	EventTypeConfigUpdated = "editions.config.updated"
	// EventTypeTokenCreated is emitted when a new edition opens.
	EventTypeTokenCreated = "editions.token.created"
	// EventTypeTokenMinted is emitted for every validated mint.
	EventTypeTokenMinted = "editions.token.minted"
	// EventTypeFundsRouted is emitted after a payment is split and forwarded.
	EventTypeFundsRouted = "editions.funds.routed"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ConfigUpdatedEvent returns the structured payload for config writes.
func ConfigUpdatedEvent(tenant [20]byte, cfg *ContractConfig) *types.Event {
	attrs := map[string]string{
		"tenant": hexAddr(tenant),
	}
	if cfg != nil {
		attrs["baseURI"] = cfg.BaseURI
		attrs["fundsRecipient"] = hexAddr(cfg.FundsRecipient)
		attrs["windowDuration"] = strconv.FormatInt(cfg.WindowDuration, 10)
		attrs["totalTokensCap"] = bigString(cfg.TotalTokensCap)
	}
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: attrs}
}

// TokenCreatedEvent returns the structured payload for a newly opened edition.
func TokenCreatedEvent(tenant [20]byte, record *EditionRecord, uri string) *types.Event {
	attrs := map[string]string{
		"tenant": hexAddr(tenant),
		"uri":    uri,
	}
	if record != nil {
		attrs["editionId"] = strconv.FormatUint(record.EditionID, 10)
		attrs["createdAt"] = strconv.FormatInt(record.CreatedAt, 10)
		attrs["maxSupply"] = strconv.FormatUint(record.MaxSupply, 10)
		attrs["maxTokensPerAddress"] = strconv.FormatUint(record.MaxTokensPerAddress, 10)
		attrs["pricePerToken"] = bigString(record.PricePerToken)
	}
	return &types.Event{Type: EventTypeTokenCreated, Attributes: attrs}
}

// TokenMintedEvent returns the structured payload for a validated mint.
func TokenMintedEvent(tenant [20]byte, editionID uint64, minter [20]byte, quantity uint64, totalMinted uint64) *types.Event {
	return &types.Event{
		Type: EventTypeTokenMinted,
		Attributes: map[string]string{
			"tenant":      hexAddr(tenant),
			"editionId":   strconv.FormatUint(editionID, 10),
			"minter":      hexAddr(minter),
			"quantity":    strconv.FormatUint(quantity, 10),
			"totalMinted": strconv.FormatUint(totalMinted, 10),
		},
	}
}

// FundsRoutedEvent returns the structured payload for a routed payment.
func FundsRoutedEvent(tenant [20]byte, recipient [20]byte, net *big.Int, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFundsRouted,
		Attributes: map[string]string{
			"tenant":    hexAddr(tenant),
			"recipient": hexAddr(recipient),
			"net":       bigString(net),
			"fee":       bigString(fee),
		},
	}
}
