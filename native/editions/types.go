package editions

import "math/big"

// PermissionMint is the ledger permission bit a tenant contract must grant this
// module before the ledger will route createToken or mint calls into it. The
// ledger checks the bit at dispatch time; the engine never re-derives it.
const PermissionMint uint64 = 1 << 2

// ContractConfig holds the per-tenant sale configuration. It is overwritten
// wholesale by SetContractConfig and only ever affects editions created after
// the write.
type ContractConfig struct {
	// TotalTokensCap bounds how many editions may ever be created for the
	// tenant. A nil or zero value means unbounded.
	TotalTokensCap *big.Int `json:"totalTokensCap"`
	BaseURI        string   `json:"baseURI"`
	FundsRecipient [20]byte `json:"fundsRecipient"`
	// WindowDuration is the number of seconds an edition blocks creation of a
	// successor after its own creation.
	WindowDuration int64 `json:"windowDuration"`
}

// Clone returns a deep copy of the config.
func (c *ContractConfig) Clone() *ContractConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.TotalTokensCap != nil {
		clone.TotalTokensCap = new(big.Int).Set(c.TotalTokensCap)
	}
	return &clone
}

// Unbounded reports whether the config places no lifetime cap on editions.
func (c *ContractConfig) Unbounded() bool {
	return c == nil || c.TotalTokensCap == nil || c.TotalTokensCap.Sign() == 0
}

// EditionTerms fixes the sale parameters of a single edition. Terms are frozen
// into the EditionRecord at creation and immutable thereafter.
type EditionTerms struct {
	MaxSupply           uint64   `json:"maxSupply"`
	MaxTokensPerAddress uint64   `json:"maxTokensPerAddress"`
	PricePerToken       *big.Int `json:"pricePerToken"`
}

// EditionRecord captures one sale campaign. At most one record per tenant is
// open at a time; superseded records remain addressable by edition id and stay
// mintable under their frozen terms.
type EditionRecord struct {
	EditionID uint64 `json:"editionId"`
	CreatedAt int64  `json:"createdAt"`
	// WindowDuration is snapshotted from the tenant config at creation so a
	// later config change never shortens or extends an existing window.
	WindowDuration      int64    `json:"windowDuration"`
	MaxSupply           uint64   `json:"maxSupply"`
	MaxTokensPerAddress uint64   `json:"maxTokensPerAddress"`
	PricePerToken       *big.Int `json:"pricePerToken"`
	TotalMinted         uint64   `json:"totalMinted"`
}

// Open reports whether the edition still blocks creation of a successor at the
// supplied unix timestamp. Expiry is purely a function of elapsed time; there
// is no explicit close transition.
func (r *EditionRecord) Open(now int64) bool {
	if r == nil {
		return false
	}
	return now < r.CreatedAt+r.WindowDuration
}

// Clone returns a deep copy of the record.
func (r *EditionRecord) Clone() *EditionRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PricePerToken != nil {
		clone.PricePerToken = new(big.Int).Set(r.PricePerToken)
	}
	return &clone
}

// MintReceipt summarises a successful validated mint, including how the
// payment was split between the tenant recipient and the protocol treasury.
type MintReceipt struct {
	Tenant          [20]byte `json:"tenant"`
	EditionID       uint64   `json:"editionId"`
	Minter          [20]byte `json:"minter"`
	Quantity        uint64   `json:"quantity"`
	TotalMinted     uint64   `json:"totalMinted"`
	MintedByAddress uint64   `json:"mintedByAddress"`
	Payment         *big.Int `json:"payment"`
	Fee             *big.Int `json:"fee"`
	Net             *big.Int `json:"net"`
}
