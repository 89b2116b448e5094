package editions

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"perpeditions/core/events"
	"perpeditions/core/types"
)

// Ledger is the capability surface this module needs from the external
// multi-token contract. The ledger owns token identity, balances, URIs and the
// permission bitmap; the engine only calls out through this interface so tests
// can substitute an in-memory fake.
type Ledger interface {
	IsAdmin(tenant [20]byte, caller [20]byte) (bool, error)
	MintNewEdition(tenant [20]byte, payload []byte) (uint64, error)
	SetTokenURI(tenant [20]byte, editionID uint64, uri string) error
	Transfer(from [20]byte, to [20]byte, amount *big.Int) error
}

type engineState interface {
	EditionsConfigGet(tenant [20]byte) (*ContractConfig, bool, error)
	EditionsConfigPut(tenant [20]byte, cfg *ContractConfig) error
	EditionsRecordGet(tenant [20]byte, editionID uint64) (*EditionRecord, bool, error)
	EditionsRecordPut(tenant [20]byte, record *EditionRecord) error
	EditionsCurrentGet(tenant [20]byte) (uint64, bool, error)
	EditionsCurrentPut(tenant [20]byte, editionID uint64) error
	EditionsCreatedCount(tenant [20]byte) (uint64, error)
	EditionsSetCreatedCount(tenant [20]byte, count uint64) error
	EditionsMintedBy(tenant [20]byte, editionID uint64, addr [20]byte) (uint64, error)
	EditionsSetMintedBy(tenant [20]byte, editionID uint64, addr [20]byte, count uint64) error
}

// Engine wires the perpetual edition sale logic with persistence, the external
// ledger, and event emission. All mutation performed in one call must land
// atomically: the engine stages validation and ledger transfers before any
// state write, and the surrounding execution environment commits or discards
// the staged writes as a unit.
type Engine struct {
	state       engineState
	ledger      Ledger
	emitter     events.Emitter
	nowFn       func() int64
	protocolFee *big.Int
	treasury    [20]byte
}

// NewEngine constructs an edition sale engine with default dependencies. The
// protocol fee starts at DefaultProtocolFeeWei.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		protocolFee: new(big.Int).Set(DefaultProtocolFeeWei),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the external ledger the engine calls out to.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetProtocolFee overrides the fixed per-mint-call protocol fee in wei. A nil
// fee resets it to zero.
func (e *Engine) SetProtocolFee(fee *big.Int) {
	if fee == nil {
		e.protocolFee = big.NewInt(0)
		return
	}
	e.protocolFee = new(big.Int).Set(fee)
}

// ProtocolFee returns a copy of the configured per-mint-call protocol fee.
func (e *Engine) ProtocolFee() *big.Int {
	if e == nil || e.protocolFee == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(e.protocolFee)
}

// SetTreasury configures the address credited with the protocol fee.
func (e *Engine) SetTreasury(addr [20]byte) { e.treasury = addr }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Now returns the engine's current view of time as a unix timestamp.
func (e *Engine) Now() int64 { return e.now() }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func sanitizeConfig(cfg ContractConfig) (*ContractConfig, error) {
	if cfg.WindowDuration < 0 {
		return nil, fmt.Errorf("%w: window duration must not be negative", errInvalidConfig)
	}
	if cfg.TotalTokensCap != nil && cfg.TotalTokensCap.Sign() < 0 {
		return nil, fmt.Errorf("%w: token cap must not be negative", errInvalidConfig)
	}
	clean := cfg.Clone()
	clean.BaseURI = strings.TrimSpace(cfg.BaseURI)
	return clean, nil
}

func sanitizeTerms(terms EditionTerms) (EditionTerms, error) {
	if terms.MaxSupply == 0 {
		return EditionTerms{}, fmt.Errorf("%w: max supply must be positive", errInvalidTerms)
	}
	if terms.MaxTokensPerAddress == 0 {
		return EditionTerms{}, fmt.Errorf("%w: per-address limit must be positive", errInvalidTerms)
	}
	clean := terms
	if terms.PricePerToken == nil {
		clean.PricePerToken = big.NewInt(0)
	} else {
		if terms.PricePerToken.Sign() < 0 {
			return EditionTerms{}, fmt.Errorf("%w: price must not be negative", errInvalidTerms)
		}
		clean.PricePerToken = new(big.Int).Set(terms.PricePerToken)
	}
	return clean, nil
}

// SetContractConfig writes the tenant's sale configuration. The caller must be
// the ledger-recognised owner of the tenant contract; the check is made fresh
// against the ledger on every call and never cached. The write carries no time
// or edition-state restriction and only affects editions created afterwards.
func (e *Engine) SetContractConfig(tenant [20]byte, caller [20]byte, cfg ContractConfig) error {
	if err := e.ready(); err != nil {
		return err
	}
	admin, err := e.ledger.IsAdmin(tenant, caller)
	if err != nil {
		return fmt.Errorf("editions engine: admin lookup: %w", err)
	}
	if !admin {
		return ErrNotContractOwner
	}
	clean, err := sanitizeConfig(cfg)
	if err != nil {
		return err
	}
	if err := e.state.EditionsConfigPut(tenant, clean); err != nil {
		return err
	}
	e.emit(ConfigUpdatedEvent(tenant, clean))
	return nil
}

// ContractConfig returns the tenant's current sale configuration, if any.
func (e *Engine) ContractConfig(tenant [20]byte) (*ContractConfig, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	cfg, ok, err := e.state.EditionsConfigGet(tenant)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg.Clone(), true, nil
}

// CreateToken opens a new edition for the tenant. Creation succeeds only when
// the tenant is configured, the previous edition's window has elapsed, and the
// tenant's lifetime token allowance is not exhausted. The ledger assigns the
// edition identifier and stores the derived display URI; the prior record is
// superseded, not deleted, and stays mintable under its own frozen terms.
func (e *Engine) CreateToken(tenant [20]byte, caller [20]byte, terms EditionTerms, extraData []byte) (*EditionRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.EditionsConfigGet(tenant)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, ErrTenantNotConfigured
	}
	clean, err := sanitizeTerms(terms)
	if err != nil {
		return nil, err
	}
	current, err := e.currentRecord(tenant)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if current.Open(now) {
		return nil, ErrSaleStillActive
	}
	created, err := e.state.EditionsCreatedCount(tenant)
	if err != nil {
		return nil, err
	}
	if !cfg.Unbounded() && cfg.TotalTokensCap.Cmp(new(big.Int).SetUint64(created)) <= 0 {
		return nil, ErrTokenLimitReached
	}
	editionID, err := e.ledger.MintNewEdition(tenant, extraData)
	if err != nil {
		return nil, fmt.Errorf("editions engine: mint new edition: %w", err)
	}
	uri := cfg.BaseURI + strconv.FormatUint(editionID, 10)
	if err := e.ledger.SetTokenURI(tenant, editionID, uri); err != nil {
		return nil, fmt.Errorf("editions engine: set token uri: %w", err)
	}
	record := &EditionRecord{
		EditionID:           editionID,
		CreatedAt:           now,
		WindowDuration:      cfg.WindowDuration,
		MaxSupply:           clean.MaxSupply,
		MaxTokensPerAddress: clean.MaxTokensPerAddress,
		PricePerToken:       clean.PricePerToken,
		TotalMinted:         0,
	}
	if err := e.state.EditionsRecordPut(tenant, record); err != nil {
		return nil, err
	}
	if err := e.state.EditionsCurrentPut(tenant, editionID); err != nil {
		return nil, err
	}
	if err := e.state.EditionsSetCreatedCount(tenant, created+1); err != nil {
		return nil, err
	}
	e.emit(TokenCreatedEvent(tenant, record, uri))
	return record.Clone(), nil
}

// Edition returns the record for the supplied edition id, if one exists.
func (e *Engine) Edition(tenant [20]byte, editionID uint64) (*EditionRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	record, ok, err := e.state.EditionsRecordGet(tenant, editionID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.Clone(), true, nil
}

// CurrentEdition returns the tenant's most recently created record, if any,
// regardless of whether its window is still open.
func (e *Engine) CurrentEdition(tenant [20]byte) (*EditionRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	record, err := e.currentRecord(tenant)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

// MintedBy returns how many tokens of the edition the address has minted.
func (e *Engine) MintedBy(tenant [20]byte, editionID uint64, addr [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.EditionsMintedBy(tenant, editionID, addr)
}

func (e *Engine) currentRecord(tenant [20]byte) (*EditionRecord, error) {
	editionID, ok, err := e.state.EditionsCurrentGet(tenant)
	if err != nil || !ok {
		return nil, err
	}
	record, ok, err := e.state.EditionsRecordGet(tenant, editionID)
	if err != nil || !ok {
		return nil, err
	}
	return record, nil
}

// DebugString returns a textual description of the engine state. Useful for tracing.
func (e *Engine) DebugString() string {
	if e == nil {
		return "editions engine <nil>"
	}
	return fmt.Sprintf("editions engine fee=%s emitter=%T", bigString(e.protocolFee), e.emitter)
}
