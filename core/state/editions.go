package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"perpeditions/native/editions"
)

var (
	editionConfigPrefix  = []byte("editions/config/")
	editionRecordPrefix  = []byte("editions/record/")
	editionCurrentPrefix = []byte("editions/current/")
	editionCountPrefix   = []byte("editions/count/")
	editionMintedPrefix  = []byte("editions/minted/")
)

func editionConfigKey(tenant [20]byte) []byte {
	buf := make([]byte, len(editionConfigPrefix)+len(tenant))
	copy(buf, editionConfigPrefix)
	copy(buf[len(editionConfigPrefix):], tenant[:])
	return ethcrypto.Keccak256(buf)
}

func editionRecordKey(tenant [20]byte, editionID uint64) []byte {
	buf := make([]byte, len(editionRecordPrefix)+len(tenant)+8)
	copy(buf, editionRecordPrefix)
	copy(buf[len(editionRecordPrefix):], tenant[:])
	binary.BigEndian.PutUint64(buf[len(editionRecordPrefix)+len(tenant):], editionID)
	return ethcrypto.Keccak256(buf)
}

func editionCurrentKey(tenant [20]byte) []byte {
	buf := make([]byte, len(editionCurrentPrefix)+len(tenant))
	copy(buf, editionCurrentPrefix)
	copy(buf[len(editionCurrentPrefix):], tenant[:])
	return ethcrypto.Keccak256(buf)
}

func editionCountKey(tenant [20]byte) []byte {
	buf := make([]byte, len(editionCountPrefix)+len(tenant))
	copy(buf, editionCountPrefix)
	copy(buf[len(editionCountPrefix):], tenant[:])
	return ethcrypto.Keccak256(buf)
}

func editionMintedKey(tenant [20]byte, editionID uint64, addr [20]byte) []byte {
	buf := make([]byte, len(editionMintedPrefix)+len(tenant)+8+len(addr))
	copy(buf, editionMintedPrefix)
	offset := len(editionMintedPrefix)
	copy(buf[offset:], tenant[:])
	offset += len(tenant)
	binary.BigEndian.PutUint64(buf[offset:], editionID)
	offset += 8
	copy(buf[offset:], addr[:])
	return ethcrypto.Keccak256(buf)
}

type storedContractConfig struct {
	TotalTokensCap *big.Int
	BaseURI        string
	FundsRecipient [20]byte
	WindowDuration *big.Int
}

func newStoredContractConfig(cfg *editions.ContractConfig) *storedContractConfig {
	if cfg == nil {
		return nil
	}
	tokenCap := big.NewInt(0)
	if cfg.TotalTokensCap != nil {
		tokenCap = new(big.Int).Set(cfg.TotalTokensCap)
	}
	return &storedContractConfig{
		TotalTokensCap: tokenCap,
		BaseURI:        cfg.BaseURI,
		FundsRecipient: cfg.FundsRecipient,
		WindowDuration: big.NewInt(cfg.WindowDuration),
	}
}

func (s *storedContractConfig) toConfig() (*editions.ContractConfig, error) {
	if s == nil {
		return nil, fmt.Errorf("editions: nil config storage record")
	}
	cfg := &editions.ContractConfig{
		TotalTokensCap: big.NewInt(0),
		BaseURI:        s.BaseURI,
		FundsRecipient: s.FundsRecipient,
	}
	if s.TotalTokensCap != nil {
		cfg.TotalTokensCap = new(big.Int).Set(s.TotalTokensCap)
	}
	if s.WindowDuration != nil {
		cfg.WindowDuration = s.WindowDuration.Int64()
	}
	return cfg, nil
}

type storedEditionRecord struct {
	EditionID           uint64
	CreatedAt           *big.Int
	WindowDuration      *big.Int
	MaxSupply           uint64
	MaxTokensPerAddress uint64
	PricePerToken       *big.Int
	TotalMinted         uint64
}

func newStoredEditionRecord(record *editions.EditionRecord) *storedEditionRecord {
	if record == nil {
		return nil
	}
	price := big.NewInt(0)
	if record.PricePerToken != nil {
		price = new(big.Int).Set(record.PricePerToken)
	}
	return &storedEditionRecord{
		EditionID:           record.EditionID,
		CreatedAt:           big.NewInt(record.CreatedAt),
		WindowDuration:      big.NewInt(record.WindowDuration),
		MaxSupply:           record.MaxSupply,
		MaxTokensPerAddress: record.MaxTokensPerAddress,
		PricePerToken:       price,
		TotalMinted:         record.TotalMinted,
	}
}

func (s *storedEditionRecord) toRecord() (*editions.EditionRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("editions: nil record storage record")
	}
	record := &editions.EditionRecord{
		EditionID:           s.EditionID,
		MaxSupply:           s.MaxSupply,
		MaxTokensPerAddress: s.MaxTokensPerAddress,
		PricePerToken:       big.NewInt(0),
		TotalMinted:         s.TotalMinted,
	}
	if s.CreatedAt != nil {
		record.CreatedAt = s.CreatedAt.Int64()
	}
	if s.WindowDuration != nil {
		record.WindowDuration = s.WindowDuration.Int64()
	}
	if s.PricePerToken != nil {
		record.PricePerToken = new(big.Int).Set(s.PricePerToken)
	}
	return record, nil
}

// EditionsConfigGet loads the tenant's sale configuration.
func (m *Manager) EditionsConfigGet(tenant [20]byte) (*editions.ContractConfig, bool, error) {
	var stored storedContractConfig
	ok, err := m.KVGet(editionConfigKey(tenant), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	cfg, err := stored.toConfig()
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// EditionsConfigPut stages the tenant's sale configuration, overwriting any
// previous value wholesale.
func (m *Manager) EditionsConfigPut(tenant [20]byte, cfg *editions.ContractConfig) error {
	stored := newStoredContractConfig(cfg)
	if stored == nil {
		return fmt.Errorf("editions: nil config")
	}
	return m.KVPut(editionConfigKey(tenant), stored)
}

// EditionsRecordGet loads the record for the supplied tenant and edition id.
func (m *Manager) EditionsRecordGet(tenant [20]byte, editionID uint64) (*editions.EditionRecord, bool, error) {
	var stored storedEditionRecord
	ok, err := m.KVGet(editionRecordKey(tenant, editionID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := stored.toRecord()
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// EditionsRecordPut stages the edition record under its own id. Superseded
// records are never deleted; each stays addressable for historical mints.
func (m *Manager) EditionsRecordPut(tenant [20]byte, record *editions.EditionRecord) error {
	stored := newStoredEditionRecord(record)
	if stored == nil {
		return fmt.Errorf("editions: nil record")
	}
	return m.KVPut(editionRecordKey(tenant, record.EditionID), stored)
}

// EditionsCurrentGet returns the tenant's most recently created edition id.
func (m *Manager) EditionsCurrentGet(tenant [20]byte) (uint64, bool, error) {
	var editionID uint64
	ok, err := m.KVGet(editionCurrentKey(tenant), &editionID)
	if err != nil || !ok {
		return 0, false, err
	}
	return editionID, true, nil
}

// EditionsCurrentPut stages the tenant's current edition pointer.
func (m *Manager) EditionsCurrentPut(tenant [20]byte, editionID uint64) error {
	return m.KVPut(editionCurrentKey(tenant), editionID)
}

// EditionsCreatedCount returns how many editions were ever created for the tenant.
func (m *Manager) EditionsCreatedCount(tenant [20]byte) (uint64, error) {
	var count uint64
	ok, err := m.KVGet(editionCountKey(tenant), &count)
	if err != nil || !ok {
		return 0, err
	}
	return count, nil
}

// EditionsSetCreatedCount stages the tenant's lifetime edition counter.
func (m *Manager) EditionsSetCreatedCount(tenant [20]byte, count uint64) error {
	return m.KVPut(editionCountKey(tenant), count)
}

// EditionsMintedBy returns the per-address mint counter for an edition.
func (m *Manager) EditionsMintedBy(tenant [20]byte, editionID uint64, addr [20]byte) (uint64, error) {
	var count uint64
	ok, err := m.KVGet(editionMintedKey(tenant, editionID, addr), &count)
	if err != nil || !ok {
		return 0, err
	}
	return count, nil
}

// EditionsSetMintedBy stages the per-address mint counter for an edition.
func (m *Manager) EditionsSetMintedBy(tenant [20]byte, editionID uint64, addr [20]byte, count uint64) error {
	return m.KVPut(editionMintedKey(tenant, editionID, addr), count)
}
