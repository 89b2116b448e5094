// Package ledger provides an in-process reference implementation of the
// multi-token ledger the edition sale engine plugs into. It models the pieces
// the engine interacts with: contract ownership, the operator permission
// bitmap, token identities with URIs, and payment balances. Deployments that
// target a real external ledger substitute their own editions.Ledger
// implementation; this one backs the daemon and integration-style tests.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"perpeditions/core/types"
)

var (
	// ErrContractNotRegistered is returned when a tenant contract is unknown.
	ErrContractNotRegistered = errors.New("ledger: contract not registered")
	// ErrInsufficientBalance is returned when a transfer exceeds the payer's funds.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

var (
	ownerPrefix      = []byte("ledger/owner/")
	permissionPrefix = []byte("ledger/permission/")
	nextTokenPrefix  = []byte("ledger/next-token/")
	tokenURIPrefix   = []byte("ledger/token-uri/")
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// StateLedger persists all ledger data through the shared state manager so
// that ledger-side mutation and engine-side mutation commit or roll back as
// one unit, matching the transactional model of the real deployment.
type StateLedger struct {
	st ledgerState
}

// NewStateLedger wraps the supplied state backend.
func NewStateLedger(st ledgerState) *StateLedger {
	return &StateLedger{st: st}
}

func hashKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func tokenIDBytes(editionID uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(editionID)
		editionID >>= 8
	}
	return buf
}

// RegisterContract records the owner of a tenant contract.
func (l *StateLedger) RegisterContract(tenant [20]byte, owner [20]byte) error {
	return l.st.KVPut(hashKey(ownerPrefix, tenant[:]), owner)
}

// Owner returns the registered owner of the tenant contract.
func (l *StateLedger) Owner(tenant [20]byte) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := l.st.KVGet(hashKey(ownerPrefix, tenant[:]), &owner)
	if err != nil || !ok {
		return owner, false, err
	}
	return owner, true, nil
}

// IsAdmin reports whether caller is the registered owner of the tenant
// contract. The answer is read fresh from state on every call.
func (l *StateLedger) IsAdmin(tenant [20]byte, caller [20]byte) (bool, error) {
	owner, ok, err := l.Owner(tenant)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrContractNotRegistered
	}
	return owner == caller, nil
}

// SetPermission assigns the full permission bitmap for an operator on a tenant
// contract.
func (l *StateLedger) SetPermission(tenant [20]byte, operator [20]byte, bits uint64) error {
	return l.st.KVPut(hashKey(permissionPrefix, tenant[:], operator[:]), bits)
}

// AddPermission ORs the supplied bits into the operator's bitmap.
func (l *StateLedger) AddPermission(tenant [20]byte, operator [20]byte, bits uint64) error {
	current, err := l.Permissions(tenant, operator)
	if err != nil {
		return err
	}
	return l.SetPermission(tenant, operator, current|bits)
}

// Permissions returns the operator's permission bitmap for the tenant.
func (l *StateLedger) Permissions(tenant [20]byte, operator [20]byte) (uint64, error) {
	var bits uint64
	ok, err := l.st.KVGet(hashKey(permissionPrefix, tenant[:], operator[:]), &bits)
	if err != nil || !ok {
		return 0, err
	}
	return bits, nil
}

// HasPermission reports whether every supplied bit is set for the operator.
// The ledger evaluates this at dispatch time before routing a call into the
// sale engine.
func (l *StateLedger) HasPermission(tenant [20]byte, operator [20]byte, bits uint64) (bool, error) {
	current, err := l.Permissions(tenant, operator)
	if err != nil {
		return false, err
	}
	return current&bits == bits, nil
}

// MintNewEdition allocates the next token identifier for the tenant contract.
// Identifiers start at 1 and increase monotonically per tenant.
func (l *StateLedger) MintNewEdition(tenant [20]byte, payload []byte) (uint64, error) {
	if _, ok, err := l.Owner(tenant); err != nil {
		return 0, err
	} else if !ok {
		return 0, ErrContractNotRegistered
	}
	key := hashKey(nextTokenPrefix, tenant[:])
	var next uint64
	ok, err := l.st.KVGet(key, &next)
	if err != nil {
		return 0, err
	}
	if !ok || next == 0 {
		next = 1
	}
	if err := l.st.KVPut(key, next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// NextEditionID returns the identifier the next MintNewEdition call will assign.
func (l *StateLedger) NextEditionID(tenant [20]byte) (uint64, error) {
	var next uint64
	ok, err := l.st.KVGet(hashKey(nextTokenPrefix, tenant[:]), &next)
	if err != nil {
		return 0, err
	}
	if !ok || next == 0 {
		return 1, nil
	}
	return next, nil
}

// SetTokenURI stores the display URI for a minted token identifier.
func (l *StateLedger) SetTokenURI(tenant [20]byte, editionID uint64, uri string) error {
	return l.st.KVPut(hashKey(tokenURIPrefix, tenant[:], tokenIDBytes(editionID)), uri)
}

// TokenURI returns the stored display URI for a token identifier.
func (l *StateLedger) TokenURI(tenant [20]byte, editionID uint64) (string, error) {
	var uri string
	ok, err := l.st.KVGet(hashKey(tokenURIPrefix, tenant[:], tokenIDBytes(editionID)), &uri)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("ledger: no uri for token %d", editionID)
	}
	return uri, nil
}

// Transfer moves amount from one account to another, failing when the payer
// cannot cover it.
func (l *StateLedger) Transfer(from [20]byte, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	payer, err := l.st.GetAccount(from[:])
	if err != nil {
		return err
	}
	payer = ensureAccount(payer)
	if payer.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer must not load the account twice; the second write-back
	// would overwrite the debit and net the account a credit.
	if from == to {
		return nil
	}
	payee, err := l.st.GetAccount(to[:])
	if err != nil {
		return err
	}
	payee = ensureAccount(payee)
	payer.Balance = new(big.Int).Sub(payer.Balance, amount)
	payee.Balance = new(big.Int).Add(payee.Balance, amount)
	if err := l.st.PutAccount(from[:], payer); err != nil {
		return err
	}
	return l.st.PutAccount(to[:], payee)
}

// Credit adds amount to an account balance. Used to seed balances in tests and
// development deployments; the production ledger funds accounts on its own.
func (l *StateLedger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	account, err := l.st.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = ensureAccount(account)
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return l.st.PutAccount(addr[:], account)
}

// BalanceOf returns the current balance of an account.
func (l *StateLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	account, err := l.st.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if account == nil || account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

func ensureAccount(account *types.Account) *types.Account {
	if account == nil {
		return types.NewAccount()
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account
}
