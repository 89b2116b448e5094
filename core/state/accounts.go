package state

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"perpeditions/core/types"
)

var accountPrefix = []byte("accounts/")

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

type storedAccount struct {
	Balance *big.Int
	Nonce   uint64
}

// GetAccount loads the account stored under addr, or nil when absent.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	account := types.NewAccount()
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	account.Nonce = stored.Nonce
	return account, nil
}

// PutAccount stages the account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	stored := storedAccount{Balance: big.NewInt(0)}
	if account != nil {
		if account.Balance != nil {
			stored.Balance = new(big.Int).Set(account.Balance)
		}
		stored.Nonce = account.Nonce
	}
	return m.KVPut(accountKey(addr), &stored)
}
