package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"perpeditions/native/editions"
	"perpeditions/storage"
)

func testTenant() [20]byte {
	var tenant [20]byte
	tenant[19] = 0x01
	return tenant
}

func TestEditionsConfigRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	tenant := testTenant()

	_, ok, err := manager.EditionsConfigGet(tenant)
	require.NoError(t, err)
	require.False(t, ok)

	var recipient [20]byte
	recipient[19] = 0xAA
	cfg := &editions.ContractConfig{
		TotalTokensCap: big.NewInt(25),
		BaseURI:        "https://test-api.com/",
		FundsRecipient: recipient,
		WindowDuration: 86_400,
	}
	require.NoError(t, manager.EditionsConfigPut(tenant, cfg))
	require.NoError(t, manager.Commit())

	fresh := NewManager(db)
	loaded, ok, err := fresh.EditionsConfigGet(tenant)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(86_400), loaded.WindowDuration)
	require.Equal(t, "https://test-api.com/", loaded.BaseURI)
	require.Equal(t, recipient, loaded.FundsRecipient)
	require.Zero(t, loaded.TotalTokensCap.Cmp(big.NewInt(25)))
}

func TestEditionsRecordRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	tenant := testTenant()

	record := &editions.EditionRecord{
		EditionID:           3,
		CreatedAt:           1_700_000_000,
		WindowDuration:      3_600,
		MaxSupply:           1_000,
		MaxTokensPerAddress: 100,
		PricePerToken:       big.NewInt(10_000_000_000_000_000),
		TotalMinted:         7,
	}
	require.NoError(t, manager.EditionsRecordPut(tenant, record))
	require.NoError(t, manager.EditionsCurrentPut(tenant, 3))
	require.NoError(t, manager.EditionsSetCreatedCount(tenant, 3))
	require.NoError(t, manager.Commit())

	fresh := NewManager(db)
	loaded, ok, err := fresh.EditionsRecordGet(tenant, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record.EditionID, loaded.EditionID)
	require.Equal(t, record.CreatedAt, loaded.CreatedAt)
	require.Equal(t, record.WindowDuration, loaded.WindowDuration)
	require.Equal(t, record.MaxSupply, loaded.MaxSupply)
	require.Equal(t, record.TotalMinted, loaded.TotalMinted)
	require.Zero(t, loaded.PricePerToken.Cmp(record.PricePerToken))

	current, ok, err := fresh.EditionsCurrentGet(tenant)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), current)

	count, err := fresh.EditionsCreatedCount(tenant)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestEditionsMintedByRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	tenant := testTenant()

	var minter [20]byte
	minter[19] = 0x10

	count, err := manager.EditionsMintedBy(tenant, 1, minter)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, manager.EditionsSetMintedBy(tenant, 1, minter, 42))
	require.NoError(t, manager.Commit())

	fresh := NewManager(db)
	count, err = fresh.EditionsMintedBy(tenant, 1, minter)
	require.NoError(t, err)
	require.Equal(t, uint64(42), count)

	// Counters are scoped per edition and per address.
	count, err = fresh.EditionsMintedBy(tenant, 2, minter)
	require.NoError(t, err)
	require.Zero(t, count)

	var other [20]byte
	other[19] = 0x11
	count, err = fresh.EditionsMintedBy(tenant, 1, other)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAccountsRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	addr := []byte{0x01, 0x02}
	account, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, account)

	require.NoError(t, manager.PutAccount(addr, nil))
	account, err = manager.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Zero(t, account.Balance.Sign())

	account.Balance = big.NewInt(1_000)
	account.Nonce = 4
	require.NoError(t, manager.PutAccount(addr, account))
	require.NoError(t, manager.Commit())

	fresh := NewManager(db)
	loaded, err := fresh.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.Balance.Cmp(big.NewInt(1_000)))
	require.Equal(t, uint64(4), loaded.Nonce)
}
