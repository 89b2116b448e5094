package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"perpeditions/native/editions"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, ":9465", cfg.MetricsAddress)
	require.Equal(t, "./editionsd-data", cfg.DataDir)

	fee, err := cfg.FeeWei()
	require.NoError(t, err)
	require.Zero(t, fee.Cmp(editions.DefaultProtocolFeeWei))

	treasury, err := cfg.TreasuryAddress()
	require.NoError(t, err)
	require.Equal(t, [20]byte{}, treasury)

	// The default file should be on disk and loadable on the next start.
	_, err = os.Stat(path)
	require.NoError(t, err)
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, again.ListenAddress)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `ListenAddress = ":9000"
MetricsAddress = ":9100"
DataDir = "/tmp/editionsd"
Env = "production"
ProtocolFeeWei = "1000000000000"
ProtocolTreasury = "0x00000000000000000000000000000000000000Fe"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, "production", cfg.Env)

	fee, err := cfg.FeeWei()
	require.NoError(t, err)
	require.Equal(t, "1000000000000", fee.String())

	treasury, err := cfg.TreasuryAddress()
	require.NoError(t, err)
	require.Equal(t, byte(0xFE), treasury[19])
}

func TestLoadRejectsBadFee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`ProtocolFeeWei = "not-a-number"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`ProtocolFeeWei = "-1"`), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadTreasury(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`ProtocolTreasury = "0x1234"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEmptyFeeFallsBackToDefault(t *testing.T) {
	cfg := &Config{}
	fee, err := cfg.FeeWei()
	require.NoError(t, err)
	require.Zero(t, fee.Cmp(editions.DefaultProtocolFeeWei))
}
