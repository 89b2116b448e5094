package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"perpeditions/native/editions"
)

// Config carries the daemon-level settings: where to listen, where state
// lives, and the protocol fee parameters the sale engine is constructed with.
// Per-tenant sale behaviour never lives here; that is ContractConfig, stored
// in state and owned by each tenant.
type Config struct {
	ListenAddress    string `toml:"ListenAddress"`
	MetricsAddress   string `toml:"MetricsAddress"`
	DataDir          string `toml:"DataDir"`
	Env              string `toml:"Env"`
	ProtocolFeeWei   string `toml:"ProtocolFeeWei"`
	ProtocolTreasury string `toml:"ProtocolTreasury"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:    ":8645",
		MetricsAddress:   ":9465",
		DataDir:          "./editionsd-data",
		ProtocolFeeWei:   editions.DefaultProtocolFeeWei.String(),
		ProtocolTreasury: common.Address{}.Hex(),
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the fee and treasury settings parse.
func (c *Config) Validate() error {
	if _, err := c.FeeWei(); err != nil {
		return err
	}
	if _, err := c.TreasuryAddress(); err != nil {
		return err
	}
	return nil
}

// FeeWei parses the configured per-mint-call protocol fee.
func (c *Config) FeeWei() (*big.Int, error) {
	raw := strings.TrimSpace(c.ProtocolFeeWei)
	if raw == "" {
		return new(big.Int).Set(editions.DefaultProtocolFeeWei), nil
	}
	fee, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid ProtocolFeeWei %q", c.ProtocolFeeWei)
	}
	if fee.Sign() < 0 {
		return nil, fmt.Errorf("config: ProtocolFeeWei must not be negative")
	}
	return fee, nil
}

// TreasuryAddress parses the configured protocol treasury address.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	var addr [20]byte
	raw := strings.TrimSpace(c.ProtocolTreasury)
	if raw == "" {
		return addr, nil
	}
	if !common.IsHexAddress(raw) {
		return addr, fmt.Errorf("config: invalid ProtocolTreasury %q", c.ProtocolTreasury)
	}
	copy(addr[:], common.HexToAddress(raw).Bytes())
	return addr, nil
}
