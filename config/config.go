package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"openstay/crypto"
)

// GenesisAccount funds a ledger account at first boot. Amounts are decimal
// strings in base units (native carries nine fractional digits, stable six).
type GenesisAccount struct {
	Address string `toml:"Address"`
	Native  string `toml:"Native"`
	Stable  string `toml:"Stable"`
}

type Config struct {
	RPCAddress         string `toml:"RPCAddress"`
	DataDir            string `toml:"DataDir"`
	Env                string `toml:"Env"`
	LogFile            string `toml:"LogFile"`
	LogMaxSizeMB       int    `toml:"LogMaxSizeMB"`
	LogMaxBackups      int    `toml:"LogMaxBackups"`
	RPCToken           string `toml:"RPCToken"`
	JWTSecret          string `toml:"JWTSecret"`
	RegistryCapacity   uint32 `toml:"RegistryCapacity"`
	RateLimitPerMinute int    `toml:"RateLimitPerMinute"`

	Genesis []GenesisAccount `toml:"genesis"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		RPCAddress:         "127.0.0.1:8645",
		DataDir:            "./openstay-data",
		Env:                "dev",
		RegistryCapacity:   100,
		RateLimitPerMinute: 60,
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for fields the daemon cannot run
// without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if c.RegistryCapacity == 0 {
		return fmt.Errorf("RegistryCapacity must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RateLimitPerMinute must not be negative")
	}
	for i := range c.Genesis {
		if _, _, _, err := c.Genesis[i].Resolve(); err != nil {
			return fmt.Errorf("genesis entry %d: %w", i, err)
		}
	}
	return nil
}

// Resolve parses a genesis entry into its address and balance amounts.
func (g GenesisAccount) Resolve() ([20]byte, *big.Int, *big.Int, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(g.Address))
	if err != nil {
		return [20]byte{}, nil, nil, err
	}
	native, err := parseAmount(g.Native)
	if err != nil {
		return [20]byte{}, nil, nil, fmt.Errorf("native amount: %w", err)
	}
	stable, err := parseAmount(g.Stable)
	if err != nil {
		return [20]byte{}, nil, nil, fmt.Errorf("stable amount: %w", err)
	}
	return addr.Array(), native, stable, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return amount, nil
}
