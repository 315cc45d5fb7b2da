package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"openstay/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8645" {
		t.Fatalf("default rpc address: %s", cfg.RPCAddress)
	}
	if cfg.RegistryCapacity != 100 {
		t.Fatalf("default registry capacity: %d", cfg.RegistryCapacity)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file must be written: %v", err)
	}

	// The written file round-trips.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.RPCAddress != cfg.RPCAddress || again.DataDir != cfg.DataDir {
		t.Fatalf("reloaded config mismatch: %+v", again)
	}
}

func TestLoadParsesGenesis(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.StayPrefix, make([]byte, crypto.AddressLength))
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `RPCAddress = "0.0.0.0:9000"
DataDir = "/tmp/openstay"
RegistryCapacity = 25

[[genesis]]
Address = "` + addr.String() + `"
Native = "1000000000"
Stable = "500"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RegistryCapacity != 25 {
		t.Fatalf("registry capacity: %d", cfg.RegistryCapacity)
	}
	if len(cfg.Genesis) != 1 {
		t.Fatalf("expected one genesis entry, got %d", len(cfg.Genesis))
	}
	gotAddr, native, stable, err := cfg.Genesis[0].Resolve()
	if err != nil {
		t.Fatalf("resolve genesis: %v", err)
	}
	if gotAddr != addr.Array() {
		t.Fatalf("genesis address mismatch")
	}
	if native.Cmp(big.NewInt(1_000_000_000)) != 0 || stable.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("genesis amounts mismatch: %s %s", native, stable)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	broken := defaultConfig()
	broken.RPCAddress = " "
	if err := broken.Validate(); err == nil {
		t.Fatalf("empty rpc address must fail")
	}

	broken = defaultConfig()
	broken.RegistryCapacity = 0
	if err := broken.Validate(); err == nil {
		t.Fatalf("zero capacity must fail")
	}

	broken = defaultConfig()
	broken.Genesis = []GenesisAccount{{Address: "garbage"}}
	if err := broken.Validate(); err == nil {
		t.Fatalf("bad genesis address must fail")
	}
}

func TestGenesisResolveAmounts(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.StayPrefix, make([]byte, crypto.AddressLength))
	entry := GenesisAccount{Address: addr.String()}
	_, native, stable, err := entry.Resolve()
	if err != nil {
		t.Fatalf("resolve with empty amounts: %v", err)
	}
	if native.Sign() != 0 || stable.Sign() != 0 {
		t.Fatalf("empty amounts must resolve to zero")
	}

	entry.Native = "-5"
	if _, _, _, err := entry.Resolve(); err == nil {
		t.Fatalf("negative amount must fail")
	}
	entry.Native = "12.5"
	if _, _, _, err := entry.Resolve(); err == nil {
		t.Fatalf("fractional amount must fail")
	}
}
