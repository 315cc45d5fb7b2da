package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"openstay/config"
	"openstay/core/events"
	"openstay/core/state"
	"openstay/core/types"
	"openstay/native/lodging"
	"openstay/observability/logging"
	"openstay/rpc"
	"openstay/storage"
)

const genesisAppliedKey = "openstay/genesis-applied"

// logEmitter forwards committed ledger events to the structured logger.
type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(evt events.Event) {
	type eventPayload interface {
		Event() *types.Event
	}
	payload, ok := evt.(eventPayload)
	if !ok || payload.Event() == nil {
		return
	}
	attrs := make([]any, 0, len(payload.Event().Attributes)*2)
	for k, v := range payload.Event().Attributes {
		attrs = append(attrs, k, v)
	}
	e.log.Info(payload.Event().Type, attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("OPENSTAY_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Env
	}

	logger := logging.Setup("openstayd", env, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	if err := applyGenesis(db, manager, cfg, logger); err != nil {
		logger.Error("Failed to apply genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}
	if err := ensureRegistry(manager, cfg.RegistryCapacity, logger); err != nil {
		logger.Error("Failed to initialize listing registry", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(manager, rpc.Options{
		Logger:        logger,
		AuthToken:     cfg.RPCToken,
		JWTSecret:     cfg.JWTSecret,
		RatePerMinute: cfg.RateLimitPerMinute,
		Emitter:       logEmitter{log: logger},
	})
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyGenesis funds the configured accounts exactly once per data
// directory.
func applyGenesis(db storage.Database, manager *state.Manager, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Genesis) == 0 {
		return nil
	}
	applied, err := db.Has([]byte(genesisAppliedKey))
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	err = manager.Transition(func(tx *state.Manager) error {
		for _, entry := range cfg.Genesis {
			addr, native, stable, err := entry.Resolve()
			if err != nil {
				return err
			}
			if native.Sign() > 0 {
				if err := tx.Credit(addr, lodging.CurrencyNative, native); err != nil {
					return err
				}
			}
			if stable.Sign() > 0 {
				if err := tx.Credit(addr, lodging.CurrencyStable, stable); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := db.Put([]byte(genesisAppliedKey), []byte{1}); err != nil {
		return err
	}
	logger.Info("applied genesis allocations", "accounts", len(cfg.Genesis))
	return nil
}

// ensureRegistry creates the listing registry on first boot and tolerates an
// existing one on restart.
func ensureRegistry(manager *state.Manager, capacity uint32, logger *slog.Logger) error {
	err := manager.Transition(func(tx *state.Manager) error {
		eng := lodging.NewEngine()
		eng.SetState(tx)
		_, err := eng.InitializeRegistry(capacity)
		return err
	})
	if err != nil {
		if errors.Is(err, lodging.ErrAlreadyInitialized) {
			return nil
		}
		return err
	}
	logger.Info("initialized listing registry", "capacity", capacity)
	return nil
}
