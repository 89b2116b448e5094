package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perpeditions/config"
	"perpeditions/core/state"
	"perpeditions/native/editions"
	"perpeditions/native/ledger"
	"perpeditions/observability/logging"
	"perpeditions/rpc"
	"perpeditions/storage"
)

// moduleSeed derives the stable identity under which the sale engine is
// granted the mint permission bit on each tenant contract.
const moduleSeed = "perpeditions/editions-module"

func moduleAddress() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(moduleSeed))
	copy(addr[:], digest[12:])
	return addr
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PERPEDITIONS_ENV"))
	logger := logging.Setup("editionsd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = strings.TrimSpace(cfg.Env)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	stateLedger := ledger.NewStateLedger(manager)

	fee, err := cfg.FeeWei()
	if err != nil {
		logger.Error("Invalid protocol fee", slog.Any("error", err))
		os.Exit(1)
	}
	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		logger.Error("Invalid treasury address", slog.Any("error", err))
		os.Exit(1)
	}

	engine := editions.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(stateLedger)
	engine.SetProtocolFee(fee)
	engine.SetTreasury(treasury)

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("Metrics listener stopped", slog.Any("error", err))
			}
		}()
	}

	module := moduleAddress()
	logger.Info("Starting edition sale daemon",
		slog.String("listen", cfg.ListenAddress),
		slog.String("module", common.BytesToAddress(module[:]).Hex()),
		slog.String("treasury", common.BytesToAddress(treasury[:]).Hex()),
		slog.String("protocolFee", fee.String()),
	)

	server := rpc.NewServer(engine, stateLedger, manager, module)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
