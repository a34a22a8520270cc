package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/tripledger/tripledger/internal/config"
	"github.com/tripledger/tripledger/internal/metrics"
	"github.com/tripledger/tripledger/internal/rates"
	"github.com/tripledger/tripledger/internal/server"
	"github.com/tripledger/tripledger/internal/service"
	"github.com/tripledger/tripledger/internal/storage/sqlite"
	"github.com/tripledger/tripledger/pkg/logging"
)

const serviceName = "tripledger"

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	config.LoadEnv()
	logging.Setup()

	// godotenv runs after gin's init, so GIN_MODE from .env needs a re-apply.
	if mode := config.GetEnv("GIN_MODE", gin.ReleaseMode); mode != gin.Mode() {
		gin.SetMode(mode)
	}

	dbPath := config.GetEnv("DB_PATH", "data/tripledger.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	m := metrics.New(serviceName, version)

	rateSource := rates.New(rates.Options{
		BaseURL: config.GetEnv("RATES_BASE_URL", ""),
		TTL:     config.GetEnvDuration("RATES_TTL", rates.DefaultTTL),
		OnFetch: m.ObserveRateLookup,
	})

	svcs := server.Services{
		Trips:    service.NewTripService(store),
		Expenses: service.NewExpenseService(store, rateSource),
		Ledger:   service.NewLedger(store, rateSource),
	}
	router := server.NewRouter(svcs, m, serviceName, version)

	if err := server.Run(server.DefaultConfig(serviceName, "8080"), router); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
