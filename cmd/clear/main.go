package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fintrack/billmatch-backend/internal/application/service"
	"github.com/fintrack/billmatch-backend/internal/infrastructure/config"
	"github.com/fintrack/billmatch-backend/internal/infrastructure/logging"
	"github.com/fintrack/billmatch-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		dbPath     = flag.String("db", "", "Override database path")
		userID     = flag.String("user", "", "User to run the cycle for")
		dryRun     = flag.Bool("dry-run", false, "Preview what would clear without writing")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *dbPath != "" {
		cfg.Storage.DatabasePath = *dbPath
	}

	logger := logging.NewLoggerWithSystem(cfg.Logging, "clear")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	svc := service.NewClearService(cfg, store, logger)

	ctx := context.Background()
	var cycle *service.CycleResult
	if *dryRun {
		cycle, err = svc.DryRunCycle(ctx, *userID)
	} else {
		cycle, err = svc.RunCycle(ctx, *userID)
	}
	if err != nil {
		logger.Error("clearing cycle failed", "error", err)
		os.Exit(1)
	}

	mode := "clear"
	if *dryRun {
		mode = "dry-run"
	}
	fmt.Printf("%s: %d matched, %d unmatched, %d errored\n",
		mode, cycle.Matched, cycle.Unmatched, cycle.Errored)

	for _, res := range cycle.Results {
		switch {
		case res.Err != nil:
			fmt.Printf("  error  %s: %v\n", res.TransactionID, res.Err)
		case res.BillID == "":
			fmt.Printf("  skip   %s (top confidence %.2f)\n", res.TransactionID, res.Confidence)
		default:
			fmt.Printf("  clear  %s -> bill %s (confidence %.2f)\n",
				res.TransactionID, res.BillID, res.Confidence)
		}
	}
}
