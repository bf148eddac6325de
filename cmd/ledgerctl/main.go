// Command ledgerctl runs operator maintenance against the ledger database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/fastygo/agritrace/internal/config"
	pgInfra "github.com/fastygo/agritrace/internal/infrastructure/postgres"
	"github.com/fastygo/agritrace/pkg/logger"
	"github.com/fastygo/agritrace/repository/postgres"
	"github.com/fastygo/agritrace/usecase"
	"github.com/fastygo/agritrace/usecase/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.Logger.Level, Encoding: "console"})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	dispatcher := usecase.NewDispatcher()
	e := &env{
		cfg:    cfg,
		logger: zapLogger,
		ledger: postgresLedger(cfg, zapLogger),
		stderr: os.Stderr,
	}
	if err := register(dispatcher, e); err != nil {
		zapLogger.Fatal("command registration failed", zap.Error(err))
	}

	if len(os.Args) < 2 {
		usage(dispatcher)
		os.Exit(2)
	}

	result, err := dispatcher.Execute(context.Background(), os.Args[1], os.Args[2:])
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	}
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrUnknownCommand):
		usage(dispatcher)
		os.Exit(2)
	case errors.Is(err, errDrift):
		zapLogger.Warn("ledger verification found drift; run ledgerctl rebuild -facility ID")
		os.Exit(1)
	default:
		zapLogger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func postgresLedger(cfg *config.Config, zapLogger *zap.Logger) openLedger {
	return func(ctx context.Context) (ledgerOps, func(), error) {
		pool, err := pgInfra.NewPool(ctx, cfg.AppName+"-ledgerctl", cfg.Database, zapLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		ledger := tracking.New(postgres.NewStore(pool), cfg.Ledger.Policy(), zapLogger)
		return ledger, func() { pgInfra.Close(pool, zapLogger) }, nil
	}
}

func usage(d *usecase.Dispatcher) {
	fmt.Fprintln(os.Stderr, "usage: ledgerctl <command> [flags]")
	for _, cmd := range d.Commands() {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.Name, cmd.Usage)
	}
}
