package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/usecase/tracking"
)

// Reconciler replays every facility's ledger.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]tracking.Reconciliation, error)
}

// StockAuditor periodically compares stored facility stock with the ledger
// and reports drift. It never writes; repairs go through ledgerctl rebuild.
type StockAuditor struct {
	reconciler Reconciler
	schedule   string
	logger     *zap.Logger
	cron       *cron.Cron
}

func NewStockAuditor(reconciler Reconciler, schedule string, logger *zap.Logger) (*StockAuditor, error) {
	if schedule == "" {
		schedule = "@every 10m"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &StockAuditor{
		reconciler: reconciler,
		schedule:   schedule,
		logger:     logger,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := a.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := a.Run(ctx); err != nil {
			a.logger.Error("stock audit failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *StockAuditor) Start() {
	if a == nil {
		return
	}
	a.cron.Start()
	a.logger.Info("stock auditor started", zap.String("schedule", a.schedule))
}

func (a *StockAuditor) Stop(ctx context.Context) error {
	if a == nil {
		return nil
	}
	select {
	case <-a.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run audits every facility once and returns those that drifted.
func (a *StockAuditor) Run(ctx context.Context) ([]tracking.Reconciliation, error) {
	results, err := a.reconciler.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []tracking.Reconciliation
	for _, rec := range results {
		if rec.Consistent() {
			continue
		}
		drifted = append(drifted, rec)
		a.logger.Warn("facility stock drifted from ledger",
			zap.String("facility_id", rec.FacilityID),
			zap.Float64("stored_stock", rec.StoredStock),
			zap.Float64("replayed_stock", rec.ReplayedStock),
			zap.Float64("drift", rec.Drift),
		)
	}
	a.logger.Info("stock audit completed", zap.Int("facilities", len(results)), zap.Int("drifted", len(drifted)))
	return drifted, nil
}
