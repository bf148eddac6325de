package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/internal/config"
	pgInfra "github.com/fastygo/agritrace/internal/infrastructure/postgres"
	"github.com/fastygo/agritrace/internal/middleware"
	"github.com/fastygo/agritrace/usecase"
	"github.com/fastygo/agritrace/usecase/tracking"
)

// errDrift makes verify exit non-zero after printing its report.
var errDrift = errors.New("stock drift detected")

type ledgerOps interface {
	Reconcile(ctx context.Context, facilityID string) (*tracking.Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]tracking.Reconciliation, error)
	Rebuild(ctx context.Context, facilityID string) (*tracking.Reconciliation, error)
}

// openLedger connects to the store of record; the returned func releases it.
type openLedger func(ctx context.Context) (ledgerOps, func(), error)

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	ledger openLedger
	stderr io.Writer
}

func register(d *usecase.Dispatcher, e *env) error {
	commands := []usecase.Command{
		{Name: "migrate", Usage: "apply pending schema migrations", Handler: e.migrate},
		{Name: "verify", Usage: "replay ledgers and report stock drift [-facility ID]", Handler: e.verify},
		{Name: "rebuild", Usage: "rewrite a facility's stock from its ledger -facility ID", Handler: e.rebuild},
		{Name: "token", Usage: "mint an access token -actor ID -role ROLE [-ttl 24h]", Handler: e.token},
	}
	for _, cmd := range commands {
		if err := d.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func (e *env) migrate(_ context.Context, args []string) (interface{}, error) {
	if err := e.flags("migrate").Parse(args); err != nil {
		return nil, err
	}
	if err := pgInfra.Migrate(e.cfg, e.logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return map[string]string{"status": "migrated"}, nil
}

func (e *env) verify(ctx context.Context, args []string) (interface{}, error) {
	fs := e.flags("verify")
	facilityID := fs.String("facility", "", "facility to verify; all facilities when empty")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ledger, release, err := e.ledger(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var results []tracking.Reconciliation
	if *facilityID != "" {
		rec, err := ledger.Reconcile(ctx, *facilityID)
		if err != nil {
			return nil, err
		}
		results = []tracking.Reconciliation{*rec}
	} else {
		results, err = ledger.ReconcileAll(ctx)
		if err != nil {
			return nil, err
		}
	}

	for _, rec := range results {
		if !rec.Consistent() {
			return results, errDrift
		}
	}
	return results, nil
}

func (e *env) rebuild(ctx context.Context, args []string) (interface{}, error) {
	fs := e.flags("rebuild")
	facilityID := fs.String("facility", "", "facility whose stock is rewritten")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *facilityID == "" {
		return nil, errors.New("rebuild: -facility is required")
	}

	ledger, release, err := e.ledger(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := ledger.Rebuild(ctx, *facilityID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("facility stock rebuilt",
		zap.String("facility_id", rec.FacilityID),
		zap.Float64("previous", rec.StoredStock),
		zap.Float64("stock", rec.ReplayedStock),
	)
	return rec, nil
}

func (e *env) token(_ context.Context, args []string) (interface{}, error) {
	fs := e.flags("token")
	actorID := fs.String("actor", "", "actor id")
	roleName := fs.String("role", "", "producer, plant-operator, warehouse-operator or administrator")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if e.cfg.JWT.Secret == "" {
		return nil, errors.New("token: JWT_SECRET is not set")
	}
	if *actorID == "" {
		return nil, errors.New("token: -actor is required")
	}
	role, err := domain.ParseRole(*roleName)
	if err != nil {
		return nil, err
	}

	signed, err := middleware.IssueToken(e.cfg.JWT.Secret, e.cfg.JWT.Issuer, domain.Actor{ID: *actorID, Role: role}, *ttl)
	if err != nil {
		return nil, err
	}
	return map[string]string{"token": signed, "actor_id": *actorID, "role": string(role)}, nil
}
