package commands

import (
	"fmt"

	"github.com/pearsonlabs/factorpipe/internal/pipeline"
	"github.com/pearsonlabs/factorpipe/internal/rules"
	"github.com/pearsonlabs/factorpipe/internal/store"
	"github.com/pearsonlabs/factorpipe/internal/transform"
	"github.com/pearsonlabs/factorpipe/pkg/config"
	"github.com/pearsonlabs/factorpipe/pkg/database"
	"github.com/pearsonlabs/factorpipe/pkg/logger"
)

// stack bundles the collaborators every command needs. Each command builds
// one, uses what it needs, and closes it on exit.
type stack struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	atomics  *store.AtomicRepository
	factors  *store.FactorRepository
	audit    *store.AuditRepository
	pipeline *pipeline.Pipeline
}

func buildStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	schema := cfg.Database.Schema
	atomics := store.NewAtomicRepository(db.Pool, schema)
	factors := store.NewFactorRepository(db.Pool, schema, cfg.Pipeline.WriteRatePerSec, cfg.Pipeline.WriteBatchSize)
	audit := store.NewAuditRepository(db.Pool, schema)

	engine := transform.New(transform.Config{
		Rules:   rulesConfig(cfg),
		Workers: cfg.Pipeline.Workers,
	}, log)

	return &stack{
		cfg:      cfg,
		log:      log,
		db:       db,
		atomics:  atomics,
		factors:  factors,
		audit:    audit,
		pipeline: pipeline.New(atomics, factors, audit, engine, log),
	}, nil
}

func (s *stack) close() {
	s.db.Close()
}

func rulesConfig(cfg *config.Config) rules.Config {
	return rules.Config{
		SoftStaleDays:     cfg.Pipeline.SoftStaleDays,
		HardExpiryDays:    cfg.Pipeline.HardExpiryDays,
		PriceFallbackDays: cfg.Pipeline.PriceFallbackDays,
		PriceStaleDays:    cfg.Pipeline.PriceStaleDays,
		CapMinSample:      cfg.Pipeline.CapMinSample,
		CapPercentile:     cfg.Pipeline.CapPercentile,
		CapFixed:          cfg.Pipeline.CapFixed,
	}
}
