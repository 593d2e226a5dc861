package mteam

import (
	"context"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/governance/memstore"
	"kyri56xcaesar/marathon-proj/internal/logger"
	"kyri56xcaesar/marathon-proj/internal/pgstore"

	"go.uber.org/zap"
)

// mustOpenStore connects the configured store. STORE=memory keeps all state
// in process, which is only useful for local runs.
func mustOpenStore(ctx context.Context, log *zap.Logger) (governance.Store, func()) {
	if cfg.Store == "memory" {
		logger.Warn("using the in-memory store, state is lost on exit")
		return memstore.New(), func() {}
	}

	pool, err := pgstore.Connect(ctx, cfg.DatabaseURL(), int32(cfg.DBMaxConns), time.Duration(cfg.DBWaitSecond)*time.Second, log)
	if err != nil {
		logger.Fatalf("could not connect to the database: %v", err)
	}

	// apply init sql script
	logger.Info("executing initialization script...")
	if err := pgstore.ApplySchema(ctx, pool, cfg.InitSQLPath); err != nil {
		logger.Fatalf("failed to apply the schema: %v", err)
	}

	return pgstore.New(pool), pool.Close
}
