package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/config"
	"github.com/openfolio/openfolio/internal/database"
)

// InitializeDatabases opens the three databases and applies schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg, Log: log}

	// 1. market.db - Per-symbol close history and security metadata
	marketDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/market.db",
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market database: %w", err)
	}
	container.MarketDB = marketDB

	// 2. portfolio.db - Users, holdings, snapshots, cash flows
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/portfolio.db",
		Profile: database.ProfileLedger, // Snapshots and cash flows are the audit trail
		Name:    "portfolio",
	})
	if err != nil {
		marketDB.Close()
		return nil, fmt.Errorf("failed to initialize portfolio database: %w", err)
	}
	container.PortfolioDB = portfolioDB

	// 3. cache.db - Rederivable chart payloads
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		marketDB.Close()
		portfolioDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{marketDB, portfolioDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			marketDB.Close()
			portfolioDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
