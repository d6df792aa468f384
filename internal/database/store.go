package database

import (
	"context"
	"fmt"

	"github.com/deppfellow/tourbook/internal/config"
	loggerConfig "github.com/deppfellow/tourbook/internal/logger"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/rs/zerolog"
)

// OpenStore connects the backend selected by cfg.Database.Driver. The
// returned Database is non-nil only for postgres.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (store.Store, *Database, error) {
	switch cfg.Database.Driver {
	case store.DriverMongo:
		client, err := ConnectMongo(ctx, cfg.Database.Mongo, logger)
		if err != nil {
			return nil, nil, err
		}
		return store.NewMongoStore(client, cfg.Database.Mongo.Name), nil, nil

	case store.DriverPostgres:
		db, err := New(ctx, cfg, logger, loggerService)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(db.Pool), db, nil

	case store.DriverMemory:
		logger.Warn().Msg("using the in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
