package app

import (
	"context"
	"fmt"
	"strconv"

	"event-enricher/internal/common/logging"
	"event-enricher/internal/storage"
	"event-enricher/internal/storage/postgres"
	"event-enricher/internal/storage/sqlite"
)

// storageRegistry lists the database types DATABASE_TYPE may name
func (app *App) storageRegistry() *storage.Registry {
	registry := storage.NewRegistry()

	registry.Register("sqlite", storage.FactoryFunc(func(ctx context.Context) (storage.Store, error) {
		app.Logger.Info("Database: SQLite", logging.String("path", app.Config.DatabasePath))
		return sqlite.NewAdapter(&sqlite.Config{
			DatabasePath: app.Config.DatabasePath,
			PageSize:     app.Config.DistanceBatchSize,
		})
	}))

	postgresFactory := storage.FactoryFunc(func(ctx context.Context) (storage.Store, error) {
		port, err := strconv.Atoi(app.Config.PostgresPort)
		if err != nil {
			return nil, fmt.Errorf("invalid POSTGRES_PORT %q: %w", app.Config.PostgresPort, err)
		}
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.Int("port", port),
			logging.String("database", app.Config.PostgresDB),
		)
		return postgres.NewAdapter(ctx, &postgres.Config{
			Host:     app.Config.PostgresHost,
			Port:     port,
			Database: app.Config.PostgresDB,
			Username: app.Config.PostgresUser,
			Password: app.Config.PostgresPassword,
			SSLMode:  app.Config.PostgresSSLMode,
			PageSize: app.Config.DistanceBatchSize,
		})
	})
	registry.Register("postgres", postgresFactory)
	registry.Register("postgresql", postgresFactory)

	return registry
}

func (app *App) initializeStorage(ctx context.Context) error {
	store, err := app.storageRegistry().Create(ctx, app.Config.DatabaseType)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := store.Health(ctx); err != nil {
		store.Close()
		return fmt.Errorf("storage health check failed: %w", err)
	}

	app.Store = store
	return nil
}
