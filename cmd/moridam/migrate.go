package main

import (
	"context"
	"fmt"

	"github.com/aderut/moridam/internal/catalog"
	"github.com/aderut/moridam/internal/config"
	"github.com/aderut/moridam/internal/orders/repository"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply catalog and order store migrations",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := catalog.NewSQLiteStore(cfg.Catalog.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.RunMigrations(); err != nil {
				return fmt.Errorf("catalog: %w", err)
			}
			log.Info("catalog migrations applied")

			orders, err := repository.NewPostgresRepository(c.Context, credentials(cfg.Postgres))
			if err != nil {
				return err
			}
			defer orders.Close()
			if err := orders.RunMigrations(); err != nil {
				return fmt.Errorf("orders: %w", err)
			}
			log.Info("order migrations applied")
			return nil
		},
	}
}

func credentials(pg config.PostgresConfig) *repository.Credentials {
	return &repository.Credentials{
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		DBName:   pg.DBName,
		SSLMode:  pg.SSLMode,
	}
}

// openOrders connects the order store. The in-memory store keeps nothing
// across restarts and is meant for local runs.
func openOrders(ctx context.Context, cfg *config.Config, kind string, migrate bool) (repository.OrderRepository, func() error, error) {
	switch kind {
	case "memory":
		return repository.NewMemoryRepository(), func() error { return nil }, nil
	case "postgres":
		repo, err := repository.NewPostgresRepository(ctx, credentials(cfg.Postgres))
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := repo.RunMigrations(); err != nil {
				repo.Close()
				return nil, nil, fmt.Errorf("orders: %w", err)
			}
		}
		return repo, repo.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown order store %q", kind)
}
