package main

import (
	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
)

func newStoreAPICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "store-api",
		Short: "座席台帳を持つ店舗サービスを起動する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), "store-api")
			if err != nil {
				return err
			}

			storeRepo := postgres.NewStoreRepository(rt.db)
			txManager := postgres.NewTxManager(rt.db)

			opts := []application.LedgerOption{
				application.WithMaxAttempts(rt.cfg.Ledger.MaxAttempts),
				application.WithRetryBackoff(rt.cfg.Ledger.RetryBackoff),
			}
			var cache application.AvailabilityCache
			if rt.redis != nil {
				cache = redisinfra.NewAvailabilityCache(rt.redis)
				opts = append(opts, application.WithAvailabilityCache(cache))
			}

			ledger := application.NewSeatLedger(storeRepo, txManager, opts...)
			query := application.NewCapacityQuery(storeRepo, cache)
			stores := application.NewStoreService(storeRepo)

			handler.RegisterStoreRoutes(rt.echo.Group("/api/v1"),
				handler.NewSeatLedgerHandler(ledger),
				handler.NewStoreHandler(stores, query),
			)

			return rt.serve(cmd.Context())
		},
	}
}
