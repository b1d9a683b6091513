package main

import (
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/config"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "データベースのマイグレーションを操作する",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "未適用のマイグレーションを全て適用する",
		RunE: func(*cobra.Command, []string) error {
			return withMigrationDB(func(cfg *config.Config, db *sqlx.DB) error {
				version, err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath)
				if err != nil {
					return err
				}
				logger.Info("マイグレーション完了", zap.Uint("version", version))
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "マイグレーションを指定件数だけ戻す",
		RunE: func(*cobra.Command, []string) error {
			return withMigrationDB(func(cfg *config.Config, db *sqlx.DB) error {
				version, err := postgres.RollbackMigrations(db.DB, cfg.App.MigrationsPath, steps)
				if err != nil {
					return err
				}
				logger.Info("ロールバック完了", zap.Uint("version", version), zap.Int("steps", steps))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "戻す件数")

	cmd.AddCommand(up, down)
	return cmd
}

func withMigrationDB(fn func(cfg *config.Config, db *sqlx.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogger(cfg, "migrate")
	defer func() { _ = logger.Sync() }()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(cfg, db)
}
