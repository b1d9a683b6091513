package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/config"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:           "seatctl",
		Short:         "店舗の座席台帳と予約を扱うサービス",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	setupFlags()
	rootCmd.AddCommand(newStoreAPICommand(), newBookingAPICommand(), newMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupFlags() {
	config.ApplyDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "設定ファイルのパス（省略時は環境変数のみ）")
	flags.String("port", viper.GetString("server.port"), "HTTP の待ち受けポート")
	flags.String("env", viper.GetString("app.env"), "実行環境 (development|production)")
	flags.String("migrations", viper.GetString("app.migrations_path"), "マイグレーションファイルのディレクトリ")

	bindFlag(flags, "server.port", "port")
	bindFlag(flags, "app.env", "env")
	bindFlag(flags, "app.migrations_path", "migrations")
}

func bindFlag(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("フラグ %s のバインドに失敗: %v", name, err))
	}
}

// loadConfig は .env と設定ファイルを読み込み、検証済みの設定を返す
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
			}
		}
	}

	cfg := config.FromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	return cfg, nil
}

// initLogger はサービス名付きのロガーを既定のロガーにする
func initLogger(cfg *config.Config, service string) {
	logger.Set(logger.NewServiceLogger(cfg.App.Env, service, cfg.App.Version))
}
