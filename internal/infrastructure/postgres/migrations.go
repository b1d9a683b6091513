package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func newMigrate(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションインスタンス作成エラー: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションを全て適用し、適用後のバージョンを返す
func RunMigrations(db *sql.DB, migrationsPath string) (uint, error) {
	m, err := newMigrate(db, migrationsPath)
	if err != nil {
		return 0, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("マイグレーション実行エラー: %w", err)
	}
	return currentVersion(m)
}

// RollbackMigrations は steps 件分のマイグレーションを戻す
func RollbackMigrations(db *sql.DB, migrationsPath string, steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("ロールバック件数は1以上である必要があります: %d", steps)
	}
	m, err := newMigrate(db, migrationsPath)
	if err != nil {
		return 0, err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("ロールバック実行エラー: %w", err)
	}
	return currentVersion(m)
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("マイグレーションバージョン取得エラー: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("マイグレーション %d が途中で失敗しています", version)
	}
	return version, nil
}
