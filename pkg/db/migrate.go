package db

import (
	"errors"
	"os"
	"path/filepath"

	"delivery-marketplace/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrate applies the SQL files under Database.MigrationsPath. A relative
// path is resolved against the working directory.
func Migrate(cfg *config.Config) error {
	if !cfg.Database.AutoMigrate {
		zap.L().Info("[DB] Auto migration disabled")
		return nil
	}

	path := cfg.Database.MigrationsPath
	if !filepath.IsAbs(path) {
		cwd, _ := os.Getwd()
		path = filepath.Join(cwd, path)
	}

	m, err := migrate.New("file://"+path, cfg.Database.URL)
	if err != nil {
		zap.L().Error("[DB] Migration init error", zap.String("path", path), zap.Error(err))
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			zap.L().Info("[DB] No migrations to apply")
			return nil
		}
		zap.L().Error("[DB] Migration up error", zap.Error(err))
		return err
	}

	version, _, _ := m.Version()
	zap.L().Info("[DB] Migrations applied", zap.Uint("version", version))

	return nil
}
