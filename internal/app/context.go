package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"goalline/internal/config"
	"goalline/internal/db"
	"goalline/internal/engine"
	"goalline/internal/logging"
	"goalline/internal/migrate"
)

// Overrides carries command-line values that win over goalline.yml and the environment.
type Overrides struct {
	Timezone string
	Editor   string
	LogLevel string
}

// Workspace is an opened goalline directory: config resolved, database migrated.
type Workspace struct {
	Root   string
	Config *config.Config
	DB     *sql.DB
	Log    *zap.Logger
	Engine engine.Engine
}

// Open resolves the config of root, opens and migrates its database and builds an engine.
func Open(ctx context.Context, root string, o Overrides) (*Workspace, error) {
	cfg, err := ResolveConfig(root, o)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	dbCfg := db.Config{Workspace: root, Path: databasePath(root, cfg.Database.Path)}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	eng, err := engine.New(conn, cfg, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Debug("workspace opened", zap.String("root", root), zap.String("database", db.Path(dbCfg)))
	return &Workspace{Root: root, Config: cfg, DB: conn, Log: log, Engine: eng}, nil
}

// ResolveConfig loads goalline.yml and applies o on top, revalidating the result.
func ResolveConfig(root string, o Overrides) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if o.Timezone != "" {
		cfg.Editor.Timezone = o.Timezone
	}
	if o.Editor != "" {
		cfg.Editor.Command = o.Editor
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func databasePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if root == "" {
		root = "."
	}
	return filepath.Join(root, p)
}

func (w *Workspace) Close() error {
	if w == nil {
		return nil
	}
	_ = w.Log.Sync()
	return w.DB.Close()
}
