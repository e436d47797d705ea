package app

import (
	"fmt"
	"os"

	"github.com/notepid/guestbook/internal/archive"
	"github.com/notepid/guestbook/internal/config"
	"github.com/notepid/guestbook/internal/db"
	"github.com/notepid/guestbook/internal/deploy"
)

type App struct {
	ConfigPath string
	Config     *config.Config
	DBPath     string
	DB         *db.DB

	Archive *archive.Repo
}

func New(configPath string) (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		return nil, nil, err
	}

	a := &App{
		ConfigPath: configPath,
		Config:     cfg,
		DBPath:     cfg.Paths.Database,
		DB:         database,
		Archive:    archive.NewRepo(database.DB),
	}

	cleanup := func() {
		_ = database.Close()
	}

	return a, cleanup, nil
}

// JournalAddress returns the address the deployment journal holds for a
// recorded deployment, or "" when the journal has no entry.
func (a *App) JournalAddress(d *db.Deployment) string {
	addr, err := deploy.ResolveAddress(a.Config.Contract.Deployments, d.ChainID, d.FutureID)
	if err != nil {
		return ""
	}
	return addr.Hex()
}

// SaveConfig validates and writes cfg, then makes it current.
func (a *App) SaveConfig(cfg *config.Config) error {
	if err := cfg.Save(a.ConfigPath); err != nil {
		return err
	}
	a.Config = cfg
	return nil
}
