package main

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/justchokingaround/vodhub/internal/aggregate"
	"github.com/justchokingaround/vodhub/internal/clipboard"
	"github.com/justchokingaround/vodhub/internal/cms"
	"github.com/justchokingaround/vodhub/internal/config"
	"github.com/justchokingaround/vodhub/internal/database"
	"github.com/justchokingaround/vodhub/internal/gateway"
	"github.com/justchokingaround/vodhub/internal/history"
	"github.com/justchokingaround/vodhub/internal/imagepipe"
	"github.com/justchokingaround/vodhub/internal/kvstore"
	"github.com/justchokingaround/vodhub/internal/metadata"
	"github.com/justchokingaround/vodhub/internal/player"
	"github.com/justchokingaround/vodhub/internal/server"
	"github.com/justchokingaround/vodhub/internal/sources"
)

// application holds every wired component
type application struct {
	gateway   *gateway.Gateway
	sources   *sources.Registry
	cms       *cms.Client
	metadata  *metadata.Resolver
	engine    *aggregate.Engine
	history   *history.Service
	images    *imagepipe.Resolver
	clipboard *clipboard.Service
	player    *player.Launcher

	remoteDB *gorm.DB
	logger   *slog.Logger
}

func newApplication(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*application, error) {
	store := kvstore.NewSQLStore(db)

	var remote sources.RemoteStore
	var remoteDB *gorm.DB
	if cfg.RemoteStore.Path != "" {
		var err error
		remoteDB, err = database.Open(&config.DatabaseConfig{
			Path:           cfg.RemoteStore.Path,
			MaxConnections: 2,
			WALMode:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open remote store: %w", err)
		}
		remote = sources.NewGormRemoteStore(remoteDB)
	}

	gw := gateway.NewFromConfig(&cfg.Gateway, cfg.Advanced.Debug, logger)
	registry := sources.New(store, remote, &cfg.Sources, logger)
	client := cms.NewClient(gw, logger)
	resolver := metadata.New(gw, &cfg.Metadata, store, logger)

	return &application{
		gateway:   gw,
		sources:   registry,
		cms:       client,
		metadata:  resolver,
		engine:    aggregate.New(registry, client, resolver, logger),
		history:   history.NewService(store, cfg.History.MaxEntries),
		images:    imagepipe.NewResolver(&cfg.Images, gw, resolver, logger),
		clipboard: clipboard.NewService(cfg.Advanced.ClipboardCommand, logger),
		player:    player.NewLauncher(&cfg.Player, logger),
		remoteDB:  remoteDB,
		logger:    logger,
	}, nil
}

func (a *application) serverDeps(passphrase string) server.Deps {
	return server.Deps{
		Sources:    a.sources,
		CMS:        a.cms,
		Metadata:   a.metadata,
		Engine:     a.engine,
		History:    a.history,
		Images:     a.images,
		Passphrase: passphrase,
		Logger:     a.logger,
	}
}

// Close releases the remote store connection
func (a *application) Close() {
	if a.remoteDB == nil {
		return
	}
	if err := database.CloseDB(a.remoteDB); err != nil {
		a.logger.Error("failed to close remote store", "error", err)
	}
}
