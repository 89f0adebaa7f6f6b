// Command resonate runs the listening-history sync and live-insights API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nratajik/resonate/internal/auth"
	"github.com/nratajik/resonate/internal/config"
	"github.com/nratajik/resonate/internal/db"
	"github.com/nratajik/resonate/internal/insights"
	"github.com/nratajik/resonate/internal/logging"
	"github.com/nratajik/resonate/internal/spotify"
	"github.com/nratajik/resonate/internal/sync"
	"github.com/nratajik/resonate/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "resonate.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	api := spotify.NewClient()
	provider := auth.NewProvider(database.Tokens(), cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	syncSvc := sync.New(api, provider, sync.NewDBStore(database), logger)
	insightsSvc := insights.New(api, provider, database.Events(), logger)

	server := web.NewServer(web.ServerConfig{
		Addr:         cfg.Server.Addr,
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURI:  cfg.Spotify.RedirectURI,
	}, database, provider, syncSvc, insightsSvc, logger)

	return server.Run()
}
