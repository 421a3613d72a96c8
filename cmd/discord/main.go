package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/citron/internal/cache"
	"github.com/keshon/citron/internal/config"
	"github.com/keshon/citron/internal/discord"
	"github.com/keshon/citron/internal/imagesearch"
	"github.com/keshon/citron/internal/logging"
	"github.com/keshon/citron/internal/music/source_resolver"
	"github.com/keshon/citron/internal/music/sources"
	"github.com/keshon/citron/internal/music/sources/drive"
	"github.com/keshon/citron/internal/music/sources/youtube"
	"github.com/keshon/citron/internal/profile"
	"github.com/keshon/citron/internal/storage"
)

const appName = "citron"

func main() {
	if err := run(); err != nil {
		slog.Error("Discord bot exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Discord bot exited cleanly")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level}, appName+".log")
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger.Info("Starting bot", slog.String("name", cfg.BotName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.StoragePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	resultCache, err := cache.New(cache.Options{Addr: cfg.ValkeyAddr, TTL: cfg.CacheTTL, Logger: logger})
	if err != nil {
		return err
	}
	defer resultCache.Close()

	profiles, err := profile.Open(ctx, cfg.MySQLDSN, logger)
	if err != nil {
		return err
	}
	defer profiles.Close()

	resolver, err := newResolver(ctx, cfg, logger)
	if err != nil {
		return err
	}

	bot, err := discord.New(discord.Deps{
		Config:   cfg,
		Storage:  store,
		Fetcher:  resolver,
		Images:   imagesearch.New(cfg.ImageSearchURL, resultCache, logger),
		Profiles: profiles,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}

// newResolver wires the track sources: YouTube links first, Drive search as the
// fallback for everything else.
func newResolver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*source_resolver.SourceResolver, error) {
	downloads, err := sources.NewDownloads(cfg.DownloadDir, logger)
	if err != nil {
		return nil, err
	}

	srcs := []sources.Source{youtube.New(youtube.NewYTDLPClient(), downloads)}

	if cfg.CloudCredentials == "" {
		logger.Warn("Drive search disabled, CLOUD_CREDENTIALS_SECRET is not set")
		return source_resolver.New(srcs...), nil
	}

	svc, err := drive.NewService(ctx, cfg.CloudCredentials)
	if err != nil {
		return nil, fmt.Errorf("drive setup: %w", err)
	}
	srcs = append(srcs, drive.New(svc, downloads, logger))
	return source_resolver.New(srcs...), nil
}
