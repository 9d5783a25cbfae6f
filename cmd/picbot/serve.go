package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/picbot/config"
	"github.com/mohammad-safakhou/picbot/internal/discord"
	"github.com/mohammad-safakhou/picbot/internal/metrics"
	"github.com/mohammad-safakhou/picbot/internal/router"
	"github.com/mohammad-safakhou/picbot/internal/server"
	"github.com/mohammad-safakhou/picbot/session/stores"
	"github.com/mohammad-safakhou/picbot/tools/image_search"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve the image search command",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath, config.RequireAll)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	return serve
}

func newFetcher(cfg *config.Config, logger *zap.Logger) (*image_search.Fetcher, error) {
	searcher, err := image_search.NewImageSearcher(
		image_search.Provider(cfg.Search.Provider),
		cfg.Search.APIKey,
		cfg.Search.BaseURL,
		image_search.NewHTTPClient(cfg.Search.Timeout),
	)
	if err != nil {
		return nil, err
	}
	return image_search.NewFetcher(searcher, cfg.Search.MaxResults, cfg.Search.Timeout, logger), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	m := metrics.New()
	opened, err := stores.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := opened.Store.Close(); err != nil {
			logger.Warn("close session store", zap.Error(err))
		}
	}()
	if opened.Len != nil {
		m.TrackSessions(opened.Len)
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	rt := router.New(fetcher, opened.Store, m, logger)

	bot, err := discord.New(cfg.Discord, rt, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	if cfg.Server.Enabled {
		ops := server.New(cfg.Server.Address, m, opened.Ready, logger)
		g.Go(func() error { return ops.Run(gctx) })
	}
	if opened.Run != nil {
		g.Go(func() error {
			opened.Run(gctx)
			return nil
		})
	}

	logger.Info("picbot started",
		zap.String("command", cfg.Discord.CommandName),
		zap.String("provider", cfg.Search.Provider),
		zap.String("store", cfg.Sessions.Store),
	)
	err = g.Wait()
	logger.Info("picbot stopped", zap.Error(err))
	return err
}
