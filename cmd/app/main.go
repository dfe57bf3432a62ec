package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading_core/internal/app"
	"trading_core/internal/infra/feed"

	"golang.org/x/sync/errgroup"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	pprofAddr := flag.String("pprof", "localhost:6060", "pprof listen address, empty to disable")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, *configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Storage.Close()

	g, gctx := errgroup.WithContext(ctx)

	// 4. Sweeper (the matching loop)
	g.Go(func() error {
		return bootstrap.Sweeper.Run(gctx)
	})
	slog.Info("✅ Sweeper started")

	// 5. Periodic snapshots
	if err := bootstrap.Snapshotter.Start(gctx); err != nil {
		slog.Error("Failed to start snapshot loop", slog.Any("error", err))
	}
	g.Go(func() error {
		<-gctx.Done()
		bootstrap.Snapshotter.Stop()
		return nil
	})

	// 6. Trade feed
	if bootstrap.Hub != nil {
		srv := feed.NewServer(bootstrap.Config.Feed.Addr, bootstrap.Hub)
		g.Go(func() error {
			return bootstrap.Hub.Run(gctx)
		})
		g.Go(func() error {
			slog.Info("✅ Trade feed listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("✨ Trading core fully operational. Press Ctrl+C to exit.")

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", slog.Any("error", err))
	}

	slog.Info("👋 Shutting down gracefully...")

	// Final snapshot so a restart resumes from the latest state
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bootstrap.Snapshotter.Save(saveCtx); err != nil {
		slog.Error("Final snapshot failed", slog.Any("error", err))
	}
}
