package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/config"
	"voxel-planner/internal/logging"
	"voxel-planner/internal/mapio"
	"voxel-planner/internal/session"
	"voxel-planner/internal/store"
	"voxel-planner/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "configuration file (.yaml, .toml or .json)")
	mapGlob := flag.String("map", "", "glob of obstacle map files ingested at startup")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath, *mapGlob, *addr); err != nil {
		log.Fatal().Err(err).Msg("planner service failed")
	}
}

func run(configPath, mapGlob, addr string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		log.Info().Str("path", configPath).Msg("configuration loaded")
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	param, err := cfg.MapParam()
	if err != nil {
		return err
	}
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := stream.NewHub()
	publishers := []session.Publisher{hub}
	if cfg.Store.Path != "" {
		rec, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer rec.Close()
		publishers = append(publishers, rec)
	}

	s := session.New(param, opts, publishers...)
	if mapGlob != "" {
		points, err := mapio.LoadFiles(mapGlob, param)
		if err != nil {
			return err
		}
		s.IngestMap(points)
	}

	log.Info().
		Float64("resolution", param.Resolution).
		Float64("margin", param.Margin).
		Int("max_x", param.MaxX).Int("max_y", param.MaxY).Int("max_z", param.MaxZ).
		Strs("planners", s.Planners()).
		Msg("voxel planner starting")

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(s, hub, param).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- s.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-loopDone
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("planner service stopped")
	return nil
}
