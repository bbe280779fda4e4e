package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/partybox-charades/internal/config"
	"github.com/DoyleJ11/partybox-charades/internal/httpapi"
	"github.com/DoyleJ11/partybox-charades/internal/hub"
	"github.com/DoyleJ11/partybox-charades/internal/pgstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("relay stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	var rooms httpapi.RoomStore
	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := pg.Close(); err != nil {
				log.Warn("close postgres store", zap.Error(err))
			}
		}()
		g.Go(func() error { return reap(ctx, pg, cfg.RoomTTL, log) })
		rooms = pg
	default:
		rooms = hub.NewHub(ctx, hub.Options{RoomTTL: cfg.RoomTTL, Log: log})
	}

	// Build the router *with* the store injected
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpapi.SetupRoutes(rooms, httpapi.Options{
			Log:        log,
			WriteRate:  cfg.WriteRate,
			WriteBurst: cfg.WriteBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("backend", string(cfg.Backend)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// reap drops postgres rooms nobody has written to within ttl; the in-memory hub does this
// on its own.
func reap(ctx context.Context, pg *pgstore.Store, ttl time.Duration, log *zap.Logger) error {
	if ttl <= 0 {
		return nil
	}
	t := time.NewTicker(ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := pg.Reap(ctx, ttl)
			if err != nil {
				log.Warn("reap rooms", zap.Error(err))
			}
			if n > 0 {
				log.Info("reaped abandoned rooms", zap.Int64("rooms", n))
			}
		}
	}
}
