package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"flowhq.dev/internal/auth"
	"flowhq.dev/internal/config"
	"flowhq.dev/internal/httpapi"
	"flowhq.dev/internal/migrate"
	"flowhq.dev/internal/obs"
	"flowhq.dev/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, probe, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}
	svc, err := auth.NewService(store, signer,
		auth.WithHasher(auth.NewHasher(auth.DefaultHashCost, cfg.HashWorkers)),
		auth.WithDefaultRole(cfg.DefaultRole),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	if err := svc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("seed role catalog: %v", err)
	}

	api, err := httpapi.New(httpapi.Options{
		Service:     svc,
		Guard:       auth.NewGuard(signer, store),
		ReadyProbe:  probe,
		Version:     version,
		FrontendURL: cfg.FrontendURL,
	})
	if err != nil {
		log.Fatalf("http api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		obs.LogEvent(obs.LevelInfo, "http_listening", map[string]any{"addr": srv.Addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.GRPCAddr != "" {
		health := httpapi.NewHealthServer(probe)
		grpcSrv := httpapi.NewGRPCServer(health)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		g.Go(func() error {
			health.Run(gctx, 10*time.Second)
			return nil
		})
		g.Go(func() error {
			obs.LogEvent(obs.LevelInfo, "grpc_listening", map[string]any{"addr": cfg.GRPCAddr})
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		obs.LogEvent(obs.LevelInfo, "shutting_down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	obs.LogEvent(obs.LevelInfo, "stopped", nil)
}

type readiness interface {
	Check(ctx context.Context) error
}

// openStore selects Postgres when a DSN is configured and the in-memory
// store otherwise.
func openStore(ctx context.Context, cfg config.Config) (auth.Store, readiness, func(), error) {
	if cfg.DSN == "" {
		obs.LogEvent(obs.LevelWarn, "using_memory_store", map[string]any{
			"reason": config.EnvPGDSN + " is empty; data is lost on restart",
		})
		return auth.NewMemoryStore(), httpapi.ReadyProbe{}, func() {}, nil
	}
	store, err := pg.Open(cfg.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.AutoMigrate {
		applied, err := migrate.NewManager(store.DB(), nil).Up(ctx)
		if err != nil {
			_ = store.Close()
			return nil, nil, nil, err
		}
		if len(applied) > 0 {
			obs.LogEvent(obs.LevelInfo, "migrations_applied", map[string]any{"names": applied})
		}
	}
	return store, store, func() { _ = store.Close() }, nil
}
