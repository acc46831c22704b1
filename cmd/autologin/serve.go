package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rayen0001/tekup-auto-login/internal/autofill"
	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/config"
	"github.com/rayen0001/tekup-auto-login/internal/handlers"
	"github.com/rayen0001/tekup-auto-login/internal/monitor"
	"github.com/rayen0001/tekup-auto-login/internal/store"
	"github.com/rayen0001/tekup-auto-login/internal/store/keyringstore"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

// openStore picks the credential backend named in cfg.
func openStore(cfg *config.RuntimeConfig) (store.Store, error) {
	if cfg.StoreBackend == store.BackendKeyring {
		ks, err := keyringstore.Open(filepath.Join(cfg.StateDir, "keyring"), cfg.KeyringPassword)
		if err != nil {
			return nil, err
		}
		return ks, nil
	}
	return store.Open(cfg.StoreBackend, cfg.StateDir)
}

func runServe(ctx context.Context, cfg *config.RuntimeConfig) error {
	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	b := bridge.New(nil, nil, cfg)
	if err := b.EnsureChrome(); err != nil {
		return err
	}
	defer b.Close()

	g, gctx := errgroup.WithContext(ctx)

	relay := monitor.NewRelay(s)
	engine := autofill.New(s, autofill.Config{
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		SettleDelay: cfg.SettleDelay,
	}, autofill.WithReporter(relay))
	mon := monitor.New(gctx, cfg.TargetMatch, &monitor.EngineInjector{Docs: b, Engine: engine})
	defer mon.Close()

	stopObserving := monitor.ObserveChanges(s)
	defer stopObserving()

	reason, err := monitor.DetectInstall(cfg.StateDir, version)
	if err != nil {
		slog.Warn("install detection failed", "err", err)
	} else if reason != "" {
		monitor.OnInstalled(reason, b, handlers.OptionsPageURL(cfg))
	}

	mux := http.NewServeMux()
	handlers.New(b, cfg, s, mon, version).RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handlers.Chain(cfg, mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		slog.Info("autologin listening", "addr", cfg.ListenAddr(), "target", cfg.TargetMatch, "store", cfg.StoreBackend)
		if cfg.Token == "" {
			slog.Info("auth disabled (set AUTOLOGIN_TOKEN to enable)")
		}
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	if w, ok := s.(store.Watcher); ok {
		g.Go(func() error { return w.Watch(gctx) })
	}
	g.Go(func() error {
		return b.WatchNavigation(gctx, mon.OnTabUpdated)
	})
	g.Go(func() error {
		b.CleanStaleTabs(gctx, 30*cfg.ActionTimeout)
		return nil
	})

	return g.Wait()
}
