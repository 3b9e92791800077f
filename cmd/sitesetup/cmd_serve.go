package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesetup/internal/ajax"
	"sitesetup/internal/config"
	"sitesetup/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr  string
	serveWatch bool
)

// serveCmd runs the ajax server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin-ajax endpoints, /healthz and /metrics",
	Long: `Starts the HTTP server the wizard UI and the contact form post to.

Endpoints:
  POST /ajax          action + nonce + action fields, form encoded
  GET  /ajax/nonce    ?action=<name>, issues a nonce for the caller
  GET  /healthz       store health
  GET  /metrics       Prometheus metrics (server.metrics: true)

Callers authenticate with "Authorization: Bearer <token>" (auth.users).
Requests without a token are anonymous and may only submit the contact form.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload logging settings when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	secret := cfg.Server.NonceSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("server.nonce_secret is not set; using a random secret, nonces will not survive a restart")
	}
	auth, err := ajax.NewTokenAuth(cfg.Auth.Users)
	if err != nil {
		return err
	}
	if len(cfg.Auth.Users) == 0 {
		logger.Warn("No auth users configured; only the contact form is usable")
	}
	var metrics *ajax.Metrics
	if cfg.Server.Metrics {
		metrics = ajax.NewMetrics()
	}

	srv := ajax.NewServer(ajax.Deps{
		Host:      a.host,
		Installer: a.installer,
		Writer:    a.writer,
		Importer:  a.importer,
		Contact:   a.contact,
		Wizard:    a.wizard,
		Bulk:      a.bulkOptions(),
		Health:    a.store,

		OperationTimeout: cfg.GetWriteTimeout(),
	}, ajax.NewNonceIssuer([]byte(secret), cfg.GetNonceTTL()), auth, metrics)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.GetReadTimeout(),
		WriteTimeout:      cfg.GetWriteTimeout(),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if n := cfg.Server.MaxConns; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", zap.String("addr", ln.Addr().String()),
			zap.Bool("metrics", metrics != nil), zap.Int("max_conns", cfg.Server.MaxConns))
		logging.Boot("sitesetup serving on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if serveWatch {
		if _, err := os.Stat(configPath); err == nil {
			g.Go(func() error {
				err := config.Watch(gctx, configPath, func(c *config.Config) {
					if err := c.Validate(); err != nil {
						logger.Warn("Ignoring invalid config change", zap.Error(err))
						return
					}
					logging.Configure(loggingSettings(c))
					logger.Info("Logging settings reloaded", zap.String("level", c.Logging.Level))
				})
				if err != nil {
					logger.Warn("Config watcher stopped", zap.Error(err))
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
