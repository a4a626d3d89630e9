package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/config"
	"github.com/sagarc03/tollgate/database"
	tollgatehttp "github.com/sagarc03/tollgate/http"
	"github.com/sagarc03/tollgate/keybackend"
	"github.com/sagarc03/tollgate/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the tollgate HTTP server.

The session key is read from session.key_file; create one with
'tollgate keygen'. With database.enabled set, profiles are stored in
the configured sqlite or postgres database and migrated on startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 5780, env: TOLLGATE_SERVER_PORT)")
	serveCmd.Flags().String("host", "", "HTTP server bind address (env: TOLLGATE_SERVER_HOST)")
	serveCmd.Flags().String("bucket", "", "bucket grants are issued for (env: TOLLGATE_STORAGE_BUCKET)")
	serveCmd.Flags().String("endpoint", "", "bucket endpoint URL (env: TOLLGATE_STORAGE_ENDPOINT)")
	serveCmd.Flags().String("region", "", "bucket region (default: us-east-1, env: TOLLGATE_STORAGE_REGION)")

	rootCmd.AddCommand(serveCmd)
}

// newRegistry builds the session registry from cfg. The returned cleanup
// closes the profile store, if any.
func newRegistry(ctx context.Context, cfg *config.Config) (*session.Registry, func(), error) {
	key, err := session.LoadPrivateKey(cfg.Session.KeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w (create one with 'tollgate keygen')", err)
		}
		return nil, nil, err
	}

	codec, err := session.NewRSACodec(key, cfg.Session.Timeout)
	if err != nil {
		return nil, nil, err
	}

	opts := []session.RegistryOption{
		session.WithGracePeriod(cfg.Session.GracePeriod),
		session.WithProviders(cfg.Session.Providers...),
		session.WithLogger(slog.Default()),
	}

	cleanup := func() {}
	if cfg.Database.Enabled {
		repo, closeDB, err := database.Open(ctx, cfg.Database.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("open profile store: %w", err)
		}
		slog.Info("connected to database", "type", cfg.Database.Type)

		opts = append(opts, session.WithProfileStore(repo))
		cleanup = closeDB
	}

	return session.NewRegistry(codec, opts...), cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	registry, closeRegistry, err := newRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	creds, err := keybackend.NewCredentialSource(ctx, cfg.Auth.Credentials, cfg.Storage.Region)
	if err != nil {
		return fmt.Errorf("signing credentials: %w", err)
	}

	handlerConfig := tollgatehttp.HandlerConfig{
		Grants:      cfg.Storage,
		Cookie:      cfg.Session.CookieConfig,
		CORS:        cfg.CORS,
		Credentials: creds,
		Registry:    registry,
		Logger:      slog.Default(),
	}

	if identity := tollgatehttp.NewHeaderIdentity(cfg.Auth.Identity); identity != nil {
		handlerConfig.Identity = identity
	}

	if cfg.Auth.Verify {
		// URLs tollgate presigned itself verify too.
		signer := keybackend.KeyPair{AccessKey: cfg.Auth.Credentials.AccessKey, SecretKey: cfg.Auth.Credentials.SecretKey}

		store, err := keybackend.NewSecretStore(cfg.Auth.Keys, signer)
		if err != nil {
			return fmt.Errorf("load access keys: %w", err)
		}
		if store.Len() == 0 {
			slog.Warn("verification enabled without access keys, every request will be rejected")
		}
		handlerConfig.Verifier = tollgate.NewSignatureVerifier(cfg.Storage.Region, cfg.Storage.Service, store)
	}

	handler, err := tollgatehttp.NewHandler(&handlerConfig)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server",
		"addr", addr,
		"bucket", cfg.Storage.Bucket,
		"login", handlerConfig.Identity != nil,
		"verify", handlerConfig.Verifier != nil,
		"profiles", cfg.Database.Enabled,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
