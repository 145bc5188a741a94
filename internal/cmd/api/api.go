// Package api parses API command flags and launches the HTTP service.
package api

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	httpapi "github.com/mdc-engine/ramka/internal/api"
	"github.com/mdc-engine/ramka/internal/catalog"
	entrypoint "github.com/mdc-engine/ramka/internal/platform/cmd"
	"github.com/mdc-engine/ramka/internal/report"
	"github.com/mdc-engine/ramka/internal/session/service"
	"github.com/mdc-engine/ramka/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds API command configuration.
type Config struct {
	Addr          string `env:"RAMKA_API_ADDR" envDefault:":8080"`
	DBPath        string `env:"RAMKA_API_DB_PATH" envDefault:"data/ramka.db"`
	AuthIssuer    string `env:"RAMKA_AUTH_ISSUER" envDefault:"ramka-auth"`
	AuthAudience  string `env:"RAMKA_AUTH_AUDIENCE" envDefault:"ramka-api"`
	AuthPublicKey string `env:"RAMKA_AUTH_PUBLIC_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.AuthIssuer, "auth-issuer", cfg.AuthIssuer, "Expected access token issuer")
	fs.StringVar(&cfg.AuthAudience, "auth-audience", cfg.AuthAudience, "Expected access token audience")
	fs.StringVar(&cfg.AuthPublicKey, "auth-public-key", cfg.AuthPublicKey, "Base64 Ed25519 public key for access tokens")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		key, err := httpapi.ParseAuthPublicKey(cfg.AuthPublicKey)
		if err != nil {
			return fmt.Errorf("auth public key: %w", err)
		}
		verifier, err := httpapi.NewTokenVerifier(httpapi.AuthConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			Key:      key,
		})
		if err != nil {
			return fmt.Errorf("token verifier: %w", err)
		}

		catalogService, err := catalog.NewService(store)
		if err != nil {
			return fmt.Errorf("catalog service: %w", err)
		}
		sessionService := service.New(service.Stores{
			Case:    store,
			Session: store,
			Message: store,
			Report:  store,
		}, store)
		reportReader, err := report.NewReader(store, store)
		if err != nil {
			return fmt.Errorf("report reader: %w", err)
		}

		server, err := httpapi.NewServer(catalogService, sessionService, reportReader, verifier)
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}

		httpServer := &http.Server{
			Addr:              cfg.Addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		serveErr := make(chan error, 1)
		go func() {
			log.Printf("api listening on %s", cfg.Addr)
			serveErr <- httpServer.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			return nil
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve http: %w", err)
		}
	})
}
