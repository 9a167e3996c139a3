// Package main provides the entry point for sigmesh-server.
//
// sigmesh-server authenticates pre-provisioned API clients, issues
// IP-bound session tokens and verifies signed messages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
	"github.com/yndnr/sigmesh/internal/infra/buildinfo"
	"github.com/yndnr/sigmesh/internal/infra/confloader"
	"github.com/yndnr/sigmesh/internal/infra/shutdown"
	"github.com/yndnr/sigmesh/internal/infra/tlsroots"
	"github.com/yndnr/sigmesh/internal/server/config"
	"github.com/yndnr/sigmesh/internal/server/httpserver"
	"github.com/yndnr/sigmesh/internal/server/httpserver/handler"
	"github.com/yndnr/sigmesh/internal/storage/credfile"
	"github.com/yndnr/sigmesh/internal/telemetry/logger"
	"github.com/yndnr/sigmesh/internal/telemetry/metric"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		checkOnly   = flag.Bool("check", false, "Validate configuration and credentials, then exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sigmesh-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting sigmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	records, err := loadCredentials(&cfg.Credentials)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	metrics := metric.NewRegistry()

	services, err := initServices(cfg, records, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	if *checkOnly {
		log.Info("configuration ok", "clients", services.Credentials.Len())
		return nil
	}

	api := handler.New(&handler.Config{
		Sessions:   services.Sessions,
		Envelopes:  services.Envelopes,
		Observer:   metrics,
		Logger:     slogLogger,
		MessageTTL: cfg.Session.MessageTTL,
		TrustProxy: cfg.Server.TrustProxy,
	})

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:          api,
		Metrics:          metrics,
		Logger:           slogLogger,
		RateLimit:        cfg.Server.RateLimit,
		RateBurst:        cfg.Server.RateBurst,
		EnableAudit:      cfg.Server.Audit,
		MetricsToken:     cfg.Server.MetricsToken,
		MetricsAllowList: cfg.Server.MetricsAllowList,
		TrustProxy:       cfg.Server.TrustProxy,
	})

	serverCfg := &httpserver.Config{
		Addr:         cfg.Server.HTTP.Addr,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)

	// Hooks run in reverse order: stop advertising readiness, drain HTTP,
	// then close the remaining sessions.
	shutdownHandler.OnShutdown("sessions", func(ctx context.Context) error {
		log.Info("closing sessions", "active", services.Sessions.Count())
		return services.Sessions.Shutdown(ctx)
	})

	if cfg.Server.HTTP.TLSCertFile != "" {
		certs, err := tlsroots.NewWatcher(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(slogLogger))
		if err != nil {
			return fmt.Errorf("load tls key pair: %w", err)
		}
		certs.StartAsync()
		shutdownHandler.OnShutdown("tls watcher", func(context.Context) error {
			certs.Stop()
			return nil
		})
		serverCfg.TLSConfig = certs.ServerConfig()
	}

	if *configFile != "" {
		stop, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return stop()
			})
		}
	}

	httpServer := httpserver.New(serverCfg, router)
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown("readiness", func(context.Context) error {
		api.SetDraining(true)
		return nil
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", cfg.Server.HTTP.Addr,
			"tls", httpServer.TLS())

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully", "reason", shutdownHandler.Reason())
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the redacting structured logger and installs it
// as the process default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}

// loadCredentials reads the provisioned client records.
func loadCredentials(cfg *config.CredentialsSection) ([]*domain.ClientCredential, error) {
	format, err := credfile.ParseFormat(cfg.CredentialsFormat())
	if err != nil {
		return nil, err
	}
	encryption, err := credfile.ParseEncryption(cfg.Encryption)
	if err != nil {
		return nil, err
	}

	var keys credfile.Keys
	switch encryption {
	case credfile.EncryptionAEAD:
		keys.Passphrase = []byte(cfg.Key)
	case credfile.EncryptionAge:
		if keys.Identities, err = credfile.ReadIdentityFile(cfg.IdentityFile); err != nil {
			return nil, err
		}
	}

	return credfile.Load(cfg.File, credfile.Options{
		Format:     format,
		Encryption: encryption,
		Keys:       keys,
	})
}

// Services holds all initialized services.
type Services struct {
	Credentials *service.CredentialStore
	Envelopes   *service.EnvelopeCodec
	Sessions    *service.SessionManager
}

// initServices initializes all domain services.
func initServices(cfg *config.ServerConfig, records []*domain.ClientCredential, obs service.Observer, log *slog.Logger) (*Services, error) {
	creds, err := service.NewCredentialStore(records, cfg.Session.HashIterations)
	if err != nil {
		return nil, err
	}

	tokens := service.NewTokenIssuer(&service.TokenIssuerConfig{
		AccessTTL:  cfg.Session.AccessTTL,
		RefreshTTL: cfg.Session.RefreshTTL,
	})

	envelopes := service.NewEnvelopeCodec(&service.EnvelopeConfig{
		DefaultTTL: cfg.Session.MessageTTL,
		Iterations: cfg.Session.HashIterations,
	})

	sessions := service.NewSessionManager(&service.SessionManagerConfig{
		Credentials:      creds,
		Tokens:           tokens,
		Observer:         obs,
		Logger:           log,
		StrictInvariants: cfg.Session.StrictInvariants,
	})

	log.Info("services initialized",
		"clients", creds.Len(),
		"access_ttl", cfg.Session.AccessTTL.String(),
		"refresh_ttl", cfg.Session.RefreshTTL.String())

	return &Services{
		Credentials: creds,
		Envelopes:   envelopes,
		Sessions:    sessions,
	}, nil
}

// watchConfig reloads the config file on change and applies the settings
// that can change at runtime. Only log.level is applied live; other
// changes are reported and need a restart.
func watchConfig(path string, log logger.Logger) (stop func() error, err error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
		log.Info("config reloaded; settings other than log.level apply on restart")
	})
	w.StartAsync()

	return w.Stop, nil
}
