package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/credstart/internal/audit"
	"github.com/dropDatabas3/credstart/internal/config"
	httpserver "github.com/dropDatabas3/credstart/internal/http"
	credctrl "github.com/dropDatabas3/credstart/internal/http/controllers/credential"
	healthctrl "github.com/dropDatabas3/credstart/internal/http/controllers/health"
	credsvc "github.com/dropDatabas3/credstart/internal/http/services/credential"
	"github.com/dropDatabas3/credstart/internal/kms"
	"github.com/dropDatabas3/credstart/internal/observability/logger"
	"github.com/dropDatabas3/credstart/internal/registry"
	"github.com/dropDatabas3/credstart/internal/session"
	"github.com/dropDatabas3/credstart/internal/token"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "credstart",
		Short:         "Async credential-issuance session initiation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CREDSTART_CONFIG"), "path to YAML config (env CREDSTART_CONFIG)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply client-registry database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}
	root.AddCommand(serve, migrate)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "credstart:", err)
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Registry.Driver != "postgres" {
		return fmt.Errorf("migrate: registry driver %q has no migrations", cfg.Registry.Driver)
	}

	pg, err := registry.NewPGStore(ctx, cfg.Registry.DSN)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runServe(ctx context.Context, configPath string) error {
	// .env is optional; system env always wins.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: "credstart",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	// Key-management boundary
	kmsClient := kms.NewClient(cfg.KMS.BaseURL, cfg.KMSTimeout())
	verifier := &kms.Verifier{Keys: kmsClient}
	decoder := &token.Decoder{
		Issuer:          cfg.Issuer,
		Decrypter:       kmsClient,
		EncryptionKeyID: cfg.KMS.EncryptionKeyID,
	}

	// Client registry
	var reg registry.Store
	switch cfg.Registry.Driver {
	case "postgres":
		pg, err := registry.NewPGStore(ctx, cfg.Registry.DSN)
		if err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		defer pg.Close()
		reg = pg
	default:
		entries := make([]registry.RegisteredClient, 0, len(cfg.Registry.Clients))
		for _, c := range cfg.Registry.Clients {
			entries = append(entries, registry.RegisteredClient{
				ClientID:    c.ClientID,
				Issuer:      c.Issuer,
				RedirectURI: c.RedirectURI,
			})
		}
		reg = registry.NewStaticStore(entries)
	}
	log.Info("client registry ready", logger.String("driver", cfg.Registry.Driver))

	// Session store and audit transport. Redis is shared between them.
	var (
		sessions session.Store
		emitter  audit.Emitter
	)
	switch cfg.Session.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		sessions = session.NewRedisStoreWithClient(rdb, cfg.Session.Redis.Prefix, cfg.SessionTTL())
		emitter = audit.NewStreamEmitter(rdb, cfg.Audit.Stream)
	default:
		sessions = session.NewMemoryStore(cfg.SessionTTL())
		emitter = audit.LogEmitter{}
		log.Warn("memory session store and log audit emitter in use; not for production")
	}
	log.Info("session store ready",
		logger.String("driver", cfg.Session.Driver),
		logger.String("ttl", cfg.Session.TTL))

	service := credsvc.NewService(credsvc.Deps{
		Decoder:      decoder,
		Verifier:     verifier,
		Registry:     reg,
		Sessions:     sessions,
		Audit:        emitter,
		SigningKeyID: cfg.KMS.SigningKeyID,
		ComponentID:  cfg.Issuer,
	})

	handler := httpserver.NewRouter(httpserver.RouterDeps{
		Credential: credctrl.NewController(service),
		Health: healthctrl.NewController(map[string]healthctrl.Pinger{
			"registry": reg,
			"sessions": sessions,
		}),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	return httpserver.Run(ctx, httpserver.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}, handler)
}
