package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trustcore/internal/audit"
	"trustcore/internal/audit/integrity"
	"trustcore/internal/audit/notifier"
	"trustcore/internal/audit/retention"
	"trustcore/internal/auth/service"
	identitystore "trustcore/internal/auth/store/identity"
	"trustcore/internal/auth/store/refreshtoken"
	"trustcore/internal/federation"
	"trustcore/internal/platform/config"
	"trustcore/internal/platform/database"
	"trustcore/internal/platform/kafka/producer"
	"trustcore/internal/platform/logger"
	"trustcore/internal/platform/metrics"
	platformredis "trustcore/internal/platform/redis"
	"trustcore/internal/token"
	httptransport "trustcore/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Store selection is
// by configuration: Postgres when DATABASE_URL is set, Redis for refresh
// tokens when REDIS_URL is set, in-memory otherwise.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing trustcore", "addr", cfg.Server.Addr)

	pool, err := database.New(cfg.Database)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	var auditStore audit.Store
	var tokenStore refreshtoken.Store
	var identityDir service.IdentityDirectory
	switch {
	case pool != nil:
		auditStore = audit.NewPostgresStore(pool.DB())
		tokenStore = refreshtoken.NewPostgres(pool.DB())
		identityDir = identitystore.NewPostgres(pool.DB())
	default:
		auditStore = audit.NewInMemoryStore()
		tokenStore = refreshtoken.NewInMemory()
		identityDir = identitystore.NewInMemory()
		log.Warn("no database configured, using in-memory stores")
	}
	if redisClient != nil {
		tokenStore = refreshtoken.NewRedis(redisClient.Client)
	}

	recorder := audit.NewRecorder(auditStore,
		audit.WithRecorderLogger(log),
		audit.WithRecorderMetrics(m),
		audit.WithStoreTimeout(cfg.Server.StoreTimeout),
	)
	defer recorder.Close()

	issuer, err := token.NewIssuer(cfg.Token.SigningKey, cfg.Token.Issuer, cfg.Token.Audience, cfg.Token.AccessTTL)
	if err != nil {
		log.Error("token issuer init failed", "error", err)
		os.Exit(1)
	}

	var opsNotifier retention.Notifier
	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(cfg.Kafka, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
		opsNotifier = notifier.NewKafka(prod, cfg.Kafka.Topic, log)
	}

	engine := integrity.New(auditStore, integrity.WithSigningSeed(cfg.Integrity.SigningSeed))

	scheduler, err := retention.New(auditStore, engine, retention.Policy{
		ActiveRetention:  cfg.Retention.ActiveRetention,
		ArchiveRetention: cfg.Retention.ArchiveRetention,
		TaskInterval:     cfg.Retention.TaskInterval,
		AutoArchive:      cfg.Retention.AutoArchive,
		AutoPurge:        cfg.Retention.AutoPurge,
		MaxStoreBytes:    cfg.Retention.MaxStoreBytes,
		CompressArchive:  cfg.Retention.CompressArchive,
		EncryptArchive:   cfg.Retention.EncryptArchive,
		NotifyAddress:    cfg.Retention.NotifyAddress,
	}, retention.WithLogger(log), retention.WithMetrics(m), retention.WithNotifier(opsNotifier))
	if err != nil {
		log.Error("retention scheduler init failed", "error", err)
		os.Exit(1)
	}

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithAuditor(recorder),
		service.WithMetrics(m),
		service.WithRefreshTTL(cfg.Token.RefreshTTL),
	}
	if cfg.Federation.ClientID != "" {
		provider, err := federation.NewOIDC(cfg.Federation)
		if err != nil {
			log.Error("federation provider init failed", "error", err)
			os.Exit(1)
		}
		svcOpts = append(svcOpts, service.WithFederationProvider(provider))
	}
	authSvc, err := service.NewService(identityDir, tokenStore, issuer, svcOpts...)
	if err != nil {
		log.Error("auth service init failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(authSvc, auditStore, engine, scheduler, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httptransport.NewRouter(handler, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if redisClient != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					redisClient.RecordPoolStats()
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
