package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"profreg/internal/platform/config"
	"profreg/internal/platform/httpserver"
	"profreg/internal/platform/logger"
	platformredis "profreg/internal/platform/redis"
	"profreg/internal/register/handler"
	registermetrics "profreg/internal/register/metrics"
	"profreg/internal/register/models"
	"profreg/internal/register/search"
	"profreg/internal/register/service"
	entitystore "profreg/internal/register/store/entity"
	versionstore "profreg/internal/register/store/version"
	auditpublisher "profreg/pkg/platform/audit/publisher"
	auditmemory "profreg/pkg/platform/audit/store/memory"
	auditpostgres "profreg/pkg/platform/audit/store/postgres"
	auditworker "profreg/pkg/platform/audit/worker"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages. Without a database
// URL the service runs fully in memory, which keeps local development and
// demos dependency-free.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		versions service.VersionStore
		entities service.EntityStore
		txRunner service.TxRunner
		auditor  service.AuditStore
		outbox   *auditpostgres.Store
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		versions = versionstore.NewPostgres(db)
		entities = entitystore.NewPostgres(db)
		txRunner = newRegisterPostgresTx(db)
		outbox = auditpostgres.New(db)
		auditor = outbox
	} else {
		log.Warn("no database configured, using in-memory stores")
		memVersions := versionstore.NewInMemory()
		memEntities := entitystore.NewInMemory()
		versions = memVersions
		entities = memEntities
		txRunner = service.NewInMemoryTxRunner(memVersions, memEntities)
		auditor = auditmemory.New()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	indexes := make(map[models.Kind]service.SearchIndex)
	for _, kind := range []models.Kind{models.KindProfession, models.KindOrganisation} {
		if redisClient == nil {
			log.Warn("no redis configured, using in-memory search index", "kind", kind)
			indexes[kind] = search.NewInMemory()
			continue
		}
		idx := search.NewRedisIndex(redisClient, search.IndexName(kind, cfg.Environment))
		if err := idx.EnsureIndex(ctx); err != nil {
			log.Error("failed to ensure search index", "kind", kind, "error", err)
			os.Exit(1)
		}
		indexes[kind] = idx
	}

	slugs := service.NewSlugService(entities,
		service.WithSlugLogger(log),
		service.WithSlugAuditStore(auditor),
	)
	svc := service.New(txRunner, versions, entities, indexes, slugs,
		service.WithLogger(log),
		service.WithMetrics(registermetrics.New()),
		service.WithAuditStore(auditor),
	)

	router := handler.NewRouter(handler.New(svc, log), cfg.AdminToken)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting profreg", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if outbox != nil && len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditpublisher.NewKafka(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("failed to connect audit publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		relay := auditworker.New(outbox, publisher, log)
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
