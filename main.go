package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appAccount "github.com/mossleaf/bookmart/internal/application/account"
	appCatalog "github.com/mossleaf/bookmart/internal/application/catalog"
	appSettlement "github.com/mossleaf/bookmart/internal/application/settlement"
	appUser "github.com/mossleaf/bookmart/internal/application/user"
	domaccount "github.com/mossleaf/bookmart/internal/domain/account"
	domcatalog "github.com/mossleaf/bookmart/internal/domain/catalog"
	domuser "github.com/mossleaf/bookmart/internal/domain/user"
	"github.com/mossleaf/bookmart/internal/infrastructure/audit"
	"github.com/mossleaf/bookmart/internal/infrastructure/id"
	"github.com/mossleaf/bookmart/internal/infrastructure/memory"
	mysqlrepo "github.com/mossleaf/bookmart/internal/infrastructure/mysql"
	"github.com/mossleaf/bookmart/internal/infrastructure/observability/oteltrace"
	"github.com/mossleaf/bookmart/internal/infrastructure/observability/prometrics"
	"github.com/mossleaf/bookmart/internal/infrastructure/observability/telemetry"
	"github.com/mossleaf/bookmart/internal/infrastructure/observability/zaplogger"
	"github.com/mossleaf/bookmart/internal/infrastructure/outbox"
	"github.com/mossleaf/bookmart/internal/infrastructure/redisrepo"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/pkg/logging"
	httppresentation "github.com/mossleaf/bookmart/internal/presentation/http"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "bookmart")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("HTTP_ADDR", ":8080")

	baseZap := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseZap.Sync() }()
	zap.ReplaceGlobals(baseZap)
	logger := zaplogger.Wrap(baseZap)

	registry := prometrics.New(serviceName, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MSettlementRetries: registry.Counter(
			string(observability.MSettlementRetries),
			"Settlement attempts re-run after a lost optimistic race.",
			"use_case",
		),
		observability.MSettlementRollbacks: registry.Counter(
			string(observability.MSettlementRollbacks),
			"Compensating rollbacks applied to partially committed settlements.",
			"use_case",
		),
		observability.MSettlementInconsistencies: registry.Counter(
			string(observability.MSettlementInconsistencies),
			"Settlements whose rollback failed; state needs reconciliation.",
			"use_case",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route",
		),
	}
	tel := telemetry.New(oteltrace.New(serviceName), logger, counters, histograms)

	accountRepo, itemRepo, userRepo := buildRepositories(logger)
	idGenerator := id.NewUUIDGenerator()

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	engine := appSettlement.NewEngine(accountRepo, itemRepo, idGenerator, bus, tel)
	accountService := appAccount.NewService(accountRepo, userRepo, idGenerator, logger)
	catalogService := appCatalog.NewService(itemRepo, idGenerator, logger)
	userService := appUser.NewService(userRepo, idGenerator, logger)

	auditWorker := audit.New(bus, logger)
	auditWorker.Start()

	handler := httppresentation.NewHandler(engine, accountService, catalogService, userService, logger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}

// buildRepositories selects the storage backend. The settlement engine only
// sees the repository ports, so every backend offers the same versioned-save
// contract.
func buildRepositories(logger observability.Logger) (domaccount.Repository, domcatalog.Repository, domuser.Repository) {
	switch backend := getenvDefault("STORAGE", "memory"); backend {
	case "mysql":
		dsn := getenvDefault("MYSQL_DSN", "bookmart:bookmart@tcp(127.0.0.1:3306)/bookmart?parseTime=true")
		db, err := mysqlrepo.Open(dsn)
		if err != nil {
			panic(err)
		}
		logger.Info("storage_selected", observability.F("backend", backend))
		return mysqlrepo.NewAccountRepository(db), mysqlrepo.NewItemRepository(db), mysqlrepo.NewUserRepository(db)
	case "redis":
		// Stock is the contended resource; it lives in Redis while the
		// directory data stays in memory.
		client := redis.NewClient(&redis.Options{
			Addr: getenvDefault("REDIS_ADDR", "127.0.0.1:6379"),
		})
		logger.Info("storage_selected", observability.F("backend", backend))
		return memory.NewAccountRepository(), redisrepo.NewItemRepository(client), memory.NewUserRepository()
	default:
		logger.Info("storage_selected", observability.F("backend", "memory"))
		return memory.NewAccountRepository(), memory.NewItemRepository(), memory.NewUserRepository()
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
