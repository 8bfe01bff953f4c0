package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	appOutcome "github.com/Zhima-Mochi/payfacade/app/internal/application/outcome"
	appPayment "github.com/Zhima-Mochi/payfacade/app/internal/application/payment"
	"github.com/Zhima-Mochi/payfacade/app/internal/config"
	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/gateway/sandbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/redisarchive"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
	httppresentation "github.com/Zhima-Mochi/payfacade/app/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/payfacade/app/internal/presentation/worker"
)

func main() {
	cfg := config.MustLoad()

	baseLogger := zaplogger.MustNew(zaplogger.Options{
		Level:   cfg.LogLevel,
		LogFile: cfg.LogFile,
		Fixed: []observability.Field{
			observability.F("service", cfg.ServiceName),
			observability.F("env", cfg.AppEnv),
		},
	})
	defer func() { _ = baseLogger.Sync() }()

	systemLogger := baseLogger.With(observability.F("component", "system"))

	shutdownTracing, err := oteltrace.Setup(context.Background(), oteltrace.Options{
		ServiceName: cfg.ServiceName,
		Environment: cfg.AppEnv,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		systemLogger.Error("tracing_setup_failed", observability.F("error", err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), baseLogger, counters, histograms)

	// In-memory event bus fans recorded outcomes out to the archive worker
	bus := outbox.NewBus(systemLogger.With(observability.F("component", "outbox")))

	journal := memory.NewOutcomeJournal(
		memory.WithPublisher(bus),
		memory.WithJournalLogger(systemLogger),
	)
	store := memory.NewTransactionStore()
	gateway := sandbox.New(sandbox.Config{
		Ceiling:          cfg.GatewayCeiling,
		KnownUsers:       cfg.GatewayKnownUsers,
		DeclinedUsers:    cfg.GatewayDeclinedUsers,
		PendingThreshold: cfg.GatewayPendingThreshold,
	}, store, baseLogger.With(observability.F("component", "sandbox_gateway")))
	processor := appPayment.NewProcessor(gateway, journal, tel)

	var archive outcome.Archive
	var redisClient *redis.Client
	if cfg.ArchiveEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			systemLogger.Warn("redis_tracing_instrumentation_failed", observability.F("error", err))
		}
		archive = redisarchive.New(redisClient, cfg.OutcomeArchiveKey, cfg.OutcomeArchiveCap)
		systemLogger.Info("outcome_archive_enabled",
			observability.F("addr", cfg.RedisAddr),
			observability.F("key", cfg.OutcomeArchiveKey),
		)
	}

	workerTel := infraobs.WithLogger(tel, baseLogger.With(observability.F("component", "outcome_worker")))
	outcomeWorker := appOutcome.New(bus, archive, workerTel, workerpresentation.EventMiddleware(workerTel.Logger(), workerTel))
	outcomeWorker.Start()
	bus.Start(context.Background())

	handler := httppresentation.NewHandler(processor, journal, archive, tel)
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Mount("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				observability.F("error", err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			observability.F("error", err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	// Drain pending outcome events before closing their destinations
	bus.Stop(shutdownCtx)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			systemLogger.Warn("redis_close_failed", observability.F("error", err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Warn("tracing_shutdown_failed", observability.F("error", err))
	}
}
