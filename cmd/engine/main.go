package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nestiq/lead-engine/internal/api"
	"github.com/nestiq/lead-engine/internal/config"
	"github.com/nestiq/lead-engine/internal/dialogue"
	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/nlu"
	"github.com/nestiq/lead-engine/internal/notify"
	"github.com/nestiq/lead-engine/internal/observability/metrics"
	"github.com/nestiq/lead-engine/internal/reengage"
	"github.com/nestiq/lead-engine/internal/sentiment"
	"github.com/nestiq/lead-engine/internal/slots"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead engine", "env", cfg.Env, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tenants := tenancy.NewPostgresRepository(pool)
	leadRepo := leads.NewPostgresRepository(pool)
	quota := tenancy.NewQuotaChecker(rdb, cfg.DailyNudgeQuota, logger)
	catalog := slots.DefaultCatalog()
	fallback := slots.NewFallbackExtractor(catalog)
	followUps := reengage.NewPostgresStore(pool)
	notifier := notify.NewLogNotifier(logger)

	var extractor nlu.Extractor
	if cfg.NLUBaseURL != "" {
		client := nlu.NewHTTPClient(cfg.NLUBaseURL, cfg.NLUAPIKey, nlu.WithLogger(logger))
		fc := nlu.NewFailClosed(client, cfg.NLUTimeout, logger)
		fc.OnFailure(func(error) { m.NLUFailure() })
		extractor = fc
	} else {
		logger.Warn("no NLU endpoint configured, extraction runs on patterns only")
		extractor = nlu.ExtractorFunc(func(context.Context, string, string, []string) (map[string]nlu.Extraction, error) {
			return nil, nil
		})
	}

	engine := dialogue.NewEngine(dialogue.Deps{
		Tenants:           tenants,
		Leads:             leadRepo,
		Classifier:        sentiment.Default(logger),
		Extractor:         extractor,
		Fallback:          fallback,
		Catalog:           catalog,
		FollowUps:         followUps,
		Notifier:          notifier,
		Metrics:           m,
		Logger:            logger,
		PersistMaxRetries: cfg.PersistMaxRetries,
	})

	scheduler := reengage.NewScheduler(followUps, leadRepo, tenants, quota, &logDeliverer{logger: logger}, m, logger, reengage.Config{
		SweepInterval:      cfg.SweepInterval,
		IdleThreshold:      cfg.IdleThreshold,
		BatchSize:          cfg.SweepBatchSize,
		MaxFollowUps:       cfg.MaxFollowUps,
		BaseDelay:          cfg.FollowUpBaseDelay,
		MaxDelay:           cfg.FollowUpMaxDelay,
		DeliveryMaxRetries: cfg.DeliveryMaxRetries,
		Workers:            cfg.TurnWorkers,
	})
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	handler := api.New(&api.Config{
		Logger:  logger,
		Engine:  engine,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ready:   pool.Ping,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	scheduler.Stop()
	logger.Info("stopped")
}

// logDeliverer stands in for a channel adapter in deployments without one:
// outbound nudges are written to the log instead of a messaging provider.
type logDeliverer struct {
	logger *logging.Logger
}

func (d *logDeliverer) Deliver(_ context.Context, n *reengage.Nudge, message string) error {
	d.logger.Info("nudge outbound",
		"tenant_id", n.TenantID,
		"lead_id", n.LeadID.String(),
		"external_id", n.ExternalID,
		"channel", n.Channel,
		"attempt", n.Attempt,
		"message", message,
	)
	return nil
}
