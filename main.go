package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"golden-seed/app"
	"golden-seed/config"
	"golden-seed/services"
)

var scheduledRunsCounter *prometheus.CounterVec

func init() {
	scheduledRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golden_scheduled_runs_total",
			Help: "Scheduled collection runs by outcome.",
		},
		[]string{"outcome"},
	)
	prometheus.MustRegister(scheduledRunsCounter)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx := context.Background()
	pipeline, err := app.New(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Pipeline setup failed", zap.Error(err))
	}
	logging.Info("Pipeline ready",
		zap.String("store", cfg.StoreBackend),
		zap.String("score_policy", cfg.ScorePolicy),
		zap.Bool("snapshot_archive", cfg.ArchiveEnabled()))

	router := newRouter(pipeline)

	// Geplante Sammlung, nur wenn CRON_SCHEDULE gesetzt ist
	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		if _, err := cronScheduler.AddFunc(cfg.CronSchedule, func() { runScheduledCollection(pipeline) }); err != nil {
			logging.Fatal("Invalid CRON_SCHEDULE", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
		logging.Info("Scheduled collection enabled", zap.String("schedule", cfg.CronSchedule))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func newRouter(pipeline *app.App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	setupGoldenRoutes(router, pipeline)
	return router
}

// runScheduledCollection harvests the configured indication and classifies
// the new candidates. Seeds still go through review.
func runScheduledCollection(pipeline *app.App) {
	cfg, logging := pipeline.Config, pipeline.Logger
	ctx := context.Background()
	logging.Info("Running scheduled collection job...", zap.String("indication", cfg.CronIndication))

	collected, err := pipeline.Collector.Run(ctx, services.CollectRequest{Indication: cfg.CronIndication, Limit: cfg.CronLimit})
	if err != nil {
		scheduledRunsCounter.WithLabelValues("failed").Inc()
		logging.Error("Cron job failed", zap.Error(err))
		return
	}
	extracted, err := pipeline.Extractor.Run(ctx, services.ExtractRequest{ProcessAll: true, Limit: cfg.CronLimit})
	if err != nil {
		scheduledRunsCounter.WithLabelValues("failed").Inc()
		logging.Error("Cron extraction failed", zap.Error(err))
		return
	}
	scheduledRunsCounter.WithLabelValues("ok").Inc()
	logging.Info("Cron job completed",
		zap.Int("inserted", collected.Inserted),
		zap.Int("updated", collected.Updated),
		zap.Int("seeds_created", extracted.SeedsCreated),
		zap.Int("proposals_created", extracted.ProposalsCreated))
}
