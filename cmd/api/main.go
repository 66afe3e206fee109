package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"gorm.io/plugin/opentelemetry/tracing"

	"PinSocial/internal/config"
	"PinSocial/internal/handler"
	"PinSocial/internal/observability"
	"PinSocial/internal/pkg"
	"PinSocial/internal/repository/redis"
	"PinSocial/internal/repository/sqlstore"
	"PinSocial/internal/router"
	"PinSocial/internal/service"
	"PinSocial/pkg/logger"
)

const outboxMaxRetry = 5

func main() {
	cfgPath := os.Getenv("PINSOCIAL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/app.yaml"
	}
	cfg := config.MustLoad(cfgPath)
	obs := cfg.Observability

	log, err := logger.New(cfg.Logging.Level, obs.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("service", obs.ServiceName), zap.String("env", obs.Environment))
	log.Info("loaded config", zap.String("path", cfgPath))

	tracingShutdown, err := observability.SetupTracing(context.Background(), obs.Tracing, obs.ServiceName, obs.Environment)
	if err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracingShutdown(ctx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// 数据库
	db, err := sqlstore.Open(cfg.Database)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	if obs.Tracing.Enabled {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			log.Warn("gorm tracing plugin init failed", zap.Error(err))
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("database handle", zap.Error(err))
	}
	defer sqlDB.Close()
	log.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	// Redis
	rdb, err := redis.NewClient(context.Background(), cfg.Redis, obs.Tracing.Enabled)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	jwt, err := pkg.NewTokenManager(cfg.JWT)
	if err != nil {
		log.Fatal("jwt init failed", zap.Error(err))
	}

	var storage *pkg.ObjectStorage
	if cfg.Storage.Enabled {
		storage = pkg.NewObjectStorage(cfg.Storage)
		log.Info("configured object storage", zap.String("bucket", cfg.Storage.Bucket))
	}

	var (
		metricsRegistry *prometheus.Registry
		followMetrics   *observability.FollowMetrics
		httpMetrics     *observability.HTTPMetrics
	)
	if obs.Metrics.Enabled {
		metricsRegistry = observability.NewMetricsRegistry()
		followMetrics = observability.NewFollowMetrics(metricsRegistry)
		httpMetrics = observability.NewHTTPMetrics(metricsRegistry, obs.ServiceName)
	}

	services := service.NewRegistry(service.Deps{
		DB:      db,
		Redis:   rdb,
		JWT:     jwt,
		Storage: storage,
		Metrics: followMetrics,
		Log:     log,
	})

	// outbox 投递：kafka 未开启时只打日志，smtp 开启时额外发邮件
	senders := []service.Sender{service.LogSender(log)}
	var health *handler.HealthHandler
	if cfg.Kafka.Enabled {
		producer := pkg.NewKafkaProducer(cfg.Kafka)
		defer producer.Close()
		senders = []service.Sender{service.KafkaSender(producer)}
		health = handler.NewHealthHandler(sqlDB, rdb, producer)
		log.Info("configured kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		health = handler.NewHealthHandler(sqlDB, rdb, nil)
	}
	if cfg.SMTP.Enabled {
		senders = append(senders, service.MailSender(sqlstore.NewUserRepository(db), pkg.NewMailer(cfg.SMTP)))
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	relayer := service.NewOutboxRelayer(sqlstore.NewOutboxRepository(db, outboxMaxRetry), service.FanOut(senders...), log)
	go relayer.Run(bgCtx)
	reconciler := service.NewFollowCountReconciler(sqlstore.NewFollowCountReconcilerRepo(db), log)
	go reconciler.ReconcilerRun(bgCtx)

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(cfg, services, health, httpMetrics, log)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", cfg.Logging.RequestIDHeader},
		AllowCredentials: true,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: c.Handler(engine),
	}
	go func() {
		log.Info("starting http server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server run failed", zap.Error(err))
		}
	}()

	// 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	log.Info("server exited")
}
