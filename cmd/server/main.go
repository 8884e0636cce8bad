package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LingByte/TutorConnect/cmd/bootstrap"
	"github.com/LingByte/TutorConnect/pkg/broker"
	"github.com/LingByte/TutorConnect/pkg/config"
	"github.com/LingByte/TutorConnect/pkg/handlers"
	"github.com/LingByte/TutorConnect/pkg/jobs"
	"github.com/LingByte/TutorConnect/pkg/lifecycle"
	"github.com/LingByte/TutorConnect/pkg/logger"
	"github.com/LingByte/TutorConnect/pkg/metrics"
	"github.com/LingByte/TutorConnect/pkg/signaling"
	"github.com/LingByte/TutorConnect/pkg/utils"
	rtcconfig "github.com/LingByte/TutorConnect/pkg/webrtc/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Parse Command Line Parameters
	addr := flag.String("port", "", "Port to listen on (defaults to ADDR)")
	mode := flag.String("mode", "", "running environment (development, test, production)")
	migrate := flag.Bool("migrate", true, "create or update the call record table")
	flag.Parse()
	if *mode != "" {
		os.Setenv("MODE", *mode)
	}
	// 2. Load Global Configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig
	// 3. Load Log Configuration
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()
	// 4. Print Banner
	if err := bootstrap.PrintBannerFromFile("banner.txt", cfg.ServerName); err != nil {
		log.Fatalf("unload banner: %v", err)
	}
	// 5. Print Configuration
	bootstrap.LogConfigInfo()
	// 6. Load Data Source
	db, callStore, err := bootstrap.SetupDatabase(os.Stdout, &bootstrap.Options{AutoMigrate: *migrate})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if *addr == "" {
		*addr = cfg.Addr
	}
	if !strings.Contains(*addr, ":") {
		*addr = ":" + *addr
	}

	instance := utils.NewInstanceID()
	logger.Info("checked config", zap.String("addr", *addr), zap.String("instance", instance), zap.String("mode", cfg.Mode))

	// 7. Metrics and lifecycle sinks
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	sinks := []lifecycle.Sink{callStore}
	if cfg.Redis.Addr != "" {
		pub := broker.NewRedisPublisher(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := pub.Ping(ctx)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, room events will not be published", zap.Error(err))
			pub.Close()
		} else {
			logger.Info("publishing room events to redis", zap.String("channel", pub.Channel()))
			sinks = append(sinks, pub)
			defer pub.Close()
		}
	}
	dispatcher := lifecycle.NewDispatcher(cfg.Signal.LifecycleQueueSize, instance, logger.Named("lifecycle"), m, sinks...)

	// 8. Signaling hub
	hub := signaling.NewHub(signaling.Options{
		QueueSize: cfg.Signal.HubQueueSize,
		Logger:    logger.Named("signaling"),
		Metrics:   m,
		Publisher: dispatcher,
		Instance:  instance,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// 9. Jobs
	scheduler := jobs.New(logger.Named("jobs"))
	if err := scheduler.AddRetention("@daily", callStore, cfg.CallRetentionDays); err != nil {
		logger.Error("schedule retention job", zap.Error(err))
		return
	}
	if err := scheduler.AddRoomStats("@every 1m", hub); err != nil {
		logger.Error("schedule room stats job", zap.Error(err))
		return
	}
	scheduler.Start()

	// 10. HTTP
	iceServers, err := rtcconfig.LoadICEServers(cfg.ICEServersFile)
	if err != nil {
		logger.Error("load ice servers", zap.String("file", cfg.ICEServersFile), zap.Error(err))
		return
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()        // Use gin.New() instead of gin.Default() to avoid automatic redirects
	r.Use(gin.Recovery()) // Manually add Recovery middleware
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	handlers.New(handlers.Options{
		Hub:            hub,
		Calls:          callStore,
		ICEServers:     iceServers,
		Cache:          utils.InitGlobalCache(cfg.StatsCacheTTL, 5*time.Minute),
		CacheTTL:       cfg.StatsCacheTTL,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
		ReadBuffer:     cfg.Signal.ReadBufferSize,
		WriteBuffer:    cfg.Signal.WriteBufferSize,
		Client: signaling.ClientOptions{
			PongWait:       cfg.Signal.PongWait,
			MaxMessageSize: cfg.Signal.MaxMessageSize,
			SendQueueSize:  cfg.Signal.SendQueueSize,
		},
		Gatherer: registry,
		Logger:   logger.Named("http"),
	}).Register(r)

	httpServer := &http.Server{
		Addr:           *addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if cfg.SSLEnabled && cfg.SSLCertFile != "" && cfg.SSLKeyFile != "" {
			logger.Info("Starting HTTPS server", zap.String("addr", *addr))
			serveErr <- httpServer.ListenAndServeTLS(cfg.SSLCertFile, cfg.SSLKeyFile)
			return
		}
		if cfg.SSLEnabled {
			logger.Warn("SSL enabled but certificate or key missing, falling back to HTTP")
		}
		logger.Info("Starting HTTP server", zap.String("addr", *addr))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server run failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	stopHub()
	<-hub.Done()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("lifecycle events not flushed", zap.Error(err))
	}
	logger.Info("server stopped")
}
