package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/barrdunn/dutywatch-backend/internal/core"
	"github.com/barrdunn/dutywatch-backend/internal/metrics"
	natsbackend "github.com/barrdunn/dutywatch-backend/internal/nats"
	"github.com/barrdunn/dutywatch-backend/internal/notify"
	"github.com/barrdunn/dutywatch-backend/internal/scheduler"
	"github.com/barrdunn/dutywatch-backend/internal/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := server.LoadConfig()

	defaultPolicy := core.DefaultPolicy()
	if cfg.Timezone != "" {
		defaultPolicy.Timezone = cfg.Timezone
	}
	if err := defaultPolicy.Validate(); err != nil {
		slog.Error("invalid default policy", "error", err)
		os.Exit(1)
	}

	clock := core.SystemClock()

	// Connect to NATS
	backend, err := natsbackend.New(cfg.NatsURL, defaultPolicy, clock)
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	slog.Info("connected to NATS", "url", cfg.NatsURL)

	// Initialize Prometheus server info metric
	metrics.Init(core.Version, "nats")

	// Real-time change events ride on NATS core pub/sub
	broker := natsbackend.NewEventBroker(backend.Conn())
	defer broker.Close()
	backend.SetEventPublisher(broker)

	var notifier core.Notifier
	switch cfg.NotifierMode {
	case "webhook":
		if cfg.WebhookURL == "" {
			slog.Error("DW_NOTIFIER=webhook requires DW_WEBHOOK_URL")
			os.Exit(1)
		}
		notifier = notify.NewWebhook(cfg.WebhookURL, cfg.DispatchTimeout)
	default:
		notifier = notify.NewSimulator(slog.Default())
	}

	// Background jobs: import, dispatch sweep, cleanup
	driver := scheduler.NewDriver(backend, backend.Acks(), notifier, broker, clock, cfg.DispatchTimeout)

	var importer *scheduler.Importer
	var referenced func(string) bool
	if cfg.PairingFeedURL != "" {
		source := scheduler.NewHTTPSource(cfg.PairingFeedURL, cfg.FeedTimeout)
		importer = scheduler.NewImporter(source, backend)
		referenced = importer.Referenced
	} else {
		slog.Warn("no pairing feed configured, import job disabled")
	}
	cleaner := scheduler.NewCleaner(backend, clock, cfg.CleanupGrace, referenced)

	sched := scheduler.New(driver, importer, cleaner, scheduler.Intervals{
		Import:   cfg.ImportInterval,
		Dispatch: cfg.DispatchInterval,
		Cleanup:  cfg.CleanupInterval,
	})
	sched.Start()
	defer sched.Stop()

	// HTTP server
	router := server.NewRouter(backend, clock)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("dutywatch server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// gRPC health endpoint for orchestrator probes
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("dutywatch.v1.DutyWatch", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
			os.Exit(1)
		}
		slog.Info("dutywatch gRPC health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	sched.Stop()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
