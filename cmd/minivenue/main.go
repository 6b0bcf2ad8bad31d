package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/YangLiliang/minivenue/internal/config"
	"github.com/YangLiliang/minivenue/internal/engine"
	"github.com/YangLiliang/minivenue/internal/handler"
	"github.com/YangLiliang/minivenue/internal/pump"
	"github.com/YangLiliang/minivenue/internal/rpc"
	"github.com/YangLiliang/minivenue/internal/session"
	"github.com/YangLiliang/minivenue/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to the ops /healthz, exit 0/1.
	if *healthcheck {
		addr := os.Getenv("OPS_ADDR")
		if addr == "" {
			addr = ":8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost%s/healthz", addr))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores and indices.
	orderStore := store.NewOrderStore()
	clientIndex := store.NewClientIndex()
	feedBuffer := store.NewFeedBuffer()
	books := engine.NewBookIndex()

	// Engine (owns its simulated-fill scheduler).
	matcher := engine.NewMatcher(
		orderStore,
		clientIndex,
		books,
		feedBuffer,
		cfg.SchedulerInterval,
		cfg.FillDwell,
		logger,
	)

	// Session plumbing.
	registry := session.NewRegistry(logger)
	dispatcher := session.NewDispatcher(cfg.WorkerCount, cfg.QueueCapacity, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(ctx)
	matcher.Scheduler().Start(ctx)

	// grpc server with the venue service and transport health.
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", slog.String("addr", cfg.GRPCAddr), slog.String("error", err.Error()))
		os.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	rpc.RegisterOrderService(grpcSrv, rpc.NewServer(matcher, registry, dispatcher, logger))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc server starting", slog.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Loopback feed pump against our own listener.
	conn, err := grpc.NewClient(loopbackTarget(cfg.GRPCAddr),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error("failed to dial loopback", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()
	go pump.New(rpc.NewFeedClient(conn), cfg.PumpInterval, logger).Run(ctx)

	// Ops sidecar: health, metrics, book inspection.
	opsSrv := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: handler.NewRouter(matcher, logger),
	}
	go func() {
		logger.Info("ops server starting", slog.String("addr", cfg.OpsAddr))
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop accepting, drain streams, stop background
	// goroutines, stop the ops server.
	healthSrv.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}

	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// loopbackTarget turns a listen address into a dialable localhost target.
func loopbackTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
