package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"launchpad/config"
	"launchpad/core/events"
	"launchpad/native/amm"
	"launchpad/native/curve"
	"launchpad/native/launch"
	"launchpad/native/token"
	"launchpad/observability/logging"
	"launchpad/observability/metrics"
	"launchpad/observability/otel"
	"launchpad/rpc"
	"launchpad/storage"
)

// logEmitter forwards every engine event into the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (e *logEmitter) Emit(evt events.Event) {
	attrs := make([]any, 0, 8)
	attrs = append(attrs, slog.String("event", evt.EventType()))
	type attributed interface {
		Attributes() map[string]string
	}
	if withAttrs, ok := evt.(attributed); ok {
		for key, value := range withAttrs.Attributes() {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	e.logger.Info("launchpad event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LAUNCHPAD_ENV"))
	logger := logging.Setup("launchpadd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	params, err := cfg.LaunchParams()
	if err != nil {
		logger.Error("Invalid launch parameters", slog.Any("error", err))
		os.Exit(1)
	}
	slope, ratio, err := cfg.CurveParams()
	if err != nil {
		logger.Error("Invalid curve parameters", slog.Any("error", err))
		os.Exit(1)
	}

	if strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		shutdown, err := otel.Init(context.Background(), otel.Config{
			ServiceName: "launchpadd",
			Environment: env,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    true,
			Traces:      true,
			Metrics:     true,
		})
		if err != nil {
			logger.Error("Failed to init telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()
	manager := storage.NewManager(db)

	pricing, err := curve.NewEngine(slope, ratio)
	if err != nil {
		logger.Error("Failed to build pricing engine", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := token.NewLedger()
	ledger.SetState(manager)

	venue := amm.NewVenue()
	venue.SetState(manager)

	engine, err := launch.NewEngine(params)
	if err != nil {
		logger.Error("Failed to build launch engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetState(manager)
	engine.SetPricing(pricing)
	engine.SetLedger(ledger)
	engine.SetVenue(venue)
	engine.SetEmitter(&logEmitter{logger: logger})

	metrics.Launch()
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddress,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("Starting metrics endpoint", slog.String("addr", cfg.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics endpoint failed", slog.Any("error", err))
		}
	}()

	rpcServer := rpc.NewServer(engine, ledger, venue, rpc.Options{
		RatePerSecond: cfg.RPCRateLimitPerSecond,
		Burst:         cfg.RPCRateLimitBurst,
	})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpcServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("RPC shutdown failed", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("Metrics shutdown failed", slog.Any("error", err))
	}
}
