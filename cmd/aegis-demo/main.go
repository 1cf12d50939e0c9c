// Command aegis-demo runs a protected flaky operation in a loop and serves
// the resulting Prometheus metrics, showing how a host wires the core.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aponysus/aegis"
	"github.com/aponysus/aegis/config"
	"github.com/aponysus/aegis/events"
	"github.com/aponysus/aegis/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (optional)")
	metricsAddr := flag.String("metrics", ":2112", "metrics listen address")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	var guardOpts []aegis.Option
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			slog.New(tint.NewHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
			os.Exit(1)
		}
		if cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		guardOpts = append(guardOpts,
			aegis.WithDefaultPolicy(cfg.Policy()),
			aegis.WithBreakerConfig(cfg.BreakerConfig()),
			aegis.WithHistoryConfig(cfg.HistoryStoreConfig()),
		)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", level.String())

	guard := aegis.New(guardOpts...)
	defer guard.Cleanup()

	logSubs := guard.Notifier().SubscribeAll(events.LogTo(logger))
	defer func() {
		for _, sub := range logSubs {
			guard.Unsubscribe(sub)
		}
	}()

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)
	collector.Attach(guard.Notifier())
	defer collector.Detach(guard.Notifier())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	go func() {
		slog.Info("metrics server listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opCtx := aegis.OperationContext{Service: "demo", Operation: "flaky-call"}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := guard.Statistics(0)
			slog.Info("shutting down", "errors_recorded", stats.Total)
			return
		case <-ticker.C:
			result, err := aegis.ExecuteValue(ctx, guard, opCtx, flakyCall)
			if err != nil {
				slog.Warn("call failed", "error", err)
				continue
			}
			slog.Debug("call succeeded", "result", result)
		}
	}
}

// flakyCall fails roughly half the time with a mix of error shapes.
func flakyCall(ctx context.Context) (string, error) {
	switch rand.Intn(6) {
	case 0:
		return "", errors.New("connection refused by upstream server")
	case 1:
		return "", errors.New("request timeout after 5s")
	case 2:
		return "", fmt.Errorf("api responded with status 503")
	default:
		return "ok", nil
	}
}
