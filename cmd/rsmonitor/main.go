// Command rsmonitor runs the replica-set monitoring process: it loads
// configuration, starts a Watcher against every configured replica set,
// and serves the debug HTTP surface until told to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/devrev/rsmon/internal/config"
	"github.com/devrev/rsmon/internal/httpapi"
	"github.com/devrev/rsmon/internal/metrics"
	"github.com/devrev/rsmon/internal/registry"
	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := buildLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting rsmonitor")

	m := metrics.New()
	dialer := rpc.NewNodeDialer(cfg.Monitor.ConnectTimeout)
	reg := registry.New(dialer, cfg.Monitor, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, rs := range cfg.Monitor.ReplicaSets {
		seeds, err := parseSeeds(rs.Seeds)
		if err != nil {
			logger.Fatal("invalid seed list", zap.String("replica_set", rs.Name), zap.Error(err))
		}
		reg.Get(ctx, rs.Name, seeds)
		logger.Info("registered replica set", zap.String("replica_set", rs.Name), zap.Strings("seeds", rs.Seeds))
	}

	watcher := registry.NewWatcher(reg, cfg.Watcher.Interval, logger)
	go watcher.Run(ctx)

	var httpServer *httpapi.Server
	if cfg.DebugHTTP.Enabled {
		httpServer = httpapi.NewServer(cfg.DebugHTTP, reg, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error("debug http server error", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("debug http server shutdown failed", zap.Error(err))
		}
	}

	logger.Info("rsmonitor shutdown complete")
}

func parseSeeds(raw []string) ([]topology.Addr, error) {
	addrs := make([]topology.Addr, 0, len(raw))
	for _, s := range raw {
		addr, err := topology.ParseAddr(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func buildLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
