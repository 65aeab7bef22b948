package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"themis/internal/affinity"
	"themis/internal/coordinator"
	"themis/internal/paramreg"
	"themis/internal/resourcesched"
	"themis/internal/schedpolicy"
	"themis/internal/statuslog"
	"themis/internal/stats"
	"themis/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [config.yaml | -KEY value ...]",
		Short: "Start the scheduling and I/O substrate for one node",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			registry, err := paramreg.ParseCommandLine(logger, args)
			if err != nil {
				return fmt.Errorf("parse parameters: %w", err)
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, logger, registry)
		},
	}
}

// services bundles every ambient component run owns, so Stop can tear
// them down in the reverse order they were started.
type services struct {
	statWriter       *stats.Writer
	statusPrinter    *statuslog.Printer
	intervalLogger   *telemetry.IntervalLogger
	resourceMonitor  *telemetry.ResourceMonitor
	coordinatorClose func() error
}

func run(ctx context.Context, logger *slog.Logger, registry *paramreg.Registry) error {
	svc := &services{}
	defer svc.stop(logger)

	nodeID := stringOpt(registry, "NODE_ID")
	if nodeID == "" {
		nodeID = uuid.NewString()
		logger.Info("generated node id", "node_id", nodeID)
	}

	if boolOr(registry, "ENABLE_STAT_WRITER", false) {
		statsPath := stringOr(registry, "STATS_PATH", "themis-stats.log")
		f, err := os.Create(statsPath)
		if err != nil {
			return fmt.Errorf("create stats file: %w", err)
		}
		svc.statWriter = stats.NewWriter(logger, f, boolOr(registry, "COMPRESS_STATS", false))
		svc.statWriter.Start()
		logger.Info("stat writer started", "path", statsPath)
	}

	if boolOr(registry, "ENABLE_STATUS_PRINTER", true) {
		svc.statusPrinter = statuslog.New(logger, os.Stdout)
		svc.statusPrinter.Start()
	}

	client := buildCoordinatorClient(logger, registry, nodeID, svc)

	// run bootstraps the node's substrate services and blocks until shutdown;
	// it does not itself drive phases or workers, so the scheduler, affinity
	// config, and coordinator client are constructed and their resolved
	// settings logged here, held for a phase driver (out of scope) to
	// actually consume rather than exercised directly.
	var scheduler *resourcesched.Scheduler
	capacity := uint64OrDefault(registry, "RESOURCE_CAPACITY", 0)
	if capacity > 0 {
		policyName := stringOr(registry, "SCHED_POLICY", "fcfs")
		policy := buildSchedPolicy(policyName)
		var mu sync.Mutex
		scheduler = resourcesched.New(logger, capacity, policy, &mu)
		logger.Info("resource scheduler ready", "capacity", capacity, "policy", policyName)
	}

	if coresPerNode := uint64OrDefault(registry, "CORES_PER_NODE", 0); coresPerNode > 0 {
		affinityCfg := affinity.New(logger, int(coresPerNode))
		logger.Info("cpu affinity configured", "cores_per_node", coresPerNode)
		_ = affinityCfg
	}

	if pollUS := uint64OrDefault(registry, "INTERVAL_STAT_POLL_US", 0); pollUS > 0 && svc.statWriter != nil {
		svc.intervalLogger = telemetry.NewIntervalLogger(logger, time.Duration(pollUS)*time.Microsecond, func(name string, v uint64) {
			logger.Debug("interval stat", "name", name, "value", v)
		})
		svc.intervalLogger.Start()
	}

	if monitorAddr := stringOpt(registry, "RESOURCE_MONITOR_ADDR"); monitorAddr != "" {
		rm, err := telemetry.NewResourceMonitor(logger, monitorAddr, func() []telemetry.ResourceSnapshot {
			if scheduler == nil {
				return nil
			}
			return []telemetry.ResourceSnapshot{{Name: "scheduler", Capacity: capacity, Available: scheduler.GetAvailability()}}
		})
		if err != nil {
			return fmt.Errorf("start resource monitor: %w", err)
		}
		svc.resourceMonitor = rm
	}

	_ = client

	g, gctx := errgroup.WithContext(ctx)
	if svc.resourceMonitor != nil {
		g.Go(func() error {
			svc.resourceMonitor.Serve()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if svc.resourceMonitor != nil {
			svc.resourceMonitor.Close()
		}
		return nil
	})

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return g.Wait()
}

func buildCoordinatorClient(logger *slog.Logger, registry *paramreg.Registry, nodeID string, svc *services) coordinator.Client {
	mode := stringOr(registry, "COORDINATOR_MODE", "none")
	switch mode {
	case "redis":
		addr := stringOr(registry, "REDIS_ADDR", "127.0.0.1:6379")
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		svc.coordinatorClose = rdb.Close
		logger.Info("coordinator client ready", "mode", mode, "addr", addr, "node_id", nodeID)
		return coordinator.NewRedisClient(logger, rdb, nodeID)
	case "debug":
		logger.Info("coordinator client ready", "mode", mode, "node_id", nodeID)
		return coordinator.NewDebugClient(logger, nodeID)
	default:
		logger.Info("coordinator client ready", "mode", "none", "node_id", nodeID)
		return coordinator.NoneClient{}
	}
}

func buildSchedPolicy(name string) schedpolicy.Policy {
	switch name {
	case "mlfq":
		return schedpolicy.NewMLFQ(nil)
	default:
		return schedpolicy.NewFCFS()
	}
}

func (s *services) stop(logger *slog.Logger) {
	if s.resourceMonitor != nil {
		s.resourceMonitor.Close()
	}
	if s.intervalLogger != nil {
		s.intervalLogger.Stop()
	}
	if s.coordinatorClose != nil {
		if err := s.coordinatorClose(); err != nil {
			logger.Warn("coordinator client close error", "error", err)
		}
	}
	if s.statusPrinter != nil {
		s.statusPrinter.Stop()
	}
	if s.statWriter != nil {
		s.statWriter.Stop()
	}
}

func stringOr(r *paramreg.Registry, key, def string) string {
	if !r.Contains(key) {
		return def
	}
	return r.GetString(key)
}

func stringOpt(r *paramreg.Registry, key string) string {
	if !r.Contains(key) {
		return ""
	}
	return r.GetString(key)
}

func boolOr(r *paramreg.Registry, key string, def bool) bool {
	if !r.Contains(key) {
		return def
	}
	return r.GetBool(key)
}

func uint64OrDefault(r *paramreg.Registry, key string, def uint64) uint64 {
	if !r.Contains(key) {
		return def
	}
	return r.GetUint64(key)
}
