package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tejusbharadwaj/vueswitch/internal/accessory"
	"github.com/tejusbharadwaj/vueswitch/internal/config"
	"github.com/tejusbharadwaj/vueswitch/internal/database"
	server "github.com/tejusbharadwaj/vueswitch/internal/grpc"
	"github.com/tejusbharadwaj/vueswitch/internal/history"
	"github.com/tejusbharadwaj/vueswitch/internal/host"
	"github.com/tejusbharadwaj/vueswitch/internal/metrics"
	"github.com/tejusbharadwaj/vueswitch/internal/monitor"
	"github.com/tejusbharadwaj/vueswitch/internal/scheduler"
	"github.com/tejusbharadwaj/vueswitch/internal/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the virtual switch",
	Long: `Starts the switch daemon: publishes the switch to the enabled hosts,
refreshes its state on schedule and serves metrics, status and gRPC health.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func hostInfo(cfg *config.Config) host.Info {
	return host.Info{
		Name:         cfg.Switch.Name,
		UniqueID:     cfg.Switch.UniqueID,
		Manufacturer: "Emporia Energy",
		Model:        "Vue Virtual Switch",
		Firmware:     version,
	}
}

// buildHosts returns every enabled host platform.
func buildHosts(cfg *config.Config, logger *logrus.Logger) (host.Multi, error) {
	info := hostInfo(cfg)

	var hosts host.Multi
	if cfg.HomeKit.Enabled {
		hk, err := host.NewHomeKit(cfg.HomeKit, info, logger)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, hk)
	}
	if cfg.MQTT.Enabled {
		mq, err := host.NewMQTT(cfg.MQTT, info, logger)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, mq)
	}
	if len(hosts) == 0 {
		logger.Warn("No host platform enabled, switch state is only visible on the status server")
	}
	return hosts, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	logger.Info("Emporia Vue Virtual Switch starting")
	logConfig(logger, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	recent, err := history.NewRecent(cfg.Server.HistorySize)
	if err != nil {
		return fmt.Errorf("creating reading history: %w", err)
	}

	health := server.NewHealthChecker()
	observers := []monitor.Observer{collector, recent, health}

	if cfg.Database.Enabled {
		repo, err := database.NewSQLRepo(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening reading store: %w", err)
		}
		defer repo.Close()
		observers = append(observers, database.NewRecorder(repo, logger))
	}

	mon := monitor.New(newAPIClient(cfg, logger), monitorSettings(cfg), logger, observers...)

	hosts, err := buildHosts(cfg, logger)
	if err != nil {
		return fmt.Errorf("setting up hosts: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	acc := accessory.New(gctx, cfg.Switch.Name, mon, hosts, logger)
	g.Go(func() error { return hosts.Run(gctx) })
	g.Go(func() error {
		<-acc.Init()
		return nil
	})

	sched, err := scheduler.NewScheduler(gctx, acc.Refresh, cfg.Switch.RefreshIntervalMinutes,
		cfg.Switch.Timezone, logger, scheduler.WithTickHook(collector.ObserveTick))
	if err != nil {
		return abort(stop, g, err)
	}
	if err := sched.Start(); err != nil {
		return abort(stop, g, err)
	}
	g.Go(func() error {
		<-gctx.Done()
		<-sched.Stop().Done()
		return nil
	})

	grpcSrv := server.SetupServer(health, server.ServerConfig{
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, collector, logger)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return abort(stop, g, fmt.Errorf("failed to listen: %w", err))
	}
	g.Go(func() error {
		logger.WithField("port", cfg.Server.GRPCPort).Info("Starting gRPC server")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcSrv.GracefulStop()
		return nil
	})

	statusSrv := status.NewServer(status.Options{
		Port:           cfg.Server.HTTPPort,
		ChannelName:    cfg.Emporia.ChannelName,
		ThresholdWatts: cfg.Switch.WattageThreshold,
		Gatherer:       reg,
		State:          acc,
		History:        recent,
		Health:         health,
	}, logger)
	g.Go(func() error { return statusSrv.Run(gctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("vueswitch stopped with error")
		return err
	}
	logger.Info("vueswitch stopped")
	return nil
}

// abort cancels everything already started in g, waits for it and returns
// err.
func abort(stop context.CancelFunc, g *errgroup.Group, err error) error {
	stop()
	g.Wait()
	return err
}
