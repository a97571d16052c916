package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/aide-monitoring/workflow-tracker/internal/api_server"
	"github.com/aide-monitoring/workflow-tracker/internal/bookkeeper"
	handlers "github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	"github.com/aide-monitoring/workflow-tracker/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking api and the background reconcilers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := loadConfig()
		if err != nil {
			return err
		}
		defer flush()

		zap.S().Info("Starting workflow tracker")
		defer zap.S().Info("Workflow tracker stopped")
		zap.S().Infof("Using config: %s", cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		s, err := openStore(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		defer s.Close()

		bk, err := bookkeeper.New(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("initializing bookkeeper client", "error", err)
		}
		defer bk.Close()

		producer := newEventProducer(cfg)
		defer producer.Close()

		gateway := newGatewayClient(cfg)
		upstream := newUpstreamClient(cfg)
		zap.S().Infow("orthanc endpoints", "gateway", gateway.BaseURL(), "upstream", upstream.BaseURL())

		manager := worker.NewManager(
			worker.NewJobPoller(s, gateway, producer),
			worker.NewEnricher(s, bk, producer, cfg.Service.EnrichBatchSize),
			cfg.Service.PollInterval(),
			cfg.Service.EnrichmentInterval(),
		)
		manager.Start(ctx)

		h := handlers.NewServiceHandler(
			service.NewTrackingService(s, producer),
			service.NewWorkflowService(s, upstream),
			service.NewFunnelService(s, upstream),
			service.NewMercureService(s, bk, producer),
			service.NewSyncService(s, bk, upstream, producer),
		)

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, h, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("Error running server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, s)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("Error running metrics server", "error", err)
			}
		}()

		<-ctx.Done()
		manager.Wait()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
