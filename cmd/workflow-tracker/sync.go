package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aide-monitoring/workflow-tracker/internal/bookkeeper"
	"github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1/mappers"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

var legalOutputTypes = []string{"text", "json"}

var syncOutput string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Recover lost workflows from the Mercure Bookkeeper history",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !funk.Contains(legalOutputTypes, syncOutput) {
			return fmt.Errorf("output format must be one of %v", legalOutputTypes)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := loadConfig()
		if err != nil {
			return err
		}
		defer flush()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		bk, err := bookkeeper.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer bk.Close()

		producer := newEventProducer(cfg)
		defer producer.Close()

		result, err := service.NewSyncService(s, bk, newUpstreamClient(cfg), producer).Sync(ctx)
		if err != nil {
			zap.S().Errorw("sync failed", "error", err)
			return err
		}

		if syncOutput == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(mappers.SyncToApi(result))
		}

		for _, study := range result.Studies {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", study.StudyID, study.StudyUID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recovered %d studies from Mercure Bookkeeper\n", result.Synced)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "text", fmt.Sprintf("Output format: %v", legalOutputTypes))
}
