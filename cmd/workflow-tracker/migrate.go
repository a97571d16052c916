package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := loadConfig()
		if err != nil {
			return err
		}
		defer flush()

		zap.S().Infof("Using config: %s", cfg)

		s, err := openStore(context.Background(), cfg)
		if err != nil {
			zap.S().Errorw("migrating data store", "error", err)
			return err
		}
		defer s.Close()

		zap.S().Info("Db migrated")
		return nil
	},
}
