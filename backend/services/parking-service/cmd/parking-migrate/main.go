package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parkwise/backend/libs/logging"
	"parkwise/backend/services/parking-service/internal/config"
	"parkwise/backend/services/parking-service/internal/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string
	root := &cobra.Command{
		Use:           "parking-migrate",
		Short:         "Manage the parking-service database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to the service configuration)")

	resolve := func() (string, *zap.Logger, error) {
		logger, err := logging.NewLogger("parking-migrate")
		if err != nil {
			return "", nil, err
		}
		if dsn != "" {
			return dsn, logger, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", nil, err
		}
		return cfg.Database.DSN, logger, nil
	}

	root.AddCommand(
		newApplyCmd("up", "Apply all pending migrations", db.Up, resolve),
		newApplyCmd("down", "Roll back every migration", db.Down, resolve),
		newVersionCmd(resolve),
	)
	return root
}

type resolver func() (string, *zap.Logger, error)

func newApplyCmd(use, short string, direction db.Direction, resolve resolver) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, logger, err := resolve()
			if err != nil {
				return err
			}
			defer logger.Sync()

			err = db.Migrate(dsn, direction)
			if errors.Is(err, db.ErrNoChange) {
				logger.Info("schema unchanged", zap.String("direction", string(direction)))
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.String("direction", string(direction)))
			return nil
		},
	}
}

func newVersionCmd(resolve resolver) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _, err := resolve()
			if err != nil {
				return err
			}
			version, dirty, err := db.Version(dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
}
