// Package cmd holds the distributor CLI used by operators and cron jobs to run
// allocations without going through the HTTP API.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-distribution/internal/app"
	"github.com/spec-kit/lead-distribution/internal/config"
	"github.com/spec-kit/lead-distribution/internal/observability"
	"github.com/spec-kit/lead-distribution/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "distributor",
	Short: "Run lead allocation for a company from the command line",
	Long: `distributor runs the same allocation operations as the HTTP API against
the configured database. Calls are made as the system actor, so activity
records carry no staff id.`,
	SilenceUsage: true,
}

var tenantID int64

// openService builds the distribution service and a release func. Tests swap it.
var openService = func(ctx context.Context) (*service.DistributionService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return container.Distribution, func() {
		container.Close()
		_ = logger.Sync()
	}, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Int64VarP(&tenantID, "tenant", "t", 0, "company id to operate on")
}

// withService opens the service, runs fn for the selected tenant and prints the
// result as JSON.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.DistributionService, companyID int64) (any, error)) error {
	if tenantID <= 0 {
		return errors.New("--tenant must be a positive company id")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, release, err := openService(ctx)
	if err != nil {
		return fmt.Errorf("open service: %w", err)
	}
	defer release()

	out, err := fn(ctx, svc, tenantID)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
