package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-distribution/internal/api/dto"
	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/service"
)

type assignFunc func(svc *service.DistributionService, ctx context.Context, companyID int64, assignedBy *int64, count int) (*domain.AssignmentResult, error)

var strategyRunners = map[string]assignFunc{
	"automatic":   (*service.DistributionService).AssignAutomatic,
	"round-robin": (*service.DistributionService).AssignRoundRobin,
	"performance": (*service.DistributionService).AssignPerformanceBased,
}

var assignCount int

var assignCmd = &cobra.Command{
	Use:       "assign <automatic|round-robin|performance>",
	Short:     "Assign unassigned leads with an explicit strategy",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"automatic", "round-robin", "performance"},
	RunE:      runAssign,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assign leads with the company's saved strategy",
	Long: `Runs the strategy stored in the company's settings. A zero --count
falls back to the saved default_count parameter.`,
	Args: cobra.NoArgs,
	RunE: runConfigured,
}

var runCount int

func init() {
	assignCmd.Flags().IntVarP(&assignCount, "count", "n", 10, "maximum number of leads to assign (1-100)")
	runCmd.Flags().IntVarP(&runCount, "count", "n", 0, "maximum number of leads to assign; 0 uses the saved default")
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(runCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	assign, ok := strategyRunners[args[0]]
	if !ok {
		return fmt.Errorf("unknown strategy %q", args[0])
	}
	return withService(cmd, func(ctx context.Context, svc *service.DistributionService, companyID int64) (any, error) {
		result, err := assign(svc, ctx, companyID, nil, assignCount)
		if err != nil {
			return nil, err
		}
		return dto.NewAssignmentResponse(result), nil
	})
}

func runConfigured(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *service.DistributionService, companyID int64) (any, error) {
		result, err := svc.RunConfigured(ctx, companyID, nil, runCount)
		if err != nil {
			return nil, err
		}
		return dto.NewAssignmentResponse(result), nil
	})
}
