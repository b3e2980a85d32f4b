package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-distribution/internal/api/dto"
	"github.com/spec-kit/lead-distribution/internal/service"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect distribution settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the company's distribution settings",
	Long:  `Prints the stored settings, or null when the company has never saved any.`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var reseedCmd = &cobra.Command{
	Use:   "reseed",
	Short: "Rebuild the round robin order from the active roster",
	Args:  cobra.NoArgs,
	RunE:  runReseed,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(reseedCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *service.DistributionService, companyID int64) (any, error) {
		settings, err := svc.GetSettings(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return dto.NewSettingsResponse(settings), nil
	})
}

func runReseed(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *service.DistributionService, companyID int64) (any, error) {
		settings, err := svc.ReseedRotation(ctx, companyID, nil)
		if err != nil {
			return nil, err
		}
		return dto.NewSettingsResponse(settings), nil
	})
}
