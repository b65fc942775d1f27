package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/persistence"
	"github.com/cityatlas/platform-management/pkg/composables"
	"github.com/cityatlas/platform-management/pkg/configuration"
)

func newUpdateLocationsCmd() *cobra.Command {
	var city string
	var skipAreas bool
	var views []string
	var skipViews bool
	cmd := &cobra.Command{
		Use:   "update-locations",
		Short: "Re-derive missing containment links, backfill building areas and refresh reporting views",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := configuration.Use().Logger()
			ctx, pool, err := openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			cityRec, err := persistence.NewCityRepository().Resolve(ctx, city)
			if err != nil {
				return err
			}
			maintenance := persistence.NewMaintenanceRepository(log)
			return composables.InTx(ctx, func(ctx context.Context) error {
				if err := maintenance.FillMissingLocations(ctx, cityRec.ID); err != nil {
					return err
				}
				if !skipAreas {
					if err := maintenance.FillBuildingAreas(ctx); err != nil {
						return err
					}
				}
				if skipViews {
					return nil
				}
				return maintenance.RefreshMaterializedViews(ctx, views)
			})
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "City name or code (required)")
	cmd.Flags().BoolVar(&skipAreas, "skip-areas", false, "Skip the building area backfill")
	cmd.Flags().StringSliceVar(&views, "view", nil, "Materialized view to refresh (repeatable, default all_buildings and all_services)")
	cmd.Flags().BoolVar(&skipViews, "skip-views", false, "Skip refreshing materialized views")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}
