package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/persistence"
	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/tabular"
	"github.com/cityatlas/platform-management/modules/inventory/services"
	"github.com/cityatlas/platform-management/pkg/configuration"
)

func newInsertBuildingsCmd() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "insert-buildings",
		Short: "Reconcile a document of buildings against the city inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := configuration.Use().Logger()
			ctx, pool, err := openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			table, err := tabular.Load(flags.file)
			if err != nil {
				return fmt.Errorf("loading %s: %w", flags.file, err)
			}
			mapping, err := loadBuildingMapping(flags.mapping, table)
			if err != nil {
				return err
			}
			props, err := flags.propertiesMapping()
			if err != nil {
				return err
			}
			city, err := persistence.NewCityRepository().Resolve(ctx, flags.city)
			if err != nil {
				return err
			}

			desc := domain.BuildingDescriptor
			resolver := services.NewResolver(desc,
				persistence.NewBuildingPeerFinder(desc.AddressDistanceM), log)
			upserter := services.NewBuildingUpserter(
				city, mapping, props, flags.normalizer(), resolver,
				persistence.NewGeometryRepository(),
				persistence.NewObjectRepository(),
				persistence.NewBuildingRepository(),
				log,
			)
			return runBatch(ctx, &flags, domain.KindBuilding, table, upserter, pool, log, true)
		},
	}
	flags.register(cmd, true)
	return cmd
}
