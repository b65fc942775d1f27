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

func newInsertBlocksCmd() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "insert-blocks",
		Short: "Reconcile a document of city block polygons against the city inventory",
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
			mapping, err := loadBlockMapping(flags.mapping, table)
			if err != nil {
				return err
			}
			city, err := persistence.NewCityRepository().Resolve(ctx, flags.city)
			if err != nil {
				return err
			}

			resolver := services.NewResolver(domain.BlockDescriptor,
				persistence.NewBlockPeerFinder(), log)
			upserter := services.NewBlockUpserter(
				city, mapping, resolver,
				persistence.NewGeometryRepository(),
				persistence.NewBlockRepository(),
				log,
			)
			return runBatch(ctx, &flags, domain.KindBlock, table, upserter, pool, log, false)
		},
	}
	flags.register(cmd, false)
	return cmd
}
