package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/persistence"
	"github.com/cityatlas/platform-management/modules/inventory/infrastructure/tabular"
	"github.com/cityatlas/platform-management/modules/inventory/services"
	"github.com/cityatlas/platform-management/pkg/configuration"
)

func newInsertServicesCmd() *cobra.Command {
	var flags batchFlags
	var serviceType string
	cmd := &cobra.Command{
		Use:   "insert-services",
		Short: "Reconcile a document of services of one type against the city inventory",
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
			mapping, err := loadServiceMapping(flags.mapping, table)
			if err != nil {
				return err
			}
			props, err := flags.propertiesMapping()
			if err != nil {
				return err
			}
			cities := persistence.NewCityRepository()
			city, err := cities.Resolve(ctx, flags.city)
			if err != nil {
				return err
			}
			st, err := cities.ServiceType(ctx, serviceType)
			if err != nil {
				return err
			}

			// Building-bound services locate their host through buildings
			// with a looser address radius; the rest match bare objects by
			// geometry only.
			var resolver *services.Resolver
			if st.IsBuilding {
				desc := domain.ServiceBuildingDescriptor
				resolver = services.NewResolver(desc,
					persistence.NewBuildingPeerFinder(desc.AddressDistanceM), log)
			} else {
				resolver = services.NewResolver(domain.ServiceObjectDescriptor,
					persistence.NewObjectPeerFinder(), log)
			}
			upserter := services.NewServiceUpserter(
				city, st, mapping, props, flags.normalizer(), resolver,
				persistence.NewGeometryRepository(),
				persistence.NewObjectRepository(),
				persistence.NewServiceRepository(),
				rand.New(rand.NewSource(time.Now().UnixNano())),
				log,
			)
			return runBatch(ctx, &flags, domain.KindService, table, upserter, pool, log, false)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&serviceType, "service-type", "", "Service type name or code (required)")
	_ = cmd.MarkFlagRequired("service-type")
	return cmd
}
