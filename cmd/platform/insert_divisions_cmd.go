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

func newInsertDivisionsCmd() *cobra.Command {
	var flags batchFlags
	var division string
	cmd := &cobra.Command{
		Use:   "insert-divisions",
		Short: "Reconcile a document of territorial divisions against the city inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind domain.EntityKind
			var desc domain.KindDescriptor
			switch division {
			case "administrative_unit", "adm":
				kind, desc = domain.KindAdministrativeUnit, domain.AdministrativeUnitDescriptor
			case "municipality", "mun":
				kind, desc = domain.KindMunicipality, domain.MunicipalityDescriptor
			default:
				return fmt.Errorf("unsupported --division %q, expected administrative_unit or municipality", division)
			}

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
			mapping, err := loadDivisionMapping(flags.mapping, table)
			if err != nil {
				return err
			}
			cities := persistence.NewCityRepository()
			city, err := cities.Resolve(ctx, flags.city)
			if err != nil {
				return err
			}
			types, err := cities.DivisionTypes(ctx, kind)
			if err != nil {
				return err
			}

			resolver := services.NewResolver(desc, persistence.NewDivisionPeerFinder(kind), log)
			upserter := services.NewDivisionUpserter(
				city, kind, mapping, types, resolver,
				persistence.NewGeometryRepository(),
				persistence.NewDivisionRepository(kind),
				log,
			)
			return runBatch(ctx, &flags, kind, table, upserter, pool, log, false)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringVar(&division, "division", "administrative_unit", "Hierarchy to target: administrative_unit or municipality")
	return cmd
}
