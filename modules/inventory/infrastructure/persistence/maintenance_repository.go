package persistence

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/pkg/composables"
)

// MaintenanceRepository holds the idempotent city-wide sweeps run outside
// the per-row pipeline: re-deriving null containment links, backfilling
// building areas and refreshing reporting views.
type MaintenanceRepository struct {
	log *logrus.Entry
}

func NewMaintenanceRepository(log *logrus.Logger) *MaintenanceRepository {
	return &MaintenanceRepository{log: log.WithField("component", "maintenance")}
}

// FillMissingLocations re-derives any null administrative unit, municipality
// or block link from the object's centroid. Only null links are touched, so
// a second run produces no further change.
func (r *MaintenanceRepository) FillMissingLocations(ctx context.Context, cityID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	r.log.Info("filling missing administrative units")
	if _, err := tx.Exec(ctx, `
		UPDATE physical_objects p SET administrative_unit_id =
			(SELECT au.id FROM administrative_units au
				WHERE au.city_id = p.city_id AND ST_CoveredBy(p.center, au.geometry) LIMIT 1)
		WHERE p.administrative_unit_id IS NULL AND p.city_id = $1`,
		cityID); err != nil {
		return err
	}
	r.log.Info("filling missing municipalities")
	if _, err := tx.Exec(ctx, `
		UPDATE physical_objects p SET municipality_id =
			(SELECT m.id FROM municipalities m
				WHERE m.city_id = p.city_id AND ST_CoveredBy(p.center, m.geometry) LIMIT 1)
		WHERE p.municipality_id IS NULL AND p.city_id = $1`,
		cityID); err != nil {
		return err
	}
	r.log.Info("filling missing blocks")
	_, err = tx.Exec(ctx, `
		UPDATE physical_objects p SET block_id =
			(SELECT b.id FROM blocks b
				WHERE b.city_id = p.city_id
					AND (b.administrative_unit_id = p.administrative_unit_id
						OR b.municipality_id = p.municipality_id)
					AND ST_CoveredBy(p.center, b.geometry)
				LIMIT 1)
		WHERE p.block_id IS NULL AND p.city_id = $1`,
		cityID)
	return err
}

// FillBuildingAreas backfills the footprint area of buildings missing one,
// then models living area as footprint * storeys * 0.7, flagging the value
// as modeled so a later real value can replace it.
func (r *MaintenanceRepository) FillBuildingAreas(ctx context.Context) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	r.log.Info("backfilling building areas")
	tag, err := tx.Exec(ctx, `
		UPDATE buildings SET building_area = (
			SELECT ST_Area(geometry::geography)
			FROM physical_objects WHERE id = physical_object_id)
		WHERE building_area IS NULL`)
	if err != nil {
		return err
	}
	r.log.WithField("rows", tag.RowsAffected()).Debug("building areas set")

	r.log.Info("modeling living areas")
	tag, err = tx.Exec(ctx, `
		UPDATE buildings SET
			living_area = building_area * storeys_count * 0.7,
			modeled = modeled || '{"living_area": 1}'::jsonb
		WHERE is_living = true
			AND building_area IS NOT NULL
			AND storeys_count IS NOT NULL
			AND (living_area IS NULL
				OR modeled->>'living_area' = '1'
				OR building_area * storeys_count < living_area)`)
	if err != nil {
		return err
	}
	r.log.WithField("rows", tag.RowsAffected()).Debug("living areas modeled")
	return nil
}

// RefreshMaterializedViews refreshes the reporting views fed by the
// inventory tables. nil means the default set.
func (r *MaintenanceRepository) RefreshMaterializedViews(ctx context.Context, names []string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{"all_buildings", "all_services"}
	}
	for _, name := range names {
		r.log.WithField("view", name).Info("refreshing materialized view")
		if _, err := tx.Exec(ctx, "REFRESH MATERIALIZED VIEW "+name); err != nil {
			return err
		}
	}
	return nil
}
