package persistence

import (
	"context"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// ObjectRepository manages physical objects: the shared spatial footprints
// hosting buildings and services.
type ObjectRepository struct{}

func NewObjectRepository() *ObjectRepository {
	return &ObjectRepository{}
}

// Locate resolves the containment snapshot for a centroid: the
// administrative unit and municipality containing it, and the block that
// both contains it and belongs to one of the resolved divisions.
func (r *ObjectRepository) Locate(ctx context.Context, cityID int64, geom domain.Geometry) (domain.Location, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	var loc domain.Location
	err = tx.QueryRow(ctx, `
		WITH pt AS (SELECT ST_SetSRID(ST_MakePoint($2, $3), 4326) center),
			adm AS (SELECT id FROM administrative_units, pt
				WHERE city_id = $1 AND ST_Within(pt.center, geometry) LIMIT 1),
			mun AS (SELECT id FROM municipalities, pt
				WHERE city_id = $1 AND ST_Within(pt.center, geometry) LIMIT 1)
		SELECT
			(SELECT id FROM adm),
			(SELECT id FROM mun),
			(SELECT b.id FROM blocks b, pt
				WHERE b.city_id = $1
					AND (b.administrative_unit_id = (SELECT id FROM adm)
						OR b.municipality_id = (SELECT id FROM mun))
					AND ST_Within(pt.center, b.geometry)
				LIMIT 1)`,
		cityID, geom.Lon, geom.Lat,
	).Scan(&loc.AdministrativeUnitID, &loc.MunicipalityID, &loc.BlockID)
	if err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}

// Insert creates a physical object with its containment links and returns
// its identifier.
func (r *ObjectRepository) Insert(ctx context.Context, cityID int64, osmID *string, geom domain.Geometry, loc domain.Location) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($3), 4326) g)
		INSERT INTO physical_objects
			(osm_id, city_id, geometry, center, administrative_unit_id, municipality_id, block_id)
		SELECT $1, $2, g, ST_Centroid(g), $4, $5, $6 FROM geom
		RETURNING id`,
		osmID, cityID, geom.GeoJSON,
		loc.AdministrativeUnitID, loc.MunicipalityID, loc.BlockID,
	).Scan(&id)
	return id, err
}

// UpgradeGeometry replaces a point footprint with a real geometry once a
// service arrives carrying one.
func (r *ObjectRepository) UpgradeGeometry(ctx context.Context, objectID int64, geom domain.Geometry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($2), 4326) g)
		UPDATE physical_objects
		SET geometry = (SELECT g FROM geom),
			center = (SELECT ST_Centroid(g) FROM geom)
		WHERE id = $1`,
		objectID, geom.GeoJSON)
	return err
}
