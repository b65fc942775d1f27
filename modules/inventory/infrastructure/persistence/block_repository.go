package persistence

import (
	"context"

	"github.com/cityatlas/platform-management/pkg/composables"
)

// BlockRepository manages city blocks: polygon partitions carrying derived
// area and population.
type BlockRepository struct{}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{}
}

// Insert creates a block, deriving its area and its division links from the
// centroid.
func (r *BlockRepository) Insert(ctx context.Context, cityID int64, geoJSON string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($2), 4326) g)
		INSERT INTO blocks (city_id, geometry, center, municipality_id, administrative_unit_id, area)
		SELECT $1, g, ST_Centroid(g),
			(SELECT id FROM municipalities
				WHERE city_id = $1 AND ST_Within(ST_Centroid(g), geometry) LIMIT 1),
			(SELECT id FROM administrative_units
				WHERE city_id = $1 AND ST_Within(ST_Centroid(g), geometry) LIMIT 1),
			ST_Area(g::geography)
		FROM geom
		RETURNING id`,
		cityID, geoJSON,
	).Scan(&id)
	return id, err
}

// UpdateGeometry replaces a block's geometry, re-deriving centroid, area and
// division links.
func (r *BlockRepository) UpdateGeometry(ctx context.Context, id int64, cityID int64, geoJSON string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($3), 4326) g)
		UPDATE blocks SET
			geometry = (SELECT g FROM geom),
			center = (SELECT ST_Centroid(g) FROM geom),
			municipality_id = (SELECT id FROM municipalities
				WHERE city_id = $2 AND ST_Within((SELECT ST_Centroid(g) FROM geom), geometry) LIMIT 1),
			administrative_unit_id = (SELECT id FROM administrative_units
				WHERE city_id = $2 AND ST_Within((SELECT ST_Centroid(g) FROM geom), geometry) LIMIT 1),
			area = (SELECT ST_Area(g::geography) FROM geom)
		WHERE id = $1`,
		id, cityID, geoJSON)
	return err
}

// RelocateObjects re-derives the block link of the city's physical objects
// from their centroids. Idempotent.
func (r *BlockRepository) RelocateObjects(ctx context.Context, cityID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE physical_objects p SET block_id =
			(SELECT b.id FROM blocks b
				WHERE b.city_id = $1 AND ST_Within(p.center, b.geometry) LIMIT 1)
		WHERE p.city_id = $1`,
		cityID)
	return err
}

// RecomputePopulation aggregates resident counts of contained buildings into
// each block of the city.
func (r *BlockRepository) RecomputePopulation(ctx context.Context, cityID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE blocks bl SET population = (
			SELECT sum(b.resident_number)
			FROM buildings b
				JOIN physical_objects p ON b.physical_object_id = p.id
			WHERE p.block_id = bl.id)
		WHERE bl.city_id = $1`,
		cityID)
	return err
}
