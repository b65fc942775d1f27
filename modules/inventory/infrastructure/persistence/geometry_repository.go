package persistence

import (
	"context"
	"fmt"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// GeometryRepository validates and normalizes candidate geometries through
// the spatial store. All geometric math lives in SQL; the repository only
// carries the results back.
type GeometryRepository struct{}

func NewGeometryRepository() *GeometryRepository {
	return &GeometryRepository{}
}

// Decode parses a GeoJSON geometry in the store, returning its canonical
// text, type tag and centroid. Any store-side parse failure is reported as
// domain.ErrInvalidGeometry so the caller can skip the row without aborting
// the batch.
func (g *GeometryRepository) Decode(ctx context.Context, geoJSON string) (domain.Geometry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Geometry{}, err
	}
	var out domain.Geometry
	err = tx.QueryRow(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($1), 4326) g)
		SELECT ST_AsGeoJSON(g), ST_GeometryType(g),
			ST_X(ST_Centroid(g)), ST_Y(ST_Centroid(g))
		FROM geom`,
		geoJSON,
	).Scan(&out.GeoJSON, &out.Type, &out.Lon, &out.Lat)
	if err != nil {
		return domain.Geometry{}, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
	}
	return out, nil
}

// Point builds a point geometry from a coordinate pair without a store
// round trip.
func (g *GeometryRepository) Point(lon, lat float64) domain.Geometry {
	return domain.Geometry{
		GeoJSON: fmt.Sprintf(`{"type":"Point","coordinates":[%v,%v]}`, lon, lat),
		Type:    "ST_Point",
		Lon:     lon,
		Lat:     lat,
	}
}
