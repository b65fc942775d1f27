package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/modules/inventory/services"
	"github.com/cityatlas/platform-management/pkg/composables"
	"github.com/cityatlas/platform-management/pkg/repo"
)

// overlapRatio is the shared SQL fragment computing the overlap ratio of a
// candidate against a stored geometry: intersection area over the smaller of
// the two areas, with point geometries pinned to 1.0 since a point carries
// no area of its own.
const overlapRatio = `
	CASE WHEN ST_GeometryType(cand.geom) = 'ST_Point' OR ST_GeometryType(%[1]s) = 'ST_Point'
		THEN 1.0
		ELSE COALESCE(
			ST_Area(ST_Intersection(cand.geom, %[1]s)) /
				NULLIF(LEAST(ST_Area(cand.geom), ST_Area(%[1]s)), 0),
			0)
	END`

func ratioExpr(geometryColumn string) string {
	return fmt.Sprintf(overlapRatio, geometryColumn)
}

// scanPeers drains an overlap query into domain peers. Every query selects
// the same six columns: id, hosting object id, address, geometry type,
// ratio, equality flag.
func scanPeers(ctx context.Context, tx repo.Tx, query string, args ...any) ([]domain.OverlapPeer, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []domain.OverlapPeer
	for rows.Next() {
		var p domain.OverlapPeer
		if err := rows.Scan(&p.ID, &p.ObjectID, &p.Address, &p.GeomType, &p.Ratio, &p.Equal); err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}

// clipGeometry subtracts the union of the peer geometries (produced by the
// peerSource subquery over $2 = peer ids) from the candidate. An empty
// difference yields a zero geometry, meaning the candidate is fully covered.
func clipGeometry(ctx context.Context, tx repo.Tx, geom domain.Geometry, ids []int64, peerSource string) (domain.Geometry, error) {
	var out domain.Geometry
	var empty bool
	err := tx.QueryRow(ctx, `
		WITH cand AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($1), 4326) geom),
			peers AS (SELECT ST_Union(geometry) geom FROM (`+peerSource+`) src),
			diff AS (SELECT ST_Difference(cand.geom, peers.geom) g FROM cand, peers)
		SELECT ST_IsEmpty(g), ST_AsGeoJSON(g), ST_GeometryType(g),
			ST_X(ST_Centroid(g)), ST_Y(ST_Centroid(g))
		FROM diff`,
		geom.GeoJSON, ids,
	).Scan(&empty, &out.GeoJSON, &out.Type, &out.Lon, &out.Lat)
	if err != nil {
		return domain.Geometry{}, err
	}
	if empty {
		return domain.Geometry{}, nil
	}
	return out, nil
}

// scopeFilter appends optional division filters to a WHERE clause over the
// physical_objects alias p. Parameters $2 and $3 are always bound; NULL
// disables the filter.
const objectScopeFilter = `
	AND ($2::bigint IS NULL OR p.municipality_id = $2)
	AND ($3::bigint IS NULL OR p.administrative_unit_id = $3)`

// BuildingPeerFinder answers address and overlap queries over buildings and
// their hosting physical objects. The address radius comes from the kind
// descriptor: 100m when matching buildings directly, 200m when locating the
// host building of a service.
type BuildingPeerFinder struct {
	addressDistanceM float64
}

func NewBuildingPeerFinder(addressDistanceM float64) services.PeerFinder {
	return &BuildingPeerFinder{addressDistanceM: addressDistanceM}
}

func (f *BuildingPeerFinder) FindByAddressSuffix(ctx context.Context, scope services.Scope, suffix string, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanPeers(ctx, tx, `
		SELECT b.id, p.id, COALESCE(b.address, ''), ST_GeometryType(p.geometry), 1.0, false
		FROM physical_objects p
			JOIN buildings b ON b.physical_object_id = p.id
		WHERE p.city_id = $1 AND b.address LIKE $2
			AND ST_Distance(p.center::geography,
				ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography) < $5`,
		scope.CityID, "%"+escapeLike(suffix), geom.Lon, geom.Lat, f.addressDistanceM)
}

func (f *BuildingPeerFinder) FindOverlapping(ctx context.Context, scope services.Scope, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanPeers(ctx, tx, `
		WITH cand AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($4), 4326) geom)
		SELECT b.id, p.id, COALESCE(b.address, ''), ST_GeometryType(p.geometry),
			`+ratioExpr("p.geometry")+`,
			ST_Equals(cand.geom, p.geometry)
		FROM cand, physical_objects p
			JOIN buildings b ON b.physical_object_id = p.id
		WHERE p.city_id = $1`+objectScopeFilter+`
			AND ST_Intersects(cand.geom, p.geometry)
		ORDER BY 5 DESC`,
		scope.CityID, scope.MunicipalityID, scope.AdministrativeUnitID, geom.GeoJSON)
}

func (f *BuildingPeerFinder) Clip(ctx context.Context, geom domain.Geometry, peers []domain.OverlapPeer) (domain.Geometry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Geometry{}, err
	}
	return clipGeometry(ctx, tx, geom, peerIDs(peers), `
		SELECT p.geometry FROM physical_objects p
			JOIN buildings b ON b.physical_object_id = p.id
		WHERE b.id = ANY($2)`)
}

// ObjectPeerFinder answers overlap queries over physical objects that do not
// host a building; it locates the host object for non-building services.
type ObjectPeerFinder struct{}

func NewObjectPeerFinder() services.PeerFinder {
	return &ObjectPeerFinder{}
}

func (f *ObjectPeerFinder) FindByAddressSuffix(ctx context.Context, scope services.Scope, suffix string, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	// Bare physical objects carry no address.
	return nil, nil
}

func (f *ObjectPeerFinder) FindOverlapping(ctx context.Context, scope services.Scope, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanPeers(ctx, tx, `
		WITH cand AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($4), 4326) geom)
		SELECT p.id, p.id, '', ST_GeometryType(p.geometry),
			`+ratioExpr("p.geometry")+`,
			ST_Equals(cand.geom, p.geometry)
		FROM cand, physical_objects p
		WHERE p.city_id = $1
			AND NOT EXISTS (SELECT 1 FROM buildings WHERE physical_object_id = p.id)`+
		objectScopeFilter+`
			AND ST_Intersects(cand.geom, p.geometry)
		ORDER BY 5 DESC`,
		scope.CityID, scope.MunicipalityID, scope.AdministrativeUnitID, geom.GeoJSON)
}

func (f *ObjectPeerFinder) Clip(ctx context.Context, geom domain.Geometry, peers []domain.OverlapPeer) (domain.Geometry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Geometry{}, err
	}
	return clipGeometry(ctx, tx, geom, peerIDs(peers),
		`SELECT geometry FROM physical_objects WHERE id = ANY($2)`)
}

// DivisionPeerFinder answers overlap queries over one of the two territorial
// hierarchy tables.
type DivisionPeerFinder struct {
	table string
}

func NewDivisionPeerFinder(kind domain.EntityKind) services.PeerFinder {
	table := "administrative_units"
	if kind == domain.KindMunicipality {
		table = "municipalities"
	}
	return &DivisionPeerFinder{table: table}
}

func (f *DivisionPeerFinder) FindByAddressSuffix(ctx context.Context, scope services.Scope, suffix string, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	return nil, nil
}

func (f *DivisionPeerFinder) FindOverlapping(ctx context.Context, scope services.Scope, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanPeers(ctx, tx, `
		WITH cand AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($2), 4326) geom)
		SELECT d.id, d.id, '', ST_GeometryType(d.geometry),
			`+ratioExpr("d.geometry")+`,
			ST_Equals(cand.geom, d.geometry)
		FROM cand, `+f.table+` d
		WHERE d.city_id = $1
			AND (ST_Overlaps(d.geometry, cand.geom)
				OR ST_Contains(d.geometry, cand.geom)
				OR ST_Contains(cand.geom, d.geometry)
				OR ST_Equals(d.geometry, cand.geom))
		ORDER BY 5 DESC`,
		scope.CityID, geom.GeoJSON)
}

func (f *DivisionPeerFinder) Clip(ctx context.Context, geom domain.Geometry, peers []domain.OverlapPeer) (domain.Geometry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Geometry{}, err
	}
	return clipGeometry(ctx, tx, geom, peerIDs(peers),
		`SELECT geometry FROM `+f.table+` WHERE id = ANY($2)`)
}

// BlockPeerFinder answers overlap queries over city blocks.
type BlockPeerFinder struct{}

func NewBlockPeerFinder() services.PeerFinder {
	return &BlockPeerFinder{}
}

func (f *BlockPeerFinder) FindByAddressSuffix(ctx context.Context, scope services.Scope, suffix string, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	return nil, nil
}

func (f *BlockPeerFinder) FindOverlapping(ctx context.Context, scope services.Scope, geom domain.Geometry) ([]domain.OverlapPeer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanPeers(ctx, tx, `
		WITH cand AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($2), 4326) geom)
		SELECT b.id, b.id, '', ST_GeometryType(b.geometry),
			`+ratioExpr("b.geometry")+`,
			ST_Equals(cand.geom, b.geometry)
		FROM cand, blocks b
		WHERE b.city_id = $1
			AND (ST_Contains(b.geometry, cand.geom)
				OR ST_Contains(cand.geom, b.geometry)
				OR ST_Overlaps(b.geometry, cand.geom)
				OR ST_Equals(b.geometry, cand.geom))
		ORDER BY 5 DESC`,
		scope.CityID, geom.GeoJSON)
}

func (f *BlockPeerFinder) Clip(ctx context.Context, geom domain.Geometry, peers []domain.OverlapPeer) (domain.Geometry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Geometry{}, err
	}
	return clipGeometry(ctx, tx, geom, peerIDs(peers),
		`SELECT geometry FROM blocks WHERE id = ANY($2)`)
}

// escapeLike neutralizes the LIKE metacharacters so an address suffix
// containing "%" or "_" matches only itself.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func peerIDs(peers []domain.OverlapPeer) []int64 {
	ids := make([]int64, len(peers))
	for i, p := range peers {
		ids[i] = p.ID
	}
	return ids
}
