package persistence

import (
	"context"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// DivisionRepository manages one of the two territorial hierarchy tables:
// administrative units or municipalities. Parent links are referenced by
// name, the way documents carry them.
type DivisionRepository struct {
	kind       domain.EntityKind
	table      string // own hierarchy
	typeTable  string
	otherTable string // the parallel hierarchy
	otherLink  string // column linking into the parallel hierarchy
}

func NewDivisionRepository(kind domain.EntityKind) *DivisionRepository {
	if kind == domain.KindMunicipality {
		return &DivisionRepository{
			kind:       kind,
			table:      "municipalities",
			typeTable:  "municipality_types",
			otherTable: "administrative_units",
			otherLink:  "admin_unit_parent_id",
		}
	}
	return &DivisionRepository{
		kind:       kind,
		table:      "administrative_units",
		typeTable:  "administrative_unit_types",
		otherTable: "municipalities",
		otherLink:  "municipality_parent_id",
	}
}

// Get loads the diffable state of one division. Geometry comes back as
// store-canonical GeoJSON so it compares cleanly against a decoded
// candidate.
func (r *DivisionRepository) Get(ctx context.Context, id int64) (domain.DivisionRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.DivisionRecord{}, err
	}
	rec := domain.DivisionRecord{ID: id}
	err = tx.QueryRow(ctx, `
		SELECT d.city_id, d.name,
			(SELECT lower(full_name) FROM `+r.typeTable+` WHERE id = d.type_id),
			COALESCE((SELECT name FROM `+r.table+` WHERE id = d.parent_id), ''),
			COALESCE((SELECT name FROM `+r.otherTable+` WHERE id = d.`+r.otherLink+`), ''),
			ST_AsGeoJSON(d.geometry),
			d.population
		FROM `+r.table+` d WHERE d.id = $1`,
		id,
	).Scan(&rec.CityID, &rec.Name, &rec.TypeName, &rec.ParentName,
		&rec.OtherParentName, &rec.Geometry, &rec.Population)
	if err != nil {
		return domain.DivisionRecord{}, err
	}
	return rec, nil
}

// Insert creates a division, resolving parent links by name within the
// city.
func (r *DivisionRepository) Insert(ctx context.Context, rec domain.DivisionRecord, typeID int64) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($4), 4326) g)
		INSERT INTO `+r.table+`
			(city_id, type_id, name, geometry, center, population, parent_id, `+r.otherLink+`)
		SELECT $1, $2, $3, g, ST_Centroid(g), $5,
			(SELECT id FROM `+r.table+` WHERE city_id = $1 AND name = NULLIF($6, '')),
			(SELECT id FROM `+r.otherTable+` WHERE city_id = $1 AND name = NULLIF($7, ''))
		FROM geom
		RETURNING id`,
		rec.CityID, typeID, rec.Name, rec.Geometry, rec.Population,
		rec.ParentName, rec.OtherParentName,
	).Scan(&id)
	return id, err
}

// Update overwrites the diffable columns of a division. The caller only
// invokes it after detecting a difference, so an unchanged row never writes.
func (r *DivisionRepository) Update(ctx context.Context, id int64, rec domain.DivisionRecord, typeID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		WITH geom AS (SELECT ST_SetSRID(ST_GeomFromGeoJSON($4), 4326) g)
		UPDATE `+r.table+` SET
			type_id = $3,
			name = $2,
			geometry = (SELECT g FROM geom),
			center = (SELECT ST_Centroid(g) FROM geom),
			population = COALESCE($5, population),
			parent_id = (SELECT id FROM `+r.table+` WHERE city_id = $6 AND name = NULLIF($7, '')),
			`+r.otherLink+` = (SELECT id FROM `+r.otherTable+` WHERE city_id = $6 AND name = NULLIF($8, ''))
		WHERE id = $1`,
		id, rec.Name, typeID, rec.Geometry, rec.Population,
		rec.CityID, rec.ParentName, rec.OtherParentName)
	return err
}

// RelocateObjects re-derives the physical objects' links into this
// hierarchy after a batch changed division geometries. Idempotent: a second
// run produces no further change.
func (r *DivisionRepository) RelocateObjects(ctx context.Context, cityID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	column := "administrative_unit_id"
	if r.kind == domain.KindMunicipality {
		column = "municipality_id"
	}
	_, err = tx.Exec(ctx, `
		UPDATE physical_objects p SET `+column+` =
			(SELECT d.id FROM `+r.table+` d
				WHERE d.city_id = $1 AND ST_Within(p.center, d.geometry) LIMIT 1)
		WHERE p.city_id = $1`,
		cityID)
	return err
}
