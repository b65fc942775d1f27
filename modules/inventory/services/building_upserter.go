package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// GeometryDecoder validates candidate geometries through the spatial store.
type GeometryDecoder interface {
	Decode(ctx context.Context, geoJSON string) (domain.Geometry, error)
	Point(lon, lat float64) domain.Geometry
}

// ObjectStore manages physical objects for the upserters.
type ObjectStore interface {
	Locate(ctx context.Context, cityID int64, geom domain.Geometry) (domain.Location, error)
	Insert(ctx context.Context, cityID int64, osmID *string, geom domain.Geometry, loc domain.Location) (int64, error)
	UpgradeGeometry(ctx context.Context, objectID int64, geom domain.Geometry) error
}

// BuildingStore manages building records for the upserters.
type BuildingStore interface {
	Get(ctx context.Context, id int64, columns []string) (domain.BuildingRecord, error)
	Insert(ctx context.Context, objectID int64, columns []string, values []any, properties map[string]any, modeled map[string]int) (int64, error)
	UpdateColumns(ctx context.Context, id int64, columns []string, values []any) error
	MergeProperties(ctx context.Context, id int64, properties map[string]any) error
	SetModeled(ctx context.Context, id int64, modeled map[string]int) error
}

// BuildingUpserter reconciles one document row describing a building against
// the inventory: update the matched building with the minimal change-set, or
// insert a new physical object plus building.
type BuildingUpserter struct {
	city       domain.City
	mapping    domain.BuildingMapping
	properties domain.PropertiesMapping
	normalizer domain.AddressNormalizer
	resolver   *Resolver
	geo        GeometryDecoder
	objects    ObjectStore
	buildings  BuildingStore
	log        *logrus.Entry
}

func NewBuildingUpserter(
	city domain.City,
	mapping domain.BuildingMapping,
	properties domain.PropertiesMapping,
	normalizer domain.AddressNormalizer,
	resolver *Resolver,
	geo GeometryDecoder,
	objects ObjectStore,
	buildings BuildingStore,
	log *logrus.Logger,
) *BuildingUpserter {
	return &BuildingUpserter{
		city:       city,
		mapping:    mapping,
		properties: properties,
		normalizer: normalizer,
		resolver:   resolver,
		geo:        geo,
		objects:    objects,
		buildings:  buildings,
		log:        log.WithField("component", "buildings"),
	}
}

// Validate checks the document header before per-row processing begins.
func (u *BuildingUpserter) Validate(table *domain.Table) error {
	if !table.HasColumn(u.mapping.Geometry) {
		return &domain.ValidationError{Column: u.mapping.Geometry, Reason: "geometry column is missing from the document"}
	}
	return nil
}

func (u *BuildingUpserter) ProcessRow(ctx context.Context, row domain.Row, index int) (domain.Outcome, error) {
	geoJSON := row.String(u.mapping.Geometry)
	if geoJSON == "" {
		return domain.Skipped("geometry is missing"), nil
	}
	geom, err := u.geo.Decode(ctx, geoJSON)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidGeometry) {
			return domain.Skipped(fmt.Sprintf("geometry in column %q cannot be parsed", u.mapping.Geometry)), err
		}
		return domain.Outcome{}, err
	}

	var suffix string
	if raw := row.String(u.mapping.Address); raw != "" {
		var ok bool
		suffix, ok = u.normalizer.Normalize(raw)
		if !ok {
			if u.normalizer.PrefixCount() == 1 {
				return domain.Skipped(fmt.Sprintf("address does not start with %q", u.normalizer.Prefixes()[0])), nil
			}
			return domain.Skipped(fmt.Sprintf("address does not start with any of the %d configured prefixes", u.normalizer.PrefixCount())), nil
		}
	}

	loc, err := u.objects.Locate(ctx, u.city.ID, geom)
	if err != nil {
		return domain.Outcome{}, err
	}
	scope := Scope{
		CityID:               u.city.ID,
		AdministrativeUnitID: loc.AdministrativeUnitID,
		MunicipalityID:       loc.MunicipalityID,
	}
	res, err := u.resolver.Resolve(ctx, scope, domain.Candidate{Geometry: geom, Address: suffix})
	if err != nil {
		return domain.Outcome{}, err
	}

	switch res.Kind {
	case domain.MatchInvalid:
		return domain.Skipped("geometry cannot be matched"), nil
	case domain.MatchAmbiguous:
		return domain.Skipped((&domain.AmbiguousMatchError{Kind: domain.KindBuilding, Peers: res.Peers}).Error()), nil
	case domain.MatchExact:
		changed, err := u.update(ctx, row, res.Peer.ID, suffix)
		if err != nil {
			return domain.Outcome{}, err
		}
		if !changed {
			return domain.Unchanged(res.Peer.ID, fmt.Sprintf("building matches the stored data (building_id = %d)", res.Peer.ID)), nil
		}
		if res.ByAddr {
			return domain.Updated(res.Peer.ID, fmt.Sprintf("building updated by address match (building_id = %d)", res.Peer.ID)), nil
		}
		return domain.Updated(res.Peer.ID, fmt.Sprintf("building updated, stored address: %q (building_id = %d)", res.Peer.Address, res.Peer.ID)), nil
	}

	// No match: a new physical object hosting a new building. The clipped
	// geometry keeps the footprint out of area owned by neighbors.
	insertGeom := geom
	if res.Clipped != nil {
		insertGeom = *res.Clipped
	}
	var osmID *string
	if v := row.String(u.mapping.OSMID); v != "" {
		osmID = &v
	}
	objectID, err := u.objects.Insert(ctx, u.city.ID, osmID, insertGeom, loc)
	if err != nil {
		return domain.Outcome{}, err
	}

	columns, values := u.candidateColumns(row, suffix)
	modeled := declaredModeledSet(row.String(u.mapping.Modeled))
	id, err := u.buildings.Insert(ctx, objectID, columns, values,
		buildProperties(row, u.properties), modeled)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Inserted(id, fmt.Sprintf("building inserted (building_id = %d, phys_id = %d)", id, objectID)), nil
}

// update diffs the candidate against the stored building and applies just
// the differing columns, the merged properties and the reconciled modeled
// flags. Reports whether anything was written.
func (u *BuildingUpserter) update(ctx context.Context, row domain.Row, id int64, suffix string) (bool, error) {
	attrs := u.mapping.AttributeColumns()
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.DBColumn
	}
	rec, err := u.buildings.Get(ctx, id, names)
	if err != nil {
		return false, err
	}

	var cs Changeset
	for _, a := range attrs {
		candidate, ok := u.candidateValue(row, a, suffix)
		if !ok {
			continue
		}
		cs.Compare(a.DBColumn, rec.Attributes[a.DBColumn], candidate)
	}
	if !cs.Empty() {
		columns := make([]string, cs.Len())
		values := make([]any, cs.Len())
		for i, ch := range cs.Changes() {
			columns[i] = ch.Column
			values[i] = ch.Value
		}
		if err := u.buildings.UpdateColumns(ctx, id, columns, values); err != nil {
			return false, err
		}
	}

	changed := !cs.Empty()

	candidateProps := buildProperties(row, u.properties)
	if _, propsChanged := MergeProperties(rec.Properties, candidateProps); propsChanged {
		if err := u.buildings.MergeProperties(ctx, id, candidateProps); err != nil {
			return false, err
		}
		changed = true
	}

	declared := ParseModeledList(row.String(u.mapping.Modeled))
	modeled, modChanged := ReconcileModeled(rec.Modeled, declared, func(field string) bool {
		for _, a := range attrs {
			if a.DBColumn == field {
				_, ok := u.candidateValue(row, a, suffix)
				return ok
			}
		}
		return false
	})
	if modChanged {
		if err := u.buildings.SetModeled(ctx, id, modeled); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// candidateValue coerces one mapped cell to its column type. The address
// column carries the re-prefixed form so repeated imports of the same
// document stay idempotent.
func (u *BuildingUpserter) candidateValue(row domain.Row, a domain.AttributeColumn, suffix string) (any, bool) {
	if a.DBColumn == "address" {
		if suffix == "" {
			return nil, false
		}
		return u.normalizer.Stored(suffix), true
	}
	column := a.Column()
	if column == "" {
		return nil, false
	}
	return a.Type.Coerce(row.Value(column))
}

func (u *BuildingUpserter) candidateColumns(row domain.Row, suffix string) ([]string, []any) {
	attrs := u.mapping.AttributeColumns()
	columns := make([]string, 0, len(attrs))
	values := make([]any, 0, len(attrs))
	for _, a := range attrs {
		v, ok := u.candidateValue(row, a, suffix)
		if !ok {
			continue
		}
		columns = append(columns, a.DBColumn)
		values = append(values, v)
	}
	return columns, values
}

func declaredModeledSet(raw string) map[string]int {
	fields := ParseModeledList(raw)
	set := make(map[string]int, len(fields))
	for _, f := range fields {
		set[f] = 1
	}
	return set
}
