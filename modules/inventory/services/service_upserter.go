package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// ServiceStore manages functional objects for the service upserter.
type ServiceStore interface {
	FindHosted(ctx context.Context, objectID, serviceTypeID int64, name string) (int64, error)
	Get(ctx context.Context, id int64) (domain.ServiceRecord, error)
	Insert(ctx context.Context, objectID int64, st domain.ServiceType, attrs map[string]any, capacity int64, isCapacityReal bool, properties map[string]any) (int64, error)
	UpdateColumns(ctx context.Context, id int64, columns []string, values []any) error
	SetCapacity(ctx context.Context, id, capacity int64, isReal bool) error
	MergeProperties(ctx context.Context, id int64, properties map[string]any) error
	InsertHostBuilding(ctx context.Context, objectID int64, address *string) (int64, error)
}

// ServiceUpserter reconciles one document row describing a service of a
// fixed type: find the hosting physical object (a building for
// building-bound types, a bare object otherwise), then insert or update the
// service on it. Services arriving without a capacity get one drawn
// uniformly from the type's declared range, marked not-real so a later
// supplied value can replace it.
type ServiceUpserter struct {
	city        domain.City
	serviceType domain.ServiceType
	mapping     domain.ServiceMapping
	properties  domain.PropertiesMapping
	normalizer  domain.AddressNormalizer
	resolver    *Resolver
	geo         GeometryDecoder
	objects     ObjectStore
	services    ServiceStore
	rng         *rand.Rand
	log         *logrus.Entry
}

func NewServiceUpserter(
	city domain.City,
	serviceType domain.ServiceType,
	mapping domain.ServiceMapping,
	properties domain.PropertiesMapping,
	normalizer domain.AddressNormalizer,
	resolver *Resolver,
	geo GeometryDecoder,
	objects ObjectStore,
	services ServiceStore,
	rng *rand.Rand,
	log *logrus.Logger,
) *ServiceUpserter {
	return &ServiceUpserter{
		city:        city,
		serviceType: serviceType,
		mapping:     mapping,
		properties:  properties,
		normalizer:  normalizer,
		resolver:    resolver,
		geo:         geo,
		objects:     objects,
		services:    services,
		rng:         rng,
		log:         log.WithField("component", "services").WithField("service_type", serviceType.Name),
	}
}

// Validate checks the document header before per-row processing begins.
func (u *ServiceUpserter) Validate(table *domain.Table) error {
	if u.mapping.Geometry != "" && table.HasColumn(u.mapping.Geometry) {
		return nil
	}
	if table.HasColumn(u.mapping.Latitude) && table.HasColumn(u.mapping.Longitude) {
		return nil
	}
	return &domain.ValidationError{Reason: "document carries neither a geometry column nor a coordinate pair"}
}

func (u *ServiceUpserter) ProcessRow(ctx context.Context, row domain.Row, index int) (domain.Outcome, error) {
	geom, outcome, err := u.rowGeometry(ctx, row)
	if err != nil || outcome.Status != "" {
		return outcome, err
	}

	var suffix string
	if u.serviceType.IsBuilding {
		if raw := row.String(u.mapping.Address); raw != "" {
			var ok bool
			suffix, ok = u.normalizer.Normalize(raw)
			if !ok {
				return domain.Skipped(fmt.Sprintf("address does not start with any of the %d configured prefixes", u.normalizer.PrefixCount())), nil
			}
		}
	}

	name := row.String(u.mapping.Name)
	if name == "" {
		name = fmt.Sprintf("(unnamed %s)", u.serviceType.Name)
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
		return domain.Skipped((&domain.AmbiguousMatchError{Kind: domain.KindService, Peers: res.Peers}).Error()), nil
	case domain.MatchExact:
		return u.upsertOnHost(ctx, row, geom, name, res)
	}

	// No host found: a fresh physical object, plus a bare building record
	// for building-bound service types.
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
	hostNote := fmt.Sprintf("a new object (phys_id = %d)", objectID)
	if u.serviceType.IsBuilding {
		var address *string
		if suffix != "" {
			stored := u.normalizer.Stored(suffix)
			address = &stored
		}
		buildingID, err := u.services.InsertHostBuilding(ctx, objectID, address)
		if err != nil {
			return domain.Outcome{}, err
		}
		hostNote = fmt.Sprintf("a new building (build_id = %d, phys_id = %d)", buildingID, objectID)
		if address == nil {
			hostNote += " without an address"
		}
	}
	id, err := u.insertService(ctx, row, objectID, name)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Inserted(id, fmt.Sprintf("service inserted into %s", hostNote)), nil
}

// rowGeometry picks the candidate footprint: the geometry column when
// mapped and present, otherwise a point built from the coordinate pair.
func (u *ServiceUpserter) rowGeometry(ctx context.Context, row domain.Row) (domain.Geometry, domain.Outcome, error) {
	if geoJSON := row.String(u.mapping.Geometry); geoJSON != "" {
		geom, err := u.geo.Decode(ctx, geoJSON)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidGeometry) {
				return domain.Geometry{}, domain.Skipped(fmt.Sprintf("geometry in column %q cannot be parsed", u.mapping.Geometry)), err
			}
			return domain.Geometry{}, domain.Outcome{}, err
		}
		return geom, domain.Outcome{}, nil
	}
	lon, lonOK := domain.TypeFloat.Coerce(row.Value(u.mapping.Longitude))
	lat, latOK := domain.TypeFloat.Coerce(row.Value(u.mapping.Latitude))
	if !lonOK || !latOK {
		return domain.Geometry{}, domain.Skipped("geometry and coordinates are missing"), nil
	}
	return u.geo.Point(lon.(float64), lat.(float64)), domain.Outcome{}, nil
}

// upsertOnHost inserts or updates the service on a host located by the
// resolver. A host stored as a bare point gets its footprint upgraded when
// the candidate carries a real geometry.
func (u *ServiceUpserter) upsertOnHost(ctx context.Context, row domain.Row, geom domain.Geometry, name string, res domain.Resolution) (domain.Outcome, error) {
	hostID := res.Peer.ObjectID
	existing, err := u.services.FindHosted(ctx, hostID, u.serviceType.ID, name)
	if err != nil {
		return domain.Outcome{}, err
	}
	if existing != 0 {
		changed, err := u.updateService(ctx, row, existing, name)
		if err != nil {
			return domain.Outcome{}, err
		}
		if !changed {
			return domain.Unchanged(existing, fmt.Sprintf("service matches the stored data (phys_id = %d, functional_obj_id = %d)", hostID, existing)), nil
		}
		return domain.Updated(existing, fmt.Sprintf("service updated (phys_id = %d, functional_obj_id = %d)", hostID, existing)), nil
	}

	upgraded := ""
	if res.Peer.GeomType == "ST_Point" && !geom.IsPoint() {
		if err := u.objects.UpgradeGeometry(ctx, hostID, geom); err != nil {
			return domain.Outcome{}, err
		}
		upgraded = ", host footprint upgraded from a point"
	}
	id, err := u.insertService(ctx, row, hostID, name)
	if err != nil {
		return domain.Outcome{}, err
	}
	how := "matching geometry"
	if res.ByAddr {
		how = "matching address"
	}
	return domain.Inserted(id, fmt.Sprintf("service inserted into the object with %s (phys_id = %d)%s", how, hostID, upgraded)), nil
}

func (u *ServiceUpserter) insertService(ctx context.Context, row domain.Row, objectID int64, name string) (int64, error) {
	capacity, isReal := u.rowCapacity(row)
	attrs := map[string]any{
		"name":          name,
		"opening_hours": row.Value(u.mapping.OpeningHours),
		"website":       row.Value(u.mapping.Website),
		"phone":         row.Value(u.mapping.Phone),
	}
	return u.services.Insert(ctx, objectID, u.serviceType, attrs, capacity, isReal,
		buildProperties(row, u.properties))
}

// updateService diffs the candidate against the stored service and applies
// the minimal change-set. A stored backfilled capacity stays untouched when
// the candidate supplies none.
func (u *ServiceUpserter) updateService(ctx context.Context, row domain.Row, id int64, name string) (bool, error) {
	rec, err := u.services.Get(ctx, id)
	if err != nil {
		return false, err
	}

	var cs Changeset
	cs.Compare("name", rec.Attributes["name"], name)
	cs.Compare("opening_hours", rec.Attributes["opening_hours"], row.Value(u.mapping.OpeningHours))
	cs.Compare("website", rec.Attributes["website"], row.Value(u.mapping.Website))
	cs.Compare("phone", rec.Attributes["phone"], row.Value(u.mapping.Phone))
	if !cs.Empty() {
		columns := make([]string, cs.Len())
		values := make([]any, cs.Len())
		for i, ch := range cs.Changes() {
			columns[i] = ch.Column
			values[i] = ch.Value
		}
		if err := u.services.UpdateColumns(ctx, id, columns, values); err != nil {
			return false, err
		}
	}
	changed := !cs.Empty()

	if v, ok := domain.TypeInt.Coerce(row.Value(u.mapping.Capacity)); ok {
		capacity := v.(int64)
		if capacity != rec.Capacity || !rec.IsCapacityReal {
			if err := u.services.SetCapacity(ctx, id, capacity, true); err != nil {
				return false, err
			}
			changed = true
		}
	}

	candidateProps := buildProperties(row, u.properties)
	if _, propsChanged := MergeProperties(rec.Properties, candidateProps); propsChanged {
		if err := u.services.MergeProperties(ctx, id, candidateProps); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// rowCapacity reads the supplied capacity or backfills a uniform-random one
// within the service type's declared range.
func (u *ServiceUpserter) rowCapacity(row domain.Row) (int64, bool) {
	if v, ok := domain.TypeInt.Coerce(row.Value(u.mapping.Capacity)); ok {
		return v.(int64), true
	}
	lo, hi := u.serviceType.CapacityMin, u.serviceType.CapacityMax
	if hi <= lo {
		return lo, false
	}
	return lo + u.rng.Int63n(hi-lo+1), false
}
