package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// DivisionStore manages one territorial hierarchy table for the upserter.
type DivisionStore interface {
	Get(ctx context.Context, id int64) (domain.DivisionRecord, error)
	Insert(ctx context.Context, rec domain.DivisionRecord, typeID int64) (int64, error)
	Update(ctx context.Context, id int64, rec domain.DivisionRecord, typeID int64) error
	RelocateObjects(ctx context.Context, cityID int64) error
}

// DivisionUpserter reconciles rows describing administrative units or
// municipalities. Both hierarchies share the shape; the kind picks the
// table and the type classifier set.
type DivisionUpserter struct {
	city      domain.City
	kind      domain.EntityKind
	mapping   domain.DivisionMapping
	types     map[string]int64 // lowercased full type name -> id
	resolver  *Resolver
	geo       GeometryDecoder
	divisions DivisionStore
	log       *logrus.Entry
}

func NewDivisionUpserter(
	city domain.City,
	kind domain.EntityKind,
	mapping domain.DivisionMapping,
	types map[string]int64,
	resolver *Resolver,
	geo GeometryDecoder,
	divisions DivisionStore,
	log *logrus.Logger,
) *DivisionUpserter {
	return &DivisionUpserter{
		city:      city,
		kind:      kind,
		mapping:   mapping,
		types:     types,
		resolver:  resolver,
		geo:       geo,
		divisions: divisions,
		log:       log.WithField("component", "divisions").WithField("kind", kind),
	}
}

// Validate checks the document header before per-row processing begins.
func (u *DivisionUpserter) Validate(table *domain.Table) error {
	for _, col := range []string{u.mapping.Geometry, u.mapping.TypeName, u.mapping.Name} {
		if !table.HasColumn(col) {
			return &domain.ValidationError{Column: col, Reason: "required column is missing from the document"}
		}
	}
	return nil
}

func (u *DivisionUpserter) ProcessRow(ctx context.Context, row domain.Row, index int) (domain.Outcome, error) {
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

	typeName := strings.ToLower(row.String(u.mapping.TypeName))
	typeID, ok := u.types[typeName]
	if !ok {
		return domain.Skipped(fmt.Sprintf("division type %q is not present in the database", typeName)), nil
	}

	rec := domain.DivisionRecord{
		CityID:          u.city.ID,
		Name:            row.String(u.mapping.Name),
		TypeName:        typeName,
		ParentName:      row.String(u.mapping.ParentSameType),
		OtherParentName: row.String(u.mapping.ParentOtherType),
		Geometry:        geom.GeoJSON,
	}
	if p, ok := domain.TypeInt.Coerce(row.Value(u.mapping.Population)); ok {
		pop := p.(int64)
		rec.Population = &pop
	}

	res, err := u.resolver.Resolve(ctx, Scope{CityID: u.city.ID}, domain.Candidate{Geometry: geom})
	if err != nil {
		return domain.Outcome{}, err
	}
	switch res.Kind {
	case domain.MatchInvalid:
		return domain.Skipped("geometry cannot be matched"), nil
	case domain.MatchAmbiguous:
		return domain.Skipped((&domain.AmbiguousMatchError{Kind: u.kind, Peers: res.Peers}).Error()), nil
	case domain.MatchExact:
		changed, err := u.update(ctx, res.Peer.ID, rec, typeID)
		if err != nil {
			return domain.Outcome{}, err
		}
		if !changed {
			return domain.Unchanged(res.Peer.ID, fmt.Sprintf("division matches the stored data (adm_id = %d)", res.Peer.ID)), nil
		}
		return domain.Updated(res.Peer.ID, fmt.Sprintf("division updated (adm_id = %d)", res.Peer.ID)), nil
	}

	if res.Clipped != nil {
		rec.Geometry = res.Clipped.GeoJSON
	}
	id, err := u.divisions.Insert(ctx, rec, typeID)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Inserted(id, fmt.Sprintf("division inserted (adm_id = %d)", id)), nil
}

// update rewrites the stored division when any diffable field differs.
// Blank candidate parent names and a missing population never overwrite
// stored values.
func (u *DivisionUpserter) update(ctx context.Context, id int64, rec domain.DivisionRecord, typeID int64) (bool, error) {
	stored, err := u.divisions.Get(ctx, id)
	if err != nil {
		return false, err
	}
	changed := stored.Name != rec.Name ||
		stored.TypeName != rec.TypeName ||
		stored.Geometry != rec.Geometry ||
		(rec.ParentName != "" && stored.ParentName != rec.ParentName) ||
		(rec.OtherParentName != "" && stored.OtherParentName != rec.OtherParentName) ||
		(rec.Population != nil && (stored.Population == nil || *stored.Population != *rec.Population))
	if !changed {
		return false, nil
	}
	if rec.ParentName == "" {
		rec.ParentName = stored.ParentName
	}
	if rec.OtherParentName == "" {
		rec.OtherParentName = stored.OtherParentName
	}
	return true, u.divisions.Update(ctx, id, rec, typeID)
}

// Finalize re-derives the physical objects' links into this hierarchy after
// the batch changed its geometries.
func (u *DivisionUpserter) Finalize(ctx context.Context) error {
	u.log.Info("relocating physical objects")
	return u.divisions.RelocateObjects(ctx, u.city.ID)
}
