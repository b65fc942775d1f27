package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// BlockStore manages city blocks for the upserter.
type BlockStore interface {
	Insert(ctx context.Context, cityID int64, geoJSON string) (int64, error)
	UpdateGeometry(ctx context.Context, id int64, cityID int64, geoJSON string) error
	RelocateObjects(ctx context.Context, cityID int64) error
	RecomputePopulation(ctx context.Context, cityID int64) error
}

// BlockUpserter reconciles rows carrying block polygons. Blocks have no
// attributes beyond their geometry: an equal footprint is unchanged, an
// overlapping one is replaced, a disjoint one is inserted.
type BlockUpserter struct {
	city     domain.City
	mapping  domain.BlockMapping
	resolver *Resolver
	geo      GeometryDecoder
	blocks   BlockStore
	log      *logrus.Entry
}

func NewBlockUpserter(
	city domain.City,
	mapping domain.BlockMapping,
	resolver *Resolver,
	geo GeometryDecoder,
	blocks BlockStore,
	log *logrus.Logger,
) *BlockUpserter {
	return &BlockUpserter{
		city:     city,
		mapping:  mapping,
		resolver: resolver,
		geo:      geo,
		blocks:   blocks,
		log:      log.WithField("component", "blocks"),
	}
}

// Validate checks the document header before per-row processing begins.
func (u *BlockUpserter) Validate(table *domain.Table) error {
	if !table.HasColumn(u.mapping.Geometry) {
		return &domain.ValidationError{Column: u.mapping.Geometry, Reason: "geometry column is missing from the document"}
	}
	return nil
}

func (u *BlockUpserter) ProcessRow(ctx context.Context, row domain.Row, index int) (domain.Outcome, error) {
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

	res, err := u.resolver.Resolve(ctx, Scope{CityID: u.city.ID}, domain.Candidate{Geometry: geom})
	if err != nil {
		return domain.Outcome{}, err
	}
	switch res.Kind {
	case domain.MatchInvalid:
		return domain.Skipped("geometry cannot be matched"), nil
	case domain.MatchAmbiguous:
		return domain.Skipped((&domain.AmbiguousMatchError{Kind: domain.KindBlock, Peers: res.Peers}).Error()), nil
	case domain.MatchExact:
		if res.Peer.Equal {
			return domain.Unchanged(res.Peer.ID, fmt.Sprintf("block matches the stored geometry (block_id = %d)", res.Peer.ID)), nil
		}
		if err := u.blocks.UpdateGeometry(ctx, res.Peer.ID, u.city.ID, geom.GeoJSON); err != nil {
			return domain.Outcome{}, err
		}
		return domain.Updated(res.Peer.ID, fmt.Sprintf("block updated (block_id = %d)", res.Peer.ID)), nil
	}

	insertJSON := geom.GeoJSON
	if res.Clipped != nil {
		insertJSON = res.Clipped.GeoJSON
	}
	id, err := u.blocks.Insert(ctx, u.city.ID, insertJSON)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Inserted(id, fmt.Sprintf("block inserted (block_id = %d)", id)), nil
}

// Finalize re-derives block links for the city's physical objects and
// recomputes block populations from contained buildings.
func (u *BlockUpserter) Finalize(ctx context.Context) error {
	u.log.Info("relocating physical objects into blocks")
	if err := u.blocks.RelocateObjects(ctx, u.city.ID); err != nil {
		return err
	}
	u.log.Info("recomputing block populations")
	return u.blocks.RecomputePopulation(ctx, u.city.ID)
}
