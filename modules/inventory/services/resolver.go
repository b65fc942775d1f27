package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// Scope narrows peer lookups to the candidate's city and, for blocks, the
// territorial division resolved for the candidate beforehand.
type Scope struct {
	CityID               int64
	AdministrativeUnitID *int64
	MunicipalityID       *int64
}

// PeerFinder is the spatial-store side of matching: it answers address and
// overlap queries against the persisted inventory. Implementations run SQL;
// the resolver owns the decision logic only.
type PeerFinder interface {
	// FindByAddressSuffix returns peers of the resolver's kind whose stored
	// address ends with suffix and whose centroid lies within the kind's
	// distance threshold of geom's centroid.
	FindByAddressSuffix(ctx context.Context, scope Scope, suffix string, geom domain.Geometry) ([]domain.OverlapPeer, error)

	// FindOverlapping returns peers whose geometry intersects, contains, is
	// contained by or equals geom, each carrying its overlap ratio
	// (intersection area over the smaller of the two areas; 1.0 for points),
	// ordered by ratio descending.
	FindOverlapping(ctx context.Context, scope Scope, geom domain.Geometry) ([]domain.OverlapPeer, error)

	// Clip returns geom minus the union of the peers' geometries.
	Clip(ctx context.Context, geom domain.Geometry, peers []domain.OverlapPeer) (domain.Geometry, error)
}

// Resolver decides whether a candidate footprint corresponds to an already
// persisted entity. One resolver instance serves one entity kind; the
// descriptor supplies the kind's thresholds.
type Resolver struct {
	desc   domain.KindDescriptor
	finder PeerFinder
	log    *logrus.Entry
}

func NewResolver(desc domain.KindDescriptor, finder PeerFinder, log *logrus.Logger) *Resolver {
	return &Resolver{
		desc:   desc,
		finder: finder,
		log:    log.WithField("component", "resolver").WithField("kind", desc.Kind),
	}
}

// Resolve runs the address path first when the kind carries addresses, then
// falls back to geometric overlap. A partial overlap below the threshold is
// still a no-match, but the returned resolution carries the candidate
// geometry clipped against every overlapping peer so an insert never
// duplicates area owned by a neighbor.
func (r *Resolver) Resolve(ctx context.Context, scope Scope, cand domain.Candidate) (domain.Resolution, error) {
	if cand.Geometry.IsZero() {
		return domain.Resolution{Kind: domain.MatchInvalid}, nil
	}

	if r.desc.Addressable && cand.Address != "" {
		peers, err := r.finder.FindByAddressSuffix(ctx, scope, cand.Address, cand.Geometry)
		if err != nil {
			return domain.Resolution{}, err
		}
		if len(peers) > 0 {
			// Address wins over geometry. Equal-ranked hits are returned in
			// store order; the first is taken, a known nondeterminism.
			return domain.Resolution{
				Kind:   domain.MatchExact,
				Peer:   peers[0],
				Peers:  len(peers),
				ByAddr: true,
			}, nil
		}
	}

	peers, err := r.finder.FindOverlapping(ctx, scope, cand.Geometry)
	if err != nil {
		return domain.Resolution{}, err
	}
	switch {
	case len(peers) == 0:
		return domain.Resolution{Kind: domain.MatchNone}, nil
	case len(peers) > r.desc.MaxOverlapPeers:
		r.log.WithField("peers", len(peers)).Debug("candidate overlaps too many stored entities")
		return domain.Resolution{Kind: domain.MatchAmbiguous, Peers: len(peers)}, nil
	}

	best := peers[0]
	for _, p := range peers[1:] {
		if p.Ratio > best.Ratio {
			best = p
		}
	}
	if best.Ratio > r.desc.OverlapThreshold {
		return domain.Resolution{Kind: domain.MatchExact, Peer: best, Peers: len(peers)}, nil
	}

	// Below the threshold the candidate is a new entity, minus whatever area
	// its neighbors already own.
	clipped, err := r.finder.Clip(ctx, cand.Geometry, peers)
	if err != nil {
		return domain.Resolution{}, err
	}
	res := domain.Resolution{Kind: domain.MatchNone, Peers: len(peers)}
	if !clipped.IsZero() {
		res.Clipped = &clipped
	}
	return res, nil
}
