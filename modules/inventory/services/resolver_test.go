package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

type fakeFinder struct {
	byAddress   []domain.OverlapPeer
	overlapping []domain.OverlapPeer
	clipped     domain.Geometry

	addressCalls int
	overlapCalls int
	clipCalls    int
}

func (f *fakeFinder) FindByAddressSuffix(context.Context, Scope, string, domain.Geometry) ([]domain.OverlapPeer, error) {
	f.addressCalls++
	return f.byAddress, nil
}

func (f *fakeFinder) FindOverlapping(context.Context, Scope, domain.Geometry) ([]domain.OverlapPeer, error) {
	f.overlapCalls++
	return f.overlapping, nil
}

func (f *fakeFinder) Clip(context.Context, domain.Geometry, []domain.OverlapPeer) (domain.Geometry, error) {
	f.clipCalls++
	return f.clipped, nil
}

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func polygon() domain.Geometry {
	return domain.Geometry{GeoJSON: `{"type":"Polygon"}`, Type: "ST_Polygon", Lon: 30.3, Lat: 59.9}
}

func TestResolve_ZeroGeometryIsInvalid(t *testing.T) {
	finder := &fakeFinder{}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{})
	require.NoError(t, err)
	require.Equal(t, domain.MatchInvalid, res.Kind)
	require.Zero(t, finder.addressCalls)
	require.Zero(t, finder.overlapCalls)
}

func TestResolve_AddressWinsOverGeometry(t *testing.T) {
	finder := &fakeFinder{
		byAddress:   []domain.OverlapPeer{{ID: 7, Address: "Ленина 5"}, {ID: 9}},
		overlapping: []domain.OverlapPeer{{ID: 42, Ratio: 0.95}},
	}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1},
		domain.Candidate{Geometry: polygon(), Address: "Ленина 5"})
	require.NoError(t, err)
	require.Equal(t, domain.MatchExact, res.Kind)
	require.True(t, res.ByAddr)
	require.Equal(t, int64(7), res.Peer.ID)
	require.Zero(t, finder.overlapCalls, "a geometry lookup after an address hit")
}

func TestResolve_AddressPathSkippedForUnaddressableKind(t *testing.T) {
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{{ID: 3, Ratio: 0.9}}}
	r := NewResolver(domain.BlockDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1},
		domain.Candidate{Geometry: polygon(), Address: "Ленина 5"})
	require.NoError(t, err)
	require.Equal(t, domain.MatchExact, res.Kind)
	require.Zero(t, finder.addressCalls)
}

func TestResolve_NoPeersIsNoMatch(t *testing.T) {
	finder := &fakeFinder{}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: polygon()})
	require.NoError(t, err)
	require.Equal(t, domain.MatchNone, res.Kind)
	require.Nil(t, res.Clipped)
	require.Zero(t, finder.clipCalls)
}

func TestResolve_RatioJustAboveThresholdMatches(t *testing.T) {
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{{ID: 11, Ratio: 0.31}}}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: polygon()})
	require.NoError(t, err)
	require.Equal(t, domain.MatchExact, res.Kind)
	require.Equal(t, int64(11), res.Peer.ID)
	require.False(t, res.ByAddr)
}

func TestResolve_BelowThresholdClipsAndInserts(t *testing.T) {
	finder := &fakeFinder{
		overlapping: []domain.OverlapPeer{{ID: 11, Ratio: 0.29}},
		clipped:     domain.Geometry{GeoJSON: `{"type":"Polygon"}`, Type: "ST_Polygon"},
	}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: polygon()})
	require.NoError(t, err)
	require.Equal(t, domain.MatchNone, res.Kind)
	require.NotNil(t, res.Clipped)
	require.Equal(t, 1, finder.clipCalls)
}

func TestResolve_ClipSwallowedByPeers(t *testing.T) {
	// ST_Difference left nothing: the candidate is fully owned by its
	// neighbors, and the caller inserts the original geometry as-is.
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{{ID: 11, Ratio: 0.2}, {ID: 12, Ratio: 0.1}}}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: polygon()})
	require.NoError(t, err)
	require.Equal(t, domain.MatchNone, res.Kind)
	require.Nil(t, res.Clipped)
}

func TestResolve_TooManyPeersIsAmbiguous(t *testing.T) {
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{
		{ID: 1, Ratio: 0.9}, {ID: 2, Ratio: 0.8}, {ID: 3, Ratio: 0.7},
	}}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: polygon()})
	require.NoError(t, err)
	require.Equal(t, domain.MatchAmbiguous, res.Kind)
	require.Equal(t, 3, res.Peers)
	require.Zero(t, finder.clipCalls)
}

func TestResolve_BestRatioWinsRegardlessOfOrder(t *testing.T) {
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{
		{ID: 1, Ratio: 0.35}, {ID: 2, Ratio: 0.85},
	}}
	r := NewResolver(domain.BuildingDescriptor, finder, silentLogger())

	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: polygon()})
	require.NoError(t, err)
	require.Equal(t, domain.MatchExact, res.Kind)
	require.Equal(t, int64(2), res.Peer.ID)
}

func TestResolve_PointCandidateRatioOne(t *testing.T) {
	// points carry ratio 1.0 from the store, always above any threshold
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{{ID: 5, Ratio: 1.0, GeomType: "ST_Point"}}}
	r := NewResolver(domain.ServiceObjectDescriptor, finder, silentLogger())

	pt := domain.Geometry{GeoJSON: `{"type":"Point","coordinates":[30.3,59.9]}`, Type: "ST_Point"}
	res, err := r.Resolve(context.Background(), Scope{CityID: 1}, domain.Candidate{Geometry: pt})
	require.NoError(t, err)
	require.Equal(t, domain.MatchExact, res.Kind)
}
