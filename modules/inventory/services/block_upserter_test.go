package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

type fakeBlocks struct {
	inserts    []string
	updates    []int64
	relocated  int
	recomputed int
}

func (f *fakeBlocks) Insert(_ context.Context, _ int64, geoJSON string) (int64, error) {
	f.inserts = append(f.inserts, geoJSON)
	return 31, nil
}

func (f *fakeBlocks) UpdateGeometry(_ context.Context, id int64, _ int64, _ string) error {
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeBlocks) RelocateObjects(context.Context, int64) error {
	f.relocated++
	return nil
}

func (f *fakeBlocks) RecomputePopulation(context.Context, int64) error {
	f.recomputed++
	return nil
}

func newBlockUpserter(finder *fakeFinder, blocks *fakeBlocks) *BlockUpserter {
	log := silentLogger()
	return NewBlockUpserter(
		domain.City{ID: 1, Name: "Санкт-Петербург"},
		domain.BlockMapping{Geometry: "geometry"},
		NewResolver(domain.BlockDescriptor, finder, log),
		fakeGeo{},
		blocks,
		log,
	)
}

func TestBlockUpserter_EqualFootprintIsUnchanged(t *testing.T) {
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{{ID: 3, Ratio: 1.0, Equal: true}}}
	blocks := &fakeBlocks{}
	u := newBlockUpserter(finder, blocks)

	outcome, err := u.ProcessRow(context.Background(), domain.Row{"geometry": `{"type":"Polygon"}`}, 0)
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnchanged, outcome.Status)
	require.Empty(t, blocks.updates)
}

func TestBlockUpserter_OverlappingFootprintIsReplaced(t *testing.T) {
	finder := &fakeFinder{overlapping: []domain.OverlapPeer{{ID: 3, Ratio: 0.8}}}
	blocks := &fakeBlocks{}
	u := newBlockUpserter(finder, blocks)

	outcome, err := u.ProcessRow(context.Background(), domain.Row{"geometry": `{"type":"Polygon"}`}, 0)
	require.NoError(t, err)
	require.Equal(t, domain.StatusUpdated, outcome.Status)
	require.Equal(t, []int64{3}, blocks.updates)
}

func TestBlockUpserter_DisjointFootprintIsInserted(t *testing.T) {
	blocks := &fakeBlocks{}
	u := newBlockUpserter(&fakeFinder{}, blocks)

	outcome, err := u.ProcessRow(context.Background(), domain.Row{"geometry": `{"type":"Polygon"}`}, 0)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInserted, outcome.Status)
	require.Equal(t, int64(31), outcome.EntityID)
	require.Equal(t, []string{`{"type":"Polygon"}`}, blocks.inserts)
}

func TestBlockUpserter_PartialOverlapInsertsClipped(t *testing.T) {
	finder := &fakeFinder{
		overlapping: []domain.OverlapPeer{{ID: 3, Ratio: 0.1}},
		clipped:     domain.Geometry{GeoJSON: `{"type":"Polygon","clipped":true}`, Type: "ST_Polygon"},
	}
	blocks := &fakeBlocks{}
	u := newBlockUpserter(finder, blocks)

	outcome, err := u.ProcessRow(context.Background(), domain.Row{"geometry": `{"type":"Polygon"}`}, 0)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInserted, outcome.Status)
	require.Equal(t, []string{`{"type":"Polygon","clipped":true}`}, blocks.inserts)
}

func TestBlockUpserter_FinalizeRelocatesAndRecounts(t *testing.T) {
	blocks := &fakeBlocks{}
	u := newBlockUpserter(&fakeFinder{}, blocks)

	require.NoError(t, u.Finalize(context.Background()))
	require.Equal(t, 1, blocks.relocated)
	require.Equal(t, 1, blocks.recomputed)
}
