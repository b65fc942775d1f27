package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmbiguousMatchError_MessagePerKind(t *testing.T) {
	require.Equal(t, "overlaps 3 existing buildings, manual resolution required",
		(&AmbiguousMatchError{Kind: KindBuilding, Peers: 3}).Error())
	require.Equal(t, "overlaps 3 existing objects, manual resolution required",
		(&AmbiguousMatchError{Kind: KindService, Peers: 3}).Error())
	require.Equal(t, "intersects 4 other blocks, manual resolution required",
		(&AmbiguousMatchError{Kind: KindBlock, Peers: 4}).Error())

	for _, kind := range []EntityKind{KindAdministrativeUnit, KindMunicipality} {
		require.Equal(t,
			"overlaps 3 existing divisions of the same kind, manual insertion required for nested divisions",
			(&AmbiguousMatchError{Kind: kind, Peers: 3}).Error())
	}
}

func TestIsBatchFatal(t *testing.T) {
	require.True(t, IsBatchFatal(&ReferenceNotFoundError{Entity: "city", Name: "Nowhere"}))
	require.True(t, IsBatchFatal(&ValidationError{Column: "geometry", Reason: "missing"}))
	require.True(t, IsBatchFatal(fmt.Errorf("loading: %w", &ValidationError{Reason: "missing"})))

	require.False(t, IsBatchFatal(&AmbiguousMatchError{Kind: KindBuilding, Peers: 3}))
	require.False(t, IsBatchFatal(ErrInvalidGeometry))
	require.False(t, IsBatchFatal(fmt.Errorf("boom")))
}
