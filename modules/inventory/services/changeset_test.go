package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChangeset_EmptyCandidateNeverOverwrites(t *testing.T) {
	var cs Changeset
	cs.Compare("address", "Ленина 5", nil)
	cs.Compare("ukname", "ЖКС-1", "   ")
	require.True(t, cs.Empty())
}

func TestChangeset_NumericPromotion(t *testing.T) {
	var cs Changeset
	// int64 scanned from the store vs float parsed from the document
	cs.Compare("storeys_count", int64(5), float64(5))
	require.True(t, cs.Empty())

	cs.Compare("storeys_count", int64(5), float64(6))
	require.Equal(t, 1, cs.Len())
	require.Equal(t, "storeys_count", cs.Changes()[0].Column)
}

func TestChangeset_NilStoredIsAlwaysADiff(t *testing.T) {
	var cs Changeset
	cs.Compare("living_area", nil, 120.5)
	require.Equal(t, 1, cs.Len())
}

func TestChangeset_BoolAndStringComparison(t *testing.T) {
	var cs Changeset
	cs.Compare("central_heating", true, true)
	cs.Compare("address", []byte("Ленина 5"), "Ленина 5")
	require.True(t, cs.Empty())

	cs.Compare("central_heating", true, false)
	require.Equal(t, 1, cs.Len())
}

func TestChangeset_Drop(t *testing.T) {
	var cs Changeset
	cs.Add("address", "a")
	cs.Add("ukname", "b")
	cs.Drop("address")
	require.Equal(t, 1, cs.Len())
	require.Equal(t, "ukname", cs.Changes()[0].Column)
}

func TestMergeProperties_KeepsUnlistedStoredKeys(t *testing.T) {
	merged, changed := MergeProperties(
		map[string]any{"cadastral": "78:1", "zone": "A"},
		map[string]any{"zone": "B"},
	)
	require.True(t, changed)
	require.Equal(t, "78:1", merged["cadastral"])
	require.Equal(t, "B", merged["zone"])
}

func TestMergeProperties_NoDiffNoChange(t *testing.T) {
	merged, changed := MergeProperties(
		map[string]any{"zone": "A"},
		map[string]any{"zone": "A"},
	)
	require.False(t, changed)
	require.Len(t, merged, 1)
}

func TestReconcileModeled_AddsDeclaredFields(t *testing.T) {
	result, changed := ReconcileModeled(nil, []string{"living_area"}, nil)
	require.True(t, changed)
	require.Equal(t, map[string]int{"living_area": 1}, result)
}

func TestReconcileModeled_ClearsOnlyWhenValueSupplied(t *testing.T) {
	stored := map[string]int{"living_area": 1, "storeys_count": 1}
	supplied := func(f string) bool { return f == "living_area" }

	result, changed := ReconcileModeled(stored, nil, supplied)
	require.True(t, changed)
	require.NotContains(t, result, "living_area")
	// no concrete value arrived for storeys_count, the flag stays
	require.Contains(t, result, "storeys_count")
}

func TestReconcileModeled_StableWhenNothingMoves(t *testing.T) {
	stored := map[string]int{"living_area": 1}
	result, changed := ReconcileModeled(stored, []string{"living_area"}, func(string) bool { return true })
	require.False(t, changed)
	require.Equal(t, stored, result)
}

func TestParseModeledList(t *testing.T) {
	require.Equal(t, []string{"living_area", "building_year"},
		ParseModeledList(" living_area , building_year ,"))
	require.Nil(t, ParseModeledList("   "))
}
