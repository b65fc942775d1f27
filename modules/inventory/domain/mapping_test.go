package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceMapping_RequiresGeometryOrCoordinates(t *testing.T) {
	m := &ServiceMapping{Name: "name"}
	require.Error(t, m.Validate())

	m = &ServiceMapping{Latitude: "y", Longitude: "x"}
	require.NoError(t, m.Validate())

	m = &ServiceMapping{Geometry: "geometry"}
	require.NoError(t, m.Validate())

	// a lone latitude is not enough
	m = &ServiceMapping{Latitude: "y"}
	require.Error(t, m.Validate())
}

func TestBuildingMapping_DashMeansUnset(t *testing.T) {
	m := &BuildingMapping{Geometry: "geometry", Address: "-", UKName: "-"}
	require.NoError(t, m.Validate())
	require.Empty(t, m.Address)
	require.Empty(t, m.UKName)
}

func TestBuildingMapping_GeometryRequired(t *testing.T) {
	m := &BuildingMapping{Address: "addr"}
	err := m.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "geometry", verr.Column)
}

func TestDivisionMapping_RequiredFields(t *testing.T) {
	m := &DivisionMapping{Geometry: "geometry", TypeName: "type", Name: "name"}
	require.NoError(t, m.Validate())

	m = &DivisionMapping{Geometry: "geometry", Name: "name"}
	require.Error(t, m.Validate())
}

func TestAttributeColumns_StableOrderAndLegacySpellings(t *testing.T) {
	m := &BuildingMapping{Geometry: "geometry"}
	cols := m.AttributeColumns()

	require.Equal(t, "address", cols[0].DBColumn)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.DBColumn)
	}
	require.Contains(t, names, "central_hotwater")
	require.Contains(t, names, "central_electro")
	require.Contains(t, names, "failure")
}
