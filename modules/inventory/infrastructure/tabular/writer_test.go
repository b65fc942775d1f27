package tabular

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

func auditFixture() (*domain.Table, []domain.Outcome) {
	table := &domain.Table{
		Columns: []string{"address", "storeys"},
		Rows: []domain.Row{
			{"address": "Ленина 5", "storeys": "9"},
			{"address": "Мира 3"},
		},
	}
	outcomes := []domain.Outcome{
		domain.Inserted(55, "building inserted (building_id = 55, phys_id = 70)"),
		domain.Skipped("geometry is missing"),
	}
	return table, outcomes
}

func TestWriteAudit_SheetCarriesResultColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.xlsx")
	table, outcomes := auditFixture()

	sheet, err := WriteAudit(path, table, outcomes, domain.KindBuilding)
	require.NoError(t, err)
	require.LessOrEqual(t, len(sheet), 31)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"address", "storeys", "result", "building_id"}, rows[0])
	require.Equal(t, "55", rows[1][3])
	require.Equal(t, "geometry is missing", rows[2][2])
}

func TestWriteAuditCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	table, outcomes := auditFixture()

	require.NoError(t, WriteAuditCSV(path, table, outcomes, domain.KindService))

	written, err := LoadCSV(path)
	require.NoError(t, err)
	require.Equal(t, []string{"address", "storeys", "result", "functional_obj_id"}, written.Columns)
	require.Equal(t, 2, written.Len())
	require.Equal(t, "55", written.Rows[0].String("functional_obj_id"))
	require.Equal(t, "-1", written.Rows[1].String("functional_obj_id"))
}
