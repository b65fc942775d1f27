package tabular

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectColumn_ExactMatchWins(t *testing.T) {
	columns := []string{"Address", "address", "addr"}
	require.Equal(t, "address", DetectColumn(columns, []string{"address", "addr"}))
}

func TestDetectColumn_CaseAndPunctuationInsensitive(t *testing.T) {
	columns := []string{"Opening Hours", "web-site"}
	require.Equal(t, "Opening Hours", DetectColumn(columns, []string{"opening_hours"}))
	require.Equal(t, "web-site", DetectColumn(columns, []string{"website"}))
}

func TestDetectColumn_CandidateOrderBreaksTies(t *testing.T) {
	columns := []string{"yand_addr", "addr"}
	require.Equal(t, "yand_addr", DetectColumn(columns, []string{"yand_addr", "addr"}))
	require.Equal(t, "addr", DetectColumn(columns, []string{"addr", "yand_addr"}))
}

func TestDetectColumn_FuzzyFallback(t *testing.T) {
	columns := []string{"address:1", "geometry"}
	require.Equal(t, "address:1", DetectColumn(columns, []string{"address"}))
}

func TestDetectColumn_NothingFits(t *testing.T) {
	require.Empty(t, DetectColumn([]string{"geometry"}, []string{"capacity"}))
	require.Empty(t, DetectColumn(nil, []string{"capacity"}))
}
