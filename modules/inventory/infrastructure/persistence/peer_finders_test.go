package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `Ленина 5`, escapeLike("Ленина 5"))
	require.Equal(t, `корп\_2`, escapeLike("корп_2"))
	require.Equal(t, `100\%`, escapeLike("100%"))
	require.Equal(t, `\\\%\_`, escapeLike(`\%_`))
}
