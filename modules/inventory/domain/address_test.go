package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsLongestPrefixFirst(t *testing.T) {
	n := NewAddressNormalizer([]string{"Россия", "Россия, Санкт-Петербург"}, "")

	suffix, ok := n.Normalize("Россия, Санкт-Петербург, Ленина 5")
	require.True(t, ok)
	require.Equal(t, "Ленина 5", suffix)
}

func TestNormalize_TwoPrefixesSameSuffix(t *testing.T) {
	n := NewAddressNormalizer([]string{"Россия, Санкт-Петербург", "Санкт-Петербург"}, "")

	a, ok := n.Normalize("Россия, Санкт-Петербург, Ленина 5")
	require.True(t, ok)
	b, ok2 := n.Normalize("Санкт-Петербург, Ленина 5")
	require.True(t, ok2)
	require.Equal(t, a, b)
}

func TestNormalize_RejectsUnknownPrefix(t *testing.T) {
	n := NewAddressNormalizer([]string{"Россия, Санкт-Петербург"}, "")

	_, ok := n.Normalize("Москва, Тверская 1")
	require.False(t, ok)
}

func TestNormalize_CleansQuestionMarksAndWhitespace(t *testing.T) {
	n := NewAddressNormalizer([]string{"SPB"}, "")

	require.Equal(t, "SPB, Main st. 1", n.Clean("  SPB, Main st.? 1 "))

	suffix, ok := n.Normalize("  SPB, Main st.? 1 ")
	require.True(t, ok)
	require.Equal(t, "Main st. 1", suffix)
}

func TestStored_PrependsNewPrefix(t *testing.T) {
	n := NewAddressNormalizer([]string{"Россия, Санкт-Петербург"}, "г. Санкт-Петербург, ")

	suffix, ok := n.Normalize("Россия, Санкт-Петербург, Ленина 5")
	require.True(t, ok)
	require.Equal(t, "г. Санкт-Петербург, Ленина 5", n.Stored(suffix))
}

func TestNormalize_EmptyAddress(t *testing.T) {
	n := NewAddressNormalizer([]string{"X"}, "")

	_, ok := n.Normalize("   ")
	require.False(t, ok)
}
