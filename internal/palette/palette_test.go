package palette

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallback_CyclesDeterministically(t *testing.T) {
	t.Parallel()
	require.Equal(t, Available[0], Fallback(0))
	require.Equal(t, Available[len(Available)-1], Fallback(len(Available)-1))
	require.Equal(t, Available[0], Fallback(len(Available)))
	require.Equal(t, Available[2], Fallback(2+3*len(Available)))
}

func TestFallback_NegativeIndexClamps(t *testing.T) {
	t.Parallel()
	require.Equal(t, Available[0], Fallback(-1))
}

func TestLegacyFallback_FansOutFlatColor(t *testing.T) {
	t.Parallel()
	got := Fallback(1)
	require.Equal(t, got.ColumnColor, Available[1].ColumnColor)

	legacy := LegacyFallback(1)
	require.Equal(t, CardColors[1], legacy.ColumnColor)
	require.Equal(t, legacy.ColumnColor, legacy.ItemColor)
	require.Equal(t, legacy.ColumnColor, legacy.ButtonColor)

	wrapped := LegacyFallback(1 + 2*len(CardColors))
	require.Equal(t, legacy, wrapped)
}

func TestAvailable_AllSlotsFilled(t *testing.T) {
	t.Parallel()
	for i, color := range Available {
		require.NotEmpty(t, color.ColumnColor, "entry %d", i)
		require.NotEmpty(t, color.ItemColor, "entry %d", i)
		require.NotEmpty(t, color.ButtonColor, "entry %d", i)
	}
}
