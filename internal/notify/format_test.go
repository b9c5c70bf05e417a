package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPLN(t *testing.T) {
	require.Equal(t, "99,00", formatPLN(99))
	require.Equal(t, "1 234,50", formatPLN(1234.5))
	require.Equal(t, "1 000 000,00", formatPLN(1000000))
	require.Equal(t, "-1 234,50", formatPLN(-1234.5))
	require.Equal(t, "0,99", formatPLN(0.99))
}

func TestSourceLookups(t *testing.T) {
	require.Equal(t, "Morele.net", sourceDisplayName("morele"))
	require.Equal(t, "x-kom", sourceDisplayName(" XKOM "))
	require.Equal(t, "allegro", sourceDisplayName("allegro"))

	require.Equal(t, 0x00a859, sourceColor("morele.net"))
	require.Equal(t, 0x1a1a1a, sourceColor("x-kom"))
	require.Equal(t, defaultEmbedColor, sourceColor("unknown"))
}
