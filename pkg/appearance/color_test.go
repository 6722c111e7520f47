package appearance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metaverse-go/region-session/pkg/bakehash"
)

func TestDeriveColorBlendScenario(t *testing.T) {
	info := ColorParamInfo{
		Param:        1,
		ColorParam:   112,
		Value:        0.25,
		Min:          0,
		Max:          1,
		Op:           ColorOpBlend,
		WearableType: bakehash.WearableHair,
		Palette: []PaletteEntry{
			{Value: Color{1, 0, 0, 1}},
			{Value: Color{0, 0, 1, 1}},
		},
	}

	got := DeriveColor([]ColorParamInfo{info})
	want := Color{0.1875, 0, 0.0625, 0.25}
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-4)
	}
}

func TestAllowedColorParamRestrictsWhitelistedTypes(t *testing.T) {
	require.True(t, allowedColorParam(bakehash.WearableHair, 112))
	require.False(t, allowedColorParam(bakehash.WearableHair, 999))
	require.True(t, allowedColorParam(bakehash.WearableShirt, 999), "unrestricted type allows any param")
}

func TestPaletteColorSingleEntry(t *testing.T) {
	info := ColorParamInfo{
		Value:   0.9,
		Palette: []PaletteEntry{{Value: Color{1, 1, 1, 1}}},
	}
	require.Equal(t, Color{1, 1, 1, 1}, paletteColor(info))
}

func TestPaletteColorExactBreakpointHit(t *testing.T) {
	info := ColorParamInfo{
		Value: 1,
		Min:   0,
		Max:   1,
		Palette: []PaletteEntry{
			{Value: Color{1, 0, 0, 1}},
			{Value: Color{0, 1, 0, 1}},
		},
	}
	require.Equal(t, Color{0, 1, 0, 1}, paletteColor(info))
}

func TestDeriveColorAddAccumulates(t *testing.T) {
	infos := []ColorParamInfo{
		{Op: ColorOpAdd, Palette: []PaletteEntry{{Value: Color{0.2, 0.2, 0.2, 0.2}}}},
		{Op: ColorOpAdd, Palette: []PaletteEntry{{Value: Color{0.1, 0.1, 0.1, 0.1}}}},
	}
	got := DeriveColor(infos)
	want := Color{0.3, 0.3, 0.3, 0.3}
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-9)
	}
}
