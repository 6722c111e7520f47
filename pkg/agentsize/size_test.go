package agentsize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeightBaselineWithNoParams(t *testing.T) {
	require.InDelta(t, 1.706, Height(nil), 1e-9)
}

func TestHeightAccumulatesEachTerm(t *testing.T) {
	vp := map[int]float64{
		VPLegLength:      1,
		VPHipLength:      1,
		VPHeight:         1,
		VPHeadSize:       1,
		VPNeckLength:     1,
		VPHeelHeight:     1,
		VPPlatformHeight: 1,
	}
	want := 1.706 + 0.1918 + 0.0375 + 0.12022 + 0.01117 + 0.038 + 0.08 + 0.07
	require.InDelta(t, want, Height(vp), 1e-9)
}

func TestSizeFixesWidthAndDepth(t *testing.T) {
	s := Size(nil)
	require.Equal(t, 0.45, s.X)
	require.Equal(t, 0.6, s.Y)
	require.InDelta(t, 1.706, s.Z, 1e-9)
}
