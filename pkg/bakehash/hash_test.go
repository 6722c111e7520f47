package bakehash

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHashEmptyLayerIsNil(t *testing.T) {
	got := Hash(LayerSkirt, nil)
	require.Equal(t, uuid.Nil, got)
}

func TestHashDependsOnlyOnTypeAssetMultiset(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()

	worn := []WornAsset{
		{Type: WearableShape, AssetID: a},
		{Type: WearableSkin, AssetID: b},
		{Type: WearableHair, AssetID: c},
	}
	reordered := []WornAsset{
		{Type: WearableHair, AssetID: c},
		{Type: WearableShape, AssetID: a},
		{Type: WearableSkin, AssetID: b},
	}

	require.Equal(t, Hash(LayerHead, worn), Hash(LayerHead, reordered))
}

func TestHashIgnoresAssetsOutsideLayerWBM(t *testing.T) {
	worn := []WornAsset{{Type: WearableSkirt, AssetID: uuid.New()}}
	require.Equal(t, uuid.Nil, Hash(LayerHead, worn))
}

func TestHashMatchesManualXorFold(t *testing.T) {
	a := uuid.New()
	worn := []WornAsset{
		{Type: WearableEyes, AssetID: a},
	}
	want := xorUUID(a, Magic[LayerEyes])
	require.Equal(t, want, Hash(LayerEyes, worn))
}

func TestCacheQueryIDOkFalseWhenEmpty(t *testing.T) {
	_, ok := CacheQueryID(LayerSkirt, nil)
	require.False(t, ok)
}
