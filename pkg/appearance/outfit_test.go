package appearance

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/metaverse-go/region-session/pkg/bakehash"
)

func TestAddReplacesSameTypeOnBodyPart(t *testing.T) {
	s := NewState()
	first := WearableData{ItemID: uuid.New(), AssetID: uuid.New(), WearableType: bakehash.WearableShape}
	second := WearableData{ItemID: uuid.New(), AssetID: uuid.New(), WearableType: bakehash.WearableShape}

	require.True(t, s.Add(first, false).Applied)
	require.True(t, s.Add(second, false).Applied)

	got := s.Wearables()[bakehash.WearableShape]
	require.Len(t, got, 1)
	require.Equal(t, second.ItemID, got[0].ItemID)
}

func TestRemoveRejectsBodyPart(t *testing.T) {
	s := NewState()
	shape := WearableData{ItemID: uuid.New(), WearableType: bakehash.WearableShape}
	s.Add(shape, false)

	res := s.Remove(shape.ItemID)
	require.False(t, res.Applied)
	require.Len(t, s.Wearables()[bakehash.WearableShape], 1)
}

func TestReplaceRetainsMissingBodyPartsFromPreviousSet(t *testing.T) {
	s := NewState()
	shape := WearableData{ItemID: uuid.New(), WearableType: bakehash.WearableShape}
	skin := WearableData{ItemID: uuid.New(), WearableType: bakehash.WearableSkin}
	eyes := WearableData{ItemID: uuid.New(), WearableType: bakehash.WearableEyes}
	hair := WearableData{ItemID: uuid.New(), WearableType: bakehash.WearableHair}
	s.Add(shape, false)
	s.Add(skin, false)
	s.Add(eyes, false)
	s.Add(hair, false)

	shirt := WearableData{ItemID: uuid.New(), WearableType: bakehash.WearableShirt}
	newSet := map[bakehash.WearableType][]WearableData{
		bakehash.WearableShirt: {shirt},
	}

	res := s.Replace(newSet, map[uuid.UUID]int{}, false)
	require.True(t, res.Applied)

	got := s.Wearables()
	require.Len(t, got[bakehash.WearableShape], 1, "shape retained from previous set")
	require.Len(t, got[bakehash.WearableSkin], 1)
	require.Len(t, got[bakehash.WearableEyes], 1)
	require.Len(t, got[bakehash.WearableHair], 1)
	require.Len(t, got[bakehash.WearableShirt], 1)
}

func TestReplaceFailsWhenBodyPartMissingEverywhere(t *testing.T) {
	s := NewState()
	newSet := map[bakehash.WearableType][]WearableData{
		bakehash.WearableShirt: {{ItemID: uuid.New(), WearableType: bakehash.WearableShirt}},
	}
	res := s.Replace(newSet, map[uuid.UUID]int{}, false)
	require.False(t, res.Applied)
	require.Empty(t, s.Wearables())
}

func TestSingleFlightGateRejectsConcurrentAcquire(t *testing.T) {
	s := NewState()
	require.True(t, s.TryAcquire())
	require.False(t, s.TryAcquire(), "second acquire must fail while first run is in progress")
	s.Release()
	require.True(t, s.TryAcquire(), "acquire succeeds again after release")
}
