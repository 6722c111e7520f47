// Package bakehash computes the per-bake-layer cache-check hash and holds
// the static wearable-type catalog it depends on: the "wearable bake map"
// associating each of the 6 bake layers with the wearable-type slots that
// feed it.
package bakehash

import "github.com/google/uuid"

// WearableType is one of the 16 primary wearable/body-part slots;
// AgentIsNowWearing carries exactly 16.
type WearableType uint8

const (
	WearableShape WearableType = iota
	WearableSkin
	WearableHair
	WearableEyes
	WearableShirt
	WearablePants
	WearableShoes
	WearableSocks
	WearableJacket
	WearableGloves
	WearableUndershirt
	WearableUnderpants
	WearableSkirt
	WearableTattoo
	WearableAlpha
	WearablePhysics
	wearableTypeCount
)

// BodyParts are the wearable types a replace-outfit must never end up
// without.
var BodyParts = []WearableType{WearableShape, WearableSkin, WearableEyes, WearableHair}

// IsBodyPart reports whether t is one of the body-part types.
func IsBodyPart(t WearableType) bool {
	for _, bp := range BodyParts {
		if bp == t {
			return true
		}
	}
	return false
}

// BakeLayer indexes the 6 bake layers in a fixed order shared by the
// cached-texture response's textureIndex byte and the MAGIC table below.
type BakeLayer uint8

const (
	LayerHead BakeLayer = iota
	LayerUpperBody
	LayerLowerBody
	LayerEyes
	LayerSkirt
	LayerHair
	bakeLayerCount
)

func (l BakeLayer) String() string {
	switch l {
	case LayerHead:
		return "head"
	case LayerUpperBody:
		return "upper_body"
	case LayerLowerBody:
		return "lower_body"
	case LayerEyes:
		return "eyes"
	case LayerSkirt:
		return "skirt"
	case LayerHair:
		return "hair"
	default:
		return "unknown"
	}
}

// BakedSlotIndex maps a BakeLayer to its slot index in Textures[].
var BakedSlotIndex = [bakeLayerCount]int{8, 9, 10, 11, 19, 20}

// WBM is the static wearable bake map: for each bake layer, the wearable
// types whose worn assets contribute to that layer's hash and composite.
var WBM = [bakeLayerCount][]WearableType{
	LayerHead:      {WearableShape, WearableSkin, WearableHair, WearableTattoo, WearableAlpha},
	LayerUpperBody: {WearableShape, WearableSkin, WearableShirt, WearableJacket, WearableGloves, WearableUndershirt, WearableTattoo, WearableAlpha},
	LayerLowerBody: {WearableShape, WearableSkin, WearablePants, WearableShoes, WearableSocks, WearableJacket, WearableUnderpants, WearableTattoo, WearableAlpha},
	LayerEyes:      {WearableEyes},
	LayerSkirt:     {WearableSkirt},
	LayerHair:      {WearableHair, WearableTattoo, WearableAlpha},
}

// Magic holds the 6 fixed 128-bit constants XORed into a non-empty bake
// hash.
var Magic = [bakeLayerCount]uuid.UUID{
	LayerHead:      uuid.MustParse("18ded8d6-bcfc-e415-8539-944c0f5ea7a6"),
	LayerUpperBody: uuid.MustParse("338c29e3-3024-4dbb-998d-7c04cf4fa88f"),
	LayerLowerBody: uuid.MustParse("91b4a2c7-1b1a-ba16-9a16-1f8f8dcc1c3f"),
	LayerEyes:      uuid.MustParse("b2cf28af-b840-1071-3c6a-78085d8128b5"),
	LayerSkirt:     uuid.MustParse("ea800387-ea1a-14e0-56cb-24f2022f969a"),
	LayerHair:      uuid.MustParse("0af1ef7c-ad24-11dd-8790-001f5bf833e8"),
}

// DefaultTextureSentinel is the "default avatar texture" ID that the
// appearance core treats as "no texture" everywhere.
var DefaultTextureSentinel = uuid.MustParse("c228d1cf-4b5d-4ba8-84f4-899a0796aa97")

// WornAsset is one worn item's contribution to a bake layer's hash: its
// wearable type and the asset ID backing it. The hash depends only on the
// multiset of {type, assetID} pairs.
type WornAsset struct {
	Type    WearableType
	AssetID uuid.UUID
}
