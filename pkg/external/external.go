// Package external declares the contracts for the collaborators the
// appearance pipeline depends on but does not implement: the asset and
// inventory stores, and the texture compositor ("baker"). This package is
// that contract, giving pkg/appearance something concrete to call against
// and tests something concrete to fake.
package external

import (
	"context"

	"github.com/google/uuid"
)

// AssetStatus reports the outcome of an asset fetch.
type AssetStatus int

const (
	AssetStatusOK AssetStatus = iota
	AssetStatusNotFound
	AssetStatusTimeout
	AssetStatusError
)

// AssetType distinguishes a wearable asset (decodable into params+textures)
// from a raw image asset (a bake input texture).
type AssetType int

const (
	AssetTypeWearable AssetType = iota
	AssetTypeTexture
)

// DecodedWearable is a wearable asset's payload once decoded: its visual
// parameter values and the texture IDs it assigns per texture-entry slot.
type DecodedWearable struct {
	Params   map[int]float64
	Textures map[int]uuid.UUID
}

// AssetService is the external asset-fetch/upload collaborator.
type AssetService interface {
	// RequestAsset fetches and decodes a wearable asset.
	RequestAsset(ctx context.Context, assetID uuid.UUID, assetType AssetType) (DecodedWearable, AssetStatus, error)
	// RequestImage fetches raw texture bytes used as a bake input.
	RequestImage(ctx context.Context, textureID uuid.UUID) ([]byte, AssetStatus, error)
	// UploadBakedTexture uploads a baker's JPEG-2000 output, returning its
	// new asset ID.
	UploadBakedTexture(ctx context.Context, data []byte) (uuid.UUID, error)
}

// OutfitLink is one entry in the Current Outfit Folder: a wearable,
// attachment, or object link pointing at the underlying inventory item.
type OutfitLinkKind int

const (
	OutfitLinkWearable OutfitLinkKind = iota
	OutfitLinkAttachment
	OutfitLinkObject
)

type OutfitLink struct {
	Kind         OutfitLinkKind
	ActualUUID   uuid.UUID
	WearableType int
	AttachPoint  int
}

// InventoryService is the external Current-Outfit-Folder collaborator.
type InventoryService interface {
	// ReadCurrentOutfit returns the COF's links and its version integer.
	ReadCurrentOutfit(ctx context.Context) ([]OutfitLink, int, error)
	// FindObjectByPath is an optional helper path lookup.
	FindObjectByPath(ctx context.Context, rootID, agentID uuid.UUID, pathSegments []string) (uuid.UUID, error)
}

// Baker is the external texture compositor: a pure function, no network,
// no blocking.
type Baker interface {
	Bake(layer int, orderedTextureInputs [][]byte, alphaMasks [][]byte, tint [4]float64) ([]byte, error)
}
