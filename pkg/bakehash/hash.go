package bakehash

import "github.com/google/uuid"

// xorUUID XORs two UUIDs byte-by-byte.
func xorUUID(a, b uuid.UUID) uuid.UUID {
	var out uuid.UUID
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Hash computes the bake-hash for layer given the full set of currently
// worn assets:
//
//	h := zero
//	for each slot type t in WBM[layer]:
//	    for each worn wearable w of type t (in insertion order):
//	        h := h XOR w.assetID
//	if h != zero:
//	    h := h XOR MAGIC[layer]
//
// worn is the ordered list of everything currently worn, already filtered
// to this layer's slot types by the caller or, if not, filtered here.
// Returns uuid.Nil ("this bake is empty") when nothing in the layer's WBM
// row is worn — callers must skip the cache query for that layer.
func Hash(layer BakeLayer, worn []WornAsset) uuid.UUID {
	slots := make(map[WearableType]struct{}, len(WBM[layer]))
	for _, t := range WBM[layer] {
		slots[t] = struct{}{}
	}

	h := uuid.Nil
	for _, w := range worn {
		if _, ok := slots[w.Type]; !ok {
			continue
		}
		h = xorUUID(h, w.AssetID)
	}
	if h == uuid.Nil {
		return uuid.Nil
	}
	return xorUUID(h, Magic[layer])
}

// CacheQueryID is the id sent in an AgentCachedTexture wearableData entry
// for a given layer: the bake hash itself, which already includes the
// MAGIC[layer] XOR; no second XOR is applied. An empty bake has no query ID
// at all; CacheQueryID is only meaningful when ok is true.
func CacheQueryID(layer BakeLayer, worn []WornAsset) (id uuid.UUID, ok bool) {
	h := Hash(layer, worn)
	if h == uuid.Nil {
		return uuid.Nil, false
	}
	return h, true
}
