// Package appearance implements the outfit/bake state machine: cache-check,
// asset fetch, baker invocation, and the HTTP capability path for
// server-side baking. All mutable state lives behind a single owner struct
// guarded by one lock; mutators dispatch to it and observers receive
// snapshots.
package appearance

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/metaverse-go/region-session/pkg/bakehash"
)

// NTex is the number of texture-entry slots.
const NTex = 45

// WearableData is one worn item.
type WearableData struct {
	ItemID       uuid.UUID
	AssetID      uuid.UUID
	WearableType bakehash.WearableType
	DecodedAsset *DecodedAsset
}

// DecodedAsset is the decoded form of a wearable's asset bytes.
type DecodedAsset struct {
	Params   map[int]float64
	Textures map[int]uuid.UUID
}

// TextureSlot is one entry of Textures[].
type TextureSlot struct {
	TextureID  uuid.UUID
	AlphaMasks []float64
	Color      [4]float64
}

// State owns every mutable field the appearance pipeline reads and writes,
// guarded by a single lock. Each accessor takes the lock only for its own
// read or write; the pipeline does not hold it across a phase.
type State struct {
	mu sync.Mutex

	wearables   map[bakehash.WearableType][]WearableData
	attachments map[uuid.UUID]int // itemID -> attachment point

	textures [NTex]TextureSlot

	cacheCheckSerial    uint32 // atomic
	setAppearanceSerial uint32 // atomic

	running atomic.Int32 // CAS gate: appearanceThreadRunning

	serverBakingDone bool
}

// NewState constructs an empty appearance state.
func NewState() *State {
	return &State{
		wearables:   make(map[bakehash.WearableType][]WearableData),
		attachments: make(map[uuid.UUID]int),
	}
}

// TryAcquire CASes the single-flight gate from 0 to 1. Returns false if a
// pipeline run is already in progress.
func (s *State) TryAcquire() bool {
	return s.running.CompareAndSwap(0, 1)
}

// Release clears the single-flight gate.
func (s *State) Release() {
	s.running.Store(0)
}

// NextCacheCheckSerial returns a fresh monotonic cache-check serial.
func (s *State) NextCacheCheckSerial() uint32 {
	return atomic.AddUint32(&s.cacheCheckSerial, 1)
}

// NextSetAppearanceSerial returns a fresh monotonic set-appearance serial.
func (s *State) NextSetAppearanceSerial() uint32 {
	return atomic.AddUint32(&s.setAppearanceSerial, 1)
}

// Wearables returns a snapshot copy of the current wearables map, safe to
// read without holding the appearance lock.
func (s *State) Wearables() map[bakehash.WearableType][]WearableData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[bakehash.WearableType][]WearableData, len(s.wearables))
	for t, items := range s.wearables {
		cp := make([]WearableData, len(items))
		copy(cp, items)
		out[t] = cp
	}
	return out
}

// WornAssets flattens the current wearables into the {type, assetID} pairs
// bakehash.Hash consumes.
func (s *State) WornAssets() []bakehash.WornAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []bakehash.WornAsset
	for t, items := range s.wearables {
		for _, w := range items {
			out = append(out, bakehash.WornAsset{Type: t, AssetID: w.AssetID})
		}
	}
	return out
}

// Attachments returns a snapshot of the current attachment map.
func (s *State) Attachments() map[uuid.UUID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]int, len(s.attachments))
	for k, v := range s.attachments {
		out[k] = v
	}
	return out
}

// SetAttachments replaces the attachment map wholesale (gather phase).
func (s *State) SetAttachments(m map[uuid.UUID]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = m
}

// TextureSlot returns a copy of Textures[idx].
func (s *State) TextureSlot(idx int) TextureSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textures[idx]
}

// SetTextureSlot writes Textures[idx].
func (s *State) SetTextureSlot(idx int, t TextureSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textures[idx] = t
}

// SetServerBakingDone records that mode-A baking has completed at least once.
func (s *State) SetServerBakingDone(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverBakingDone = v
}

// ServerBakingDone reports whether mode-A baking has ever completed.
func (s *State) ServerBakingDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverBakingDone
}

// withWearables runs fn with exclusive access to the wearables map, used by
// the outfit-edit operations which must read-modify-write atomically.
func (s *State) withWearables(fn func(map[bakehash.WearableType][]WearableData) map[bakehash.WearableType][]WearableData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wearables = fn(s.wearables)
}
