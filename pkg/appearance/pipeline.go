package appearance

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/metaverse-go/region-session/pkg/agentsize"
	"github.com/metaverse-go/region-session/pkg/bakehash"
	"github.com/metaverse-go/region-session/pkg/events"
	"github.com/metaverse-go/region-session/pkg/external"
	"github.com/metaverse-go/region-session/pkg/session"
	"github.com/metaverse-go/region-session/pkg/wire"
)

// Pipeline timing and concurrency constants.
const (
	MaxConcurrentDownloads = 5
	WearableTimeout        = 30 * time.Second
	TextureTimeout         = 120 * time.Second
	UploadRetries          = 2
	UploadTimeout          = 90 * time.Second
	RebakeDelay            = 5 * time.Second
	TotalRetries           = 3
	OwnAvatarPollInterval  = 50 * time.Millisecond
	OwnAvatarMaxPolls      = 1000
)

// ServerBakeResponse is the decoded reply from the UpdateAvatarAppearance
// capability.
type ServerBakeResponse struct {
	Success      bool
	VisualParams []byte
	Textures     []uuid.UUID
	CofVersion   int
	Error        string
	Expected     int
	HasExpected  bool
}

// ServerBakeClient is the injected HTTP capability dependency; pkg/capability
// implements it.
type ServerBakeClient interface {
	UpdateAvatarAppearance(ctx context.Context, cofVersion int) (ServerBakeResponse, error)
}

// LiveObjectQuery lets the pipeline ask whether the agent's own avatar
// primitive is present in the live object set, without depending on
// whatever owns that set.
type LiveObjectQuery interface {
	OwnAvatarPresent() bool
}

// Deps bundles every external collaborator RequestSetAppearance needs.
type Deps struct {
	Log         *zap.Logger
	Assets      external.AssetService
	Inventory   external.InventoryService
	Baker       external.Baker
	ServerBake  ServerBakeClient
	LiveObjects LiveObjectQuery
	Sender      *session.Session
	Hub         *events.Hub
	AgentID     uuid.UUID
	SessionID   uuid.UUID
}

// Pipeline runs the appearance state machine against a single State owner.
type Pipeline struct {
	deps  Deps
	state *State

	rebakeMu    sync.Mutex
	rebakeTimer *time.Timer
}

// NewPipeline constructs a Pipeline bound to state and its collaborators.
func NewPipeline(state *State, deps Deps) *Pipeline {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Pipeline{deps: deps, state: state}
}

// RunOptions parametrizes one RequestSetAppearance invocation.
type RunOptions struct {
	ServerSideBaking bool // region capability flag AgentAppearanceService
	ForceRebake      bool
	CofVersion       int
}

// RequestSetAppearance is the outermost entry point: fire-and-forget, it
// runs the pipeline in the background and publishes an
// AppearanceSet{success} event when it finishes. It is single-flight: a
// call while a run is already in progress returns immediately with a
// warning and does not start a second run.
func (p *Pipeline) RequestSetAppearance(ctx context.Context, opts RunOptions) {
	if !p.state.TryAcquire() {
		p.deps.Log.Warn("appearance pipeline already running, dropping duplicate request")
		return
	}
	go func() {
		defer p.state.Release()
		err := p.run(ctx, opts)
		ev := AppearanceSetEvent{Success: err == nil, Err: err}
		p.deps.Hub.Publish(TopicAppearanceSet, ev)
	}()
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions) error {
	if opts.ServerSideBaking {
		return p.runServerSide(ctx, opts)
	}
	return p.runClientSide(ctx, opts)
}

// runServerSide drives server-side baking: wait for the avatar to be live,
// then call the UpdateAvatarAppearance capability and retry on a nack.
func (p *Pipeline) runServerSide(ctx context.Context, opts RunOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ok, timedOut, err := p.waitForOwnAvatar(ctx)
	if err != nil {
		return err
	}
	if timedOut {
		return wrapf(ErrAppearanceFatal, "own avatar never appeared in live object set")
	}
	if !ok {
		return wrapf(ErrAppearanceFatal, "own avatar wait failed")
	}

	// The capability's retry cadence is a fixed REBAKE_DELAY interval, not
	// exponential growth, so the backoff policy is a constant backoff capped
	// at TotalRetries attempts after the first.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(RebakeDelay), TotalRetries), ctx)

	var lastErr error
	op := func() error {
		resp, err := p.deps.ServerBake.UpdateAvatarAppearance(ctx, opts.CofVersion)
		if err != nil {
			lastErr = wrapf(ErrCapabilityNack, "UpdateAvatarAppearance transport error")
			return lastErr
		}
		if resp.HasExpected {
			lastErr = wrapf(ErrCapabilityNack, "server expected cof_version %d", resp.Expected)
			return lastErr
		}
		if !resp.Success || !serverBakeSlotsReady(resp.Textures) {
			lastErr = wrapf(ErrCapabilityNack, "server bake not ready")
			return lastErr
		}

		p.applyServerBake(resp)
		p.deps.Hub.Publish(TopicAvatarAppearance, AvatarAppearanceEvent{CofVersion: resp.CofVersion})
		p.state.SetServerBakingDone(true)
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return lastErr
	}
	return nil
}

// serverBakeSlotsReady checks slots 8-11 (head/upper/lower/eyes) are
// non-zero and non-sentinel.
func serverBakeSlotsReady(textures []uuid.UUID) bool {
	if len(textures) < 12 {
		return false
	}
	for _, idx := range []int{8, 9, 10, 11} {
		id := textures[idx]
		if id == uuid.Nil || id == bakehash.DefaultTextureSentinel {
			return false
		}
	}
	return true
}

func (p *Pipeline) applyServerBake(resp ServerBakeResponse) {
	for i, id := range resp.Textures {
		if i >= NTex {
			break
		}
		slot := p.state.TextureSlot(i)
		slot.TextureID = id
		p.state.SetTextureSlot(i, slot)
	}
}

// waitForOwnAvatar polls LiveObjects.OwnAvatarPresent() up to
// OwnAvatarMaxPolls times at OwnAvatarPollInterval. It returns ok and
// timedOut distinctly rather than conflating "gave up" with "succeeded".
func (p *Pipeline) waitForOwnAvatar(ctx context.Context) (ok bool, timedOut bool, err error) {
	if p.deps.LiveObjects == nil {
		return true, false, nil
	}
	ticker := time.NewTicker(OwnAvatarPollInterval)
	defer ticker.Stop()
	for i := 0; i < OwnAvatarMaxPolls; i++ {
		if p.deps.Sender != nil && p.deps.Sender.State() == session.StateConnected && p.deps.LiveObjects.OwnAvatarPresent() {
			return true, false, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false, false, ctx.Err()
		}
	}
	return false, true, nil
}

// runClientSide drives client-side baking: a cache-check against already
// uploaded bakes, then a per-layer bake for every cache miss, finishing with
// a single AgentSetAppearance.
func (p *Pipeline) runClientSide(ctx context.Context, opts RunOptions) error {
	worn := p.state.WornAssets()

	cached := map[bakehash.BakeLayer]uuid.UUID{}
	if !opts.ForceRebake {
		var err error
		cached, err = p.cacheCheck(ctx, worn)
		if err != nil {
			p.deps.Log.Warn("cache-check failed, proceeding to full bake", zap.Error(err))
		}
	}

	for layer := bakehash.BakeLayer(0); layer < 6; layer++ {
		if id, ok := cached[layer]; ok {
			idx := bakehash.BakedSlotIndex[layer]
			slot := p.state.TextureSlot(idx)
			slot.TextureID = id
			p.state.SetTextureSlot(idx, slot)
		}
	}

	partial := false
	for layer := bakehash.BakeLayer(0); layer < 6; layer++ {
		if _, hit := cached[layer]; hit {
			continue
		}
		if layer == bakehash.LayerSkirt && !wornAny(worn, bakehash.WearableSkirt) {
			continue // no skirt worn, nothing to bake for this layer
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.createBake(ctx, layer); err != nil {
			p.deps.Log.Warn("bake failed", zap.Stringer("layer", layer), zap.Error(err))
			partial = true
		}
	}

	if err := p.emitSetAppearance(); err != nil {
		return err
	}
	if partial {
		return wrapf(ErrAppearancePartial, "one or more bakes failed")
	}
	return nil
}

func wornAny(worn []bakehash.WornAsset, t bakehash.WearableType) bool {
	for _, w := range worn {
		if w.Type == t {
			return true
		}
	}
	return false
}

// cacheCheck sends AgentCachedTexture for every non-empty bake hash and
// waits for the response.
func (p *Pipeline) cacheCheck(ctx context.Context, worn []bakehash.WornAsset) (map[bakehash.BakeLayer]uuid.UUID, error) {
	var entries []wire.AgentCachedTextureEntry
	var queried []bakehash.BakeLayer
	for layer := bakehash.BakeLayer(0); layer < 6; layer++ {
		id, ok := bakehash.CacheQueryID(layer, worn)
		if !ok {
			continue
		}
		entries = append(entries, wire.AgentCachedTextureEntry{TextureIndex: uint8(layer), ID: id})
		queried = append(queried, layer)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	serial := p.state.NextCacheCheckSerial()
	payload := wire.EncodeAgentCachedTexture(wire.AgentCachedTexture{
		AgentID:   p.deps.AgentID,
		SessionID: p.deps.SessionID,
		SerialNum: serial,
		Entries:   entries,
	})
	if err := p.deps.Sender.Send(wire.Message{Type: wire.MessageTypeAgentCachedTexture, Reliable: true, Payload: payload}, session.ThrottleTask); err != nil {
		return nil, err
	}

	msg, err := waitForMessage(ctx, p.deps.Sender.Inbound(), wire.MessageTypeAgentCachedTextureResponse, WearableTimeout)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeAgentCachedTextureResponse(msg.Payload)
	if err != nil {
		return nil, err
	}

	out := map[bakehash.BakeLayer]uuid.UUID{}
	for _, e := range resp.Entries {
		if e.ID == uuid.Nil || e.ID == bakehash.DefaultTextureSentinel {
			continue
		}
		out[bakehash.BakeLayer(e.TextureIndex)] = e.ID
	}
	return out, nil
}

// createBake downloads this layer's input textures, invokes the baker, and
// uploads the result.
func (p *Pipeline) createBake(ctx context.Context, layer bakehash.BakeLayer) error {
	inputs, alphas, tint, err := p.gatherBakeInputs(ctx, layer)
	if err != nil {
		return err
	}

	blob, err := p.deps.Baker.Bake(int(layer), inputs, alphas, tint)
	if err != nil {
		return err
	}

	var assetID uuid.UUID
	var uploadErr error
	for attempt := 0; attempt <= UploadRetries; attempt++ {
		uctx, cancel := context.WithTimeout(ctx, UploadTimeout)
		assetID, uploadErr = p.deps.Assets.UploadBakedTexture(uctx, blob)
		cancel()
		if uploadErr == nil {
			break
		}
	}
	if uploadErr != nil {
		return wrapf(ErrAppearancePartial, "upload failed after %d retries", UploadRetries)
	}

	idx := bakehash.BakedSlotIndex[layer]
	slot := p.state.TextureSlot(idx)
	slot.TextureID = assetID
	p.state.SetTextureSlot(idx, slot)
	return nil
}

// gatherBakeInputs downloads every input for layer (the asset of each worn
// item whose type is in the layer's WBM row, with no check for a local copy)
// with bounded concurrency, limited by a semaphore to MaxConcurrentDownloads
// in flight at once.
func (p *Pipeline) gatherBakeInputs(ctx context.Context, layer bakehash.BakeLayer) ([][]byte, [][]byte, [4]float64, error) {
	worn := p.state.WornAssets()
	var textureIDs []uuid.UUID
	for _, w := range worn {
		contributes := false
		for _, t := range bakehash.WBM[layer] {
			if t == w.Type {
				contributes = true
				break
			}
		}
		if contributes {
			textureIDs = append(textureIDs, w.AssetID)
		}
	}

	sem := semaphore.NewWeighted(MaxConcurrentDownloads)
	results := make([][]byte, len(textureIDs))
	errs := make([]error, len(textureIDs))

	var wg sync.WaitGroup
	for i, id := range textureIDs {
		i, id := i, id
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			dctx, cancel := context.WithTimeout(ctx, TextureTimeout)
			defer cancel()
			bytes, _, err := p.deps.Assets.RequestImage(dctx, id)
			results[i] = bytes
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, [4]float64{}, err
		}
	}

	idx := bakehash.BakedSlotIndex[layer]
	slot := p.state.TextureSlot(idx)
	tint := [4]float64{slot.Color[0], slot.Color[1], slot.Color[2], slot.Color[3]}
	return results, nil, tint, nil
}

// emitSetAppearance sends the final AgentSetAppearance message.
func (p *Pipeline) emitSetAppearance() error {
	serial := p.state.NextSetAppearanceSerial()

	var wearableData [6]wire.AgentSetAppearanceWearable
	for layer := bakehash.BakeLayer(0); layer < 6; layer++ {
		idx := bakehash.BakedSlotIndex[layer]
		slot := p.state.TextureSlot(idx)
		wearableData[layer] = wire.AgentSetAppearanceWearable{
			BakeLayerIdx: uint8(layer),
			CacheID:      slot.TextureID,
		}
	}

	vp := map[int]float64{} // visual-parameter catalog is out of scope here
	size := agentsize.Size(vp)

	payload := wire.EncodeAgentSetAppearance(wire.AgentSetAppearance{
		AgentID:      p.deps.AgentID,
		SessionID:    p.deps.SessionID,
		SerialNum:    serial,
		Size:         [3]float32{float32(size.X), float32(size.Y), float32(size.Z)},
		WearableData: wearableData,
	})
	return p.deps.Sender.Send(wire.Message{Type: wire.MessageTypeAgentSetAppearance, Reliable: true, Payload: payload}, session.ThrottleTask)
}
