package appearance

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/bakehash"
	"github.com/metaverse-go/region-session/pkg/session"
	"github.com/metaverse-go/region-session/pkg/wire"
)

// rebakeOpts carries the mode/COF-version an edit's resulting rebake
// should use, set by the caller (mirrors RunOptions' mode selection).
type rebakeOpts struct {
	ServerSideBaking bool
	CofVersion       int
}

// AddWearable applies State.Add, then emits AgentIsNowWearing and schedules
// a delayed rebake.
func (p *Pipeline) AddWearable(ctx context.Context, w WearableData, replace bool, ro rebakeOpts) EditResult {
	res := p.state.Add(w, replace)
	if !res.Applied {
		return res
	}
	p.emitIsNowWearingAndScheduleRebake(ctx, ro)
	return res
}

// RemoveWearable applies State.Remove, then emits AgentIsNowWearing and
// schedules a delayed rebake, unless the removal was rejected (body part).
func (p *Pipeline) RemoveWearable(ctx context.Context, itemID uuid.UUID, ro rebakeOpts) EditResult {
	res := p.state.Remove(itemID)
	if !res.Applied {
		return res
	}
	p.emitIsNowWearingAndScheduleRebake(ctx, ro)
	return res
}

// ReplaceOutfit applies State.Replace, then attaches new attachments, sends
// AgentIsNowWearing, and schedules a delayed rebake. The set-appearance
// serial advances only when safe is false (see DESIGN.md). Safe mode does
// not re-read the current wearables before replacing them.
func (p *Pipeline) ReplaceOutfit(ctx context.Context, newSet map[bakehash.WearableType][]WearableData, attachments map[uuid.UUID]int, safe bool, ro rebakeOpts) EditResult {
	res := p.state.Replace(newSet, attachments, safe)
	if !res.Applied {
		return res
	}
	if !safe {
		p.state.NextSetAppearanceSerial()
	}
	p.emitIsNowWearingAndScheduleRebake(ctx, ro)
	return res
}

func (p *Pipeline) emitIsNowWearingAndScheduleRebake(ctx context.Context, ro rebakeOpts) {
	if err := p.emitIsNowWearing(); err != nil {
		p.deps.Log.Warn("failed to send AgentIsNowWearing", zap.Error(err))
	}
	p.scheduleRebake(rebakeContext{ctx: ctx, serverSideBaking: ro.ServerSideBaking, cofVersion: ro.CofVersion})
}

// emitIsNowWearing snapshots the 16 primary wearable slots (first item ID
// per type, or zero) and sends AgentIsNowWearing.
func (p *Pipeline) emitIsNowWearing() error {
	wearables := p.state.Wearables()

	var entries [16]wire.AgentIsNowWearingEntry
	for t := bakehash.WearableType(0); int(t) < 16; t++ {
		entries[t].WearableType = uint8(t)
		if items := wearables[t]; len(items) > 0 {
			entries[t].ItemID = items[0].ItemID
		}
	}

	payload := wire.EncodeAgentIsNowWearing(wire.AgentIsNowWearing{
		AgentID:   p.deps.AgentID,
		SessionID: p.deps.SessionID,
		Entries:   entries,
	})
	return p.deps.Sender.Send(wire.Message{Type: wire.MessageTypeAgentIsNowWearing, Reliable: true, Payload: payload}, session.ThrottleTask)
}
