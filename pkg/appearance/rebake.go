package appearance

import (
	"context"
	"time"
)

// rebakeContext carries what the delayed timer needs to fire a rebake with
// the same mode/COF-version the caller was using.
type rebakeContext struct {
	ctx              context.Context
	serverSideBaking bool
	cofVersion       int
}

// scheduleRebake (re)starts the single-shot delayed-rebake timer, coalescing
// repeated edits into one forced-rebake pass RebakeDelay after the last
// edit.
func (p *Pipeline) scheduleRebake(rc rebakeContext) {
	p.rebakeMu.Lock()
	defer p.rebakeMu.Unlock()

	if p.rebakeTimer != nil {
		p.rebakeTimer.Stop()
	}
	p.rebakeTimer = time.AfterFunc(RebakeDelay, func() {
		p.RequestSetAppearance(rc.ctx, RunOptions{ServerSideBaking: rc.serverSideBaking, ForceRebake: true, CofVersion: rc.cofVersion})
	})
}

// OnRebakeRequested handles a peer-initiated forced rebake request.
func (p *Pipeline) OnRebakeRequested(ctx context.Context, serverSideBaking bool, cofVersion int) {
	p.deps.Hub.Publish(TopicRebakeRequested, nil)
	p.RequestSetAppearance(ctx, RunOptions{ServerSideBaking: serverSideBaking, ForceRebake: true, CofVersion: cofVersion})
}
