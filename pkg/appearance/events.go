package appearance

import "github.com/metaverse-go/region-session/pkg/events"

// Event topics published on the appearance Hub.
const (
	TopicAppearanceSet events.Topic = iota + 1
	TopicAvatarAppearance
	TopicRebakeRequested
)

// AppearanceSetEvent is published when a RequestSetAppearance pipeline run
// completes, successfully or not.
type AppearanceSetEvent struct {
	Success bool
	Partial bool
	Err     error
}

// AvatarAppearanceEvent is published when server-side baking (mode A)
// completes and applies a new bake.
type AvatarAppearanceEvent struct {
	CofVersion int
}
