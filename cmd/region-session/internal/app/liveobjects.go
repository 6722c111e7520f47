package app

// alwaysPresentQuery satisfies appearance.LiveObjectQuery for a
// standalone CLI run that has no real live-object set to query; the
// region-session library's embedder (the actual viewer) is expected to
// supply a LiveObjectQuery backed by its own scene graph.
type alwaysPresentQuery struct{}

func (alwaysPresentQuery) OwnAvatarPresent() bool { return true }
