package appearance

import (
	"github.com/google/uuid"

	"github.com/metaverse-go/region-session/pkg/bakehash"
)

// EditResult reports the outcome of an outfit-edit operation so the caller
// can decide whether to emit AgentIsNowWearing and schedule a rebake.
type EditResult struct {
	Applied bool
	Reason  string
}

// Add inserts w into Wearables: if replace is requested, or w is a body
// part, every existing entry of w's wearable type is removed first.
func (s *State) Add(w WearableData, replace bool) EditResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if replace || bakehash.IsBodyPart(w.WearableType) {
		s.wearables[w.WearableType] = nil
	}
	s.wearables[w.WearableType] = append(s.wearables[w.WearableType], w)
	return EditResult{Applied: true}
}

// Remove deletes the wearable with itemID. Body parts cannot be removed;
// attachments, if itemID matches one, are detached as part of the same
// edit.
func (s *State) Remove(itemID uuid.UUID) EditResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t, items := range s.wearables {
		for i, w := range items {
			if w.ItemID != itemID {
				continue
			}
			if bakehash.IsBodyPart(t) {
				return EditResult{Applied: false, Reason: "body parts cannot be removed"}
			}
			s.wearables[t] = append(items[:i], items[i+1:]...)
			delete(s.attachments, itemID)
			return EditResult{Applied: true}
		}
	}
	delete(s.attachments, itemID)
	return EditResult{Applied: true}
}

// Replace swaps the entire outfit for newSet. Body parts are always
// retained from the previous set if newSet omits them — a replace can never
// leave the avatar without Shape/Skin/Eyes/Hair. If that retention still
// leaves a body part missing (the previous set also lacked it, which should
// never happen once an avatar has ever had a full outfit), the replace
// fails and the previous set is preserved untouched.
func (s *State) Replace(newSet map[bakehash.WearableType][]WearableData, attachments map[uuid.UUID]int, safe bool) EditResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[bakehash.WearableType][]WearableData, len(newSet))
	for t, items := range newSet {
		cp := make([]WearableData, len(items))
		copy(cp, items)
		merged[t] = cp
	}
	for _, bp := range bakehash.BodyParts {
		if len(merged[bp]) == 0 {
			if prev := s.wearables[bp]; len(prev) > 0 {
				merged[bp] = prev
			}
		}
	}
	for _, bp := range bakehash.BodyParts {
		if len(merged[bp]) == 0 {
			return EditResult{Applied: false, Reason: "replace would leave a required body part missing"}
		}
	}

	_ = safe // safe does not change what Replace does; current wearables are not re-read before replacement
	s.wearables = merged
	s.attachments = attachments
	return EditResult{Applied: true}
}
