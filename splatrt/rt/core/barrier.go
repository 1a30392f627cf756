package core

import "fmt"

type LoadState uint8

const (
	// LoadPending waits for at least one slot.
	LoadPending LoadState = iota
	// LoadReady means every slot has seen its completion event and nothing was spawned yet.
	LoadReady
	// LoadSpawned is terminal: downstream construction already ran.
	LoadSpawned
	// LoadFailed is terminal: an upstream load reported an explicit failure.
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "Pending"
	case LoadReady:
		return "Ready"
	case LoadSpawned:
		return "Spawned"
	case LoadFailed:
		return "Failed"
	}
	return fmt.Sprintf("LoadState(%d)", uint8(s))
}

// LoadSlot is one texture the session waits for. Several slots may expect the
// same handle when two roles share one physical texture.
type LoadSlot struct {
	Role     string
	Expected TextureHandle
	Loaded   bool
}

// LoadBarrier gates one-shot construction on a set of texture loads that complete
// in any order, possibly more than once. It is not safe for concurrent use.
type LoadBarrier struct {
	slots  []LoadSlot
	state  LoadState
	failed TextureHandle
}

func NewLoadBarrier(slots ...LoadSlot) *LoadBarrier {
	b := &LoadBarrier{slots: make([]LoadSlot, len(slots))}
	copy(b.slots, slots)
	b.advance()
	return b
}

// Slot builds a not-yet-loaded slot.
func Slot(role string, expected TextureHandle) LoadSlot {
	return LoadSlot{Role: role, Expected: expected}
}

// Observe applies one completion event to every slot and returns how many slots
// expect the handle. It never stops at the first match, and re-delivering a handle
// changes nothing.
func (b *LoadBarrier) Observe(loaded TextureHandle) int {
	matched := 0
	for i := range b.slots {
		if b.slots[i].Expected == loaded {
			b.slots[i].Loaded = true
			matched++
		}
	}
	b.advance()
	return matched
}

// ObserveAll folds a batch of completion events and returns the total match count.
func (b *LoadBarrier) ObserveAll(batch []TextureHandle) int {
	matched := 0
	for _, h := range batch {
		matched += b.Observe(h)
	}
	return matched
}

// AllLoaded reports whether every slot has been marked.
func (b *LoadBarrier) AllLoaded() bool {
	for _, s := range b.slots {
		if !s.Loaded {
			return false
		}
	}
	return true
}

func (b *LoadBarrier) State() LoadState {
	return b.state
}

// Ready is true only between the last completion and the spawn.
func (b *LoadBarrier) Ready() bool {
	return b.state == LoadReady
}

// MarkSpawned moves Ready to Spawned and returns true exactly once.
// In any other state it does nothing.
func (b *LoadBarrier) MarkSpawned() bool {
	if b.state != LoadReady {
		return false
	}
	b.state = LoadSpawned
	return true
}

// Fail records an explicit upstream failure for a handle that is still awaited.
// Returns true if the session moved to LoadFailed.
func (b *LoadBarrier) Fail(h TextureHandle) bool {
	if b.state != LoadPending {
		return false
	}
	for _, s := range b.slots {
		if s.Expected == h && !s.Loaded {
			b.state = LoadFailed
			b.failed = h
			return true
		}
	}
	return false
}

// FailedHandle returns the handle that failed the session, if any.
func (b *LoadBarrier) FailedHandle() (TextureHandle, bool) {
	return b.failed, b.state == LoadFailed
}

// Pending lists the roles still waiting for their texture.
func (b *LoadBarrier) Pending() []string {
	var roles []string
	for _, s := range b.slots {
		if !s.Loaded {
			roles = append(roles, s.Role)
		}
	}
	return roles
}

func (b *LoadBarrier) Slots() []LoadSlot {
	res := make([]LoadSlot, len(b.slots))
	copy(res, b.slots)
	return res
}

// Handle returns the texture expected by the first slot with the given role.
func (b *LoadBarrier) Handle(role string) (TextureHandle, bool) {
	for _, s := range b.slots {
		if s.Role == role {
			return s.Expected, true
		}
	}
	return TextureHandle{}, false
}

func (b *LoadBarrier) advance() {
	if b.state == LoadPending && b.AllLoaded() {
		b.state = LoadReady
	}
}
