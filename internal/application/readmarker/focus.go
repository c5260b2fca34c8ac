package readmarker

import "sync"

// FocusGate tracks whether the host window is foregrounded and holds at most one
// thread whose marker update waits for the next focus.
type FocusGate struct {
	mu      sync.Mutex
	active  bool
	pending string
}

// NewFocusGate returns an inactive gate.
func NewFocusGate() *FocusGate { return &FocusGate{} }

func (g *FocusGate) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Focus activates the gate and hands back the pending thread, clearing it.
func (g *FocusGate) Focus() (threadID string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
	threadID, g.pending = g.pending, ""
	return threadID, threadID != ""
}

func (g *FocusGate) Blur() {
	g.mu.Lock()
	g.active = false
	g.mu.Unlock()
}

// Defer parks threadID until the next focus, replacing any earlier pending thread.
func (g *FocusGate) Defer(threadID string) {
	g.mu.Lock()
	g.pending = threadID
	g.mu.Unlock()
}

func (g *FocusGate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != ""
}
