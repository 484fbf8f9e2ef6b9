package session

import "sync"

// Correlator holds the session identifier assigned by the agent.
// Every outbound frame is stamped with it; before the first assignment
// there is no identifier and frames carry null.
type Correlator struct {
	mu       sync.RWMutex
	id       string
	assigned bool
}

// NewCorrelator creates a correlator without an identifier
func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Current returns the live session identifier, if any
func (c *Correlator) Current() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.assigned
}

// Assign replaces the live session identifier
func (c *Correlator) Assign(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.assigned = true
}
