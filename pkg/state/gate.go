package state

import "sync"

// Gate tracks the latest outstanding request per key so results of
// superseded requests can be discarded. Typical keys are entity ids when a
// server-loaded layer is fetched asynchronously.
type Gate struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// Ticket identifies one request issued through a Gate.
type Ticket struct {
	Key string
	Seq uint64
}

func NewGate() *Gate {
	return &Gate{latest: map[string]uint64{}}
}

// Begin issues a ticket for key, superseding every earlier ticket.
func (g *Gate) Begin(key string) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latest[key]++
	return Ticket{Key: key, Seq: g.latest[key]}
}

// Current reports whether t is still the latest ticket for its key.
func (g *Gate) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[t.Key] == t.Seq
}

// Cancel supersedes every outstanding ticket for key.
func (g *Gate) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.latest[key]; ok {
		g.latest[key]++
	}
}

// Apply runs fn only when t is still current. The check and fn run under the
// gate's lock so a concurrent Begin cannot interleave. It reports whether fn
// ran.
func (g *Gate) Apply(t Ticket, fn func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latest[t.Key] != t.Seq {
		return false, nil
	}
	return true, fn()
}
