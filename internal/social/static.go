package social

import (
	"context"
	"log"
	"sync"
)

// StaticDirectory is an in-process identity directory for local/dev use.
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{profiles: make(map[string]Profile)}
}

func (d *StaticDirectory) Add(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.UserID] = p
}

func (d *StaticDirectory) Lookup(_ context.Context, userID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.profiles[userID]; ok {
		return p, nil
	}
	// Unknown users still render; display name falls back to the ID.
	return Profile{UserID: userID, DisplayName: userID}, nil
}

// StaticGraph is a symmetric in-memory connection graph.
type StaticGraph struct {
	mu    sync.RWMutex
	edges map[[2]string]bool
}

func NewStaticGraph() *StaticGraph {
	return &StaticGraph{edges: make(map[[2]string]bool)}
}

func edgeKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (g *StaticGraph) Connect(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[edgeKey(a, b)] = true
}

func (g *StaticGraph) Connected(_ context.Context, a, b string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[edgeKey(a, b)], nil
}

// StaticBlocklist is an in-memory blocklist keyed by the blocked user.
type StaticBlocklist struct {
	mu       sync.RWMutex
	blockers map[string][]string
}

func NewStaticBlocklist() *StaticBlocklist {
	return &StaticBlocklist{blockers: make(map[string][]string)}
}

// Block records that blocker has blocked target.
func (b *StaticBlocklist) Block(blocker, target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.blockers[target] {
		if u == blocker {
			return
		}
	}
	b.blockers[target] = append(b.blockers[target], blocker)
}

func (b *StaticBlocklist) BlockersOf(_ context.Context, userID string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.blockers[userID]...), nil
}

// LogAuditSink writes audit events to the process log.
type LogAuditSink struct{}

func (LogAuditSink) Emit(_ context.Context, event AuditEvent) error {
	log.Printf("audit: %s session=%s actor=%s %s", event.Type, event.SessionID, event.ActorID, event.Detail)
	return nil
}
