package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable identifiers for sessions and journal
// entries: the given ids in order, then "<prefix>-0001", "<prefix>-0002", ...
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	fixed  []string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "test-id".
func NewSequentialIDs(prefix string, fixed ...string) *SequentialIDs {
	if prefix == "" {
		prefix = "test-id"
	}
	return &SequentialIDs{prefix: prefix, fixed: fixed}
}

// Generate returns the next identifier.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.n
	g.n++
	if i < len(g.fixed) {
		return g.fixed[i]
	}
	return fmt.Sprintf("%s-%04d", g.prefix, i-len(g.fixed)+1)
}
