package discovery

import (
	"time"

	"github.com/prxssh/share/internal/syncmap"
)

// PeerTable is a soft-state PeerAddress -> last-seen mapping. The local
// node's own address is never present (callers must filter it out
// before calling Put); entries older than the configured peer timeout
// are removed by the periodic cleanup task. Safe for concurrent use.
type PeerTable struct {
	entries *syncmap.Map[PeerAddress, time.Time]
}

func NewPeerTable() *PeerTable {
	return &PeerTable{entries: syncmap.New[PeerAddress, time.Time]()}
}

// Put records addr as seen now.
func (t *PeerTable) Put(addr PeerAddress) {
	t.entries.Put(addr, time.Now())
}

// Addresses returns a snapshot of every currently-known peer address.
func (t *PeerTable) Addresses() []PeerAddress {
	return t.entries.Keys()
}

// Len returns the number of known peers.
func (t *PeerTable) Len() int {
	return t.entries.Len()
}

// Has reports whether addr is currently in the table.
func (t *PeerTable) Has(addr PeerAddress) bool {
	_, ok := t.entries.Get(addr)
	return ok
}

// EvictOlderThan removes every entry last seen more than timeout ago,
// returning the evicted addresses.
func (t *PeerTable) EvictOlderThan(timeout time.Duration) []PeerAddress {
	cutoff := time.Now().Add(-timeout)
	return t.entries.DeleteFunc(func(_ PeerAddress, lastSeen time.Time) bool {
		return lastSeen.Before(cutoff)
	})
}
