// Package config holds process-wide, atomically-swappable policy
// settings for discovery, transfer, and the download engine.
package config

import (
	"sync/atomic"
	"time"
)

// Config carries every tunable named in the system design. Treat values
// obtained from Load as read-only; mutate only through Update or Swap.
type Config struct {
	// ========== Discovery ==========

	// DiscoveryPort is the well-known UDP port nodes broadcast and
	// listen on.
	DiscoveryPort uint16

	// DiscoveryInitialTTL bounds how many times a discovery request may
	// be re-broadcast by intermediate nodes.
	DiscoveryInitialTTL int

	// DiscoveryReadTimeout bounds how long the UDP receive loop blocks
	// on a single read before checking for shutdown.
	DiscoveryReadTimeout time.Duration

	// HeartbeatInterval is how often the discovery service unicasts a
	// heartbeat to every known peer.
	HeartbeatInterval time.Duration

	// CleanupInterval is how often the discovery service evicts stale
	// peer-table entries.
	CleanupInterval time.Duration

	// PeerTimeout is the maximum age of a peer-table entry before
	// cleanup evicts it.
	PeerTimeout time.Duration

	// ProcessedMessageCap bounds the size of the discovery
	// loop-suppression set; insertions beyond the cap evict an
	// arbitrary existing entry.
	ProcessedMessageCap int

	// ========== Transfer ==========

	// ChunkSize is the fixed size, in bytes, of a transfer chunk. Only
	// the final chunk of a file may be shorter.
	ChunkSize int64

	// DialTimeout bounds how long a download worker waits to establish
	// a TCP connection to a peer.
	DialTimeout time.Duration

	// SocketTimeout bounds how long a download worker waits on a single
	// read or write once connected.
	SocketTimeout time.Duration

	// ========== Download engine ==========

	// WorkerPoolSize is the number of concurrent chunk-fetch workers
	// per download job.
	WorkerPoolSize int

	// MaxRetryAttempts is the number of peer attempts a worker makes
	// for a single chunk before giving up on it.
	MaxRetryAttempts int

	// ========== Search ==========

	// SearchPoolSize bounds the number of concurrent peer queries during
	// a non-blocking search.
	SearchPoolSize int

	// SearchConnectTimeout bounds how long a search-time dial may take.
	SearchConnectTimeout time.Duration

	// SearchReadTimeout bounds how long a search-time read may take.
	SearchReadTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		DiscoveryPort:        8888,
		DiscoveryInitialTTL:  3,
		DiscoveryReadTimeout: 3 * time.Second,
		HeartbeatInterval:    60 * time.Second,
		CleanupInterval:      60 * time.Second,
		PeerTimeout:          5 * time.Minute,
		ProcessedMessageCap:  4096,

		ChunkSize:     256_000,
		DialTimeout:   10 * time.Second,
		SocketTimeout: 10 * time.Second,

		WorkerPoolSize:   4,
		MaxRetryAttempts: 3,

		SearchPoolSize:       5,
		SearchConnectTimeout: 1500 * time.Millisecond,
		SearchReadTimeout:    3 * time.Second,
	}
}

var cfg atomic.Value

func init() {
	c := defaultConfig()
	cfg.Store(&c)
}

// Load returns the current config. Treat the returned value as
// read-only.
func Load() *Config {
	return cfg.Load().(*Config)
}

// Update applies mut to a copy of the current config and atomically
// swaps it in, returning the new value.
func Update(mut func(*Config)) *Config {
	curr := Load()
	next := *curr
	mut(&next)
	cfg.Store(&next)
	return &next
}

// Swap atomically replaces the global config, returning the new value.
func Swap(next Config) *Config {
	cfg.Store(&next)
	return &next
}
