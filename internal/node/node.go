// Package node wires the discovery service, the share server, and the
// download engine into one running peer. It replaces what used to be a
// torrent-client-shaped core with the file-sharing node's own
// lifecycle: start serving, discover peers, search, download.
package node

import (
	"context"
	"log/slog"

	"github.com/prxssh/share/internal/discovery"
	"github.com/prxssh/share/internal/download"
	"github.com/prxssh/share/internal/folder"
	"github.com/prxssh/share/internal/shareserver"
)

// Node is a single running peer: it serves its shared folder over TCP,
// participates in UDP discovery, and can search for and download files
// from peers it knows about.
type Node struct {
	log    *slog.Logger
	folder folder.SharedFolder
	sink   folder.ProgressSink

	server    *shareserver.Server
	discovery *discovery.Service
}

func New(log *slog.Logger, shared folder.SharedFolder, sink folder.ProgressSink) *Node {
	n := &Node{
		log:    log.With("component", "node"),
		folder: shared,
		sink:   sink,
	}
	n.server = shareserver.New(log, shared)
	n.discovery = discovery.NewService(log, n.server.GetAssignedPort)
	return n
}

// Start launches the share server and the discovery service, then
// issues one active discovery request to populate the peer table.
func (n *Node) Start(ctx context.Context) error {
	if err := n.server.Start(ctx); err != nil {
		return err
	}
	if err := n.discovery.Start(); err != nil {
		n.server.Stop()
		return err
	}

	if err := n.discovery.SendDiscoveryRequest(); err != nil {
		n.log.Warn("initial discovery request failed", "error", err)
	}

	return nil
}

func (n *Node) Stop() {
	n.discovery.Stop()
	n.server.Stop()
}

// Peers returns a snapshot of every peer currently known to discovery.
func (n *Node) Peers() []discovery.PeerAddress {
	return n.discovery.Peers.Addresses()
}

// RegisterPeer adds addr directly to the peer table, bypassing
// broadcast discovery.
func (n *Node) RegisterPeer(addr discovery.PeerAddress) {
	n.discovery.RegisterPeer(addr)
}

// Search queries every known peer's file list and returns every
// (peer, filename) offer found.
func (n *Node) Search() []FileOffer {
	return search(n.log, n.Peers())
}

// Download resolves candidate peers for filename from offers (typically
// the caller's most recent Search results) and runs a download job
// against them, writing into destDir.
func (n *Node) Download(filename, destDir string, offers []FileOffer) download.Result {
	var candidates []string
	seen := make(map[string]bool)
	for _, o := range offers {
		if o.Filename != filename {
			continue
		}
		addr := o.Peer.String()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		candidates = append(candidates, addr)
	}

	job := download.NewJob(n.log, n.sink, filename, destDir, candidates)
	return job.Run()
}

// GetAssignedPort returns the TCP port the share server is listening
// on.
func (n *Node) GetAssignedPort() uint16 {
	return n.server.GetAssignedPort()
}
