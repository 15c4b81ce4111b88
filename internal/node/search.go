package node

import (
	"bufio"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/prxssh/share/internal/config"
	"github.com/prxssh/share/internal/discovery"
	"github.com/prxssh/share/internal/wire"
	"golang.org/x/sync/errgroup"
)

// FileOffer is one peer's advertised copy of a file.
type FileOffer struct {
	Peer     discovery.PeerAddress
	Filename string
}

// search queries every known peer's file list concurrently through a
// bounded worker pool, with a short connect timeout and a short read
// timeout per peer — the non-blocking search variant named in the
// design notes.
func search(log *slog.Logger, peers []discovery.PeerAddress) []FileOffer {
	cfg := config.Load()

	poolSize := cfg.SearchPoolSize
	if poolSize > len(peers) {
		poolSize = len(peers)
	}
	if poolSize == 0 {
		return nil
	}

	work := make(chan discovery.PeerAddress)
	results := make(chan []FileOffer)

	g := new(errgroup.Group)
	for n := 0; n < poolSize; n++ {
		g.Go(func() error {
			for peer := range work {
				results <- listFiles(log, peer, cfg.SearchConnectTimeout, cfg.SearchReadTimeout)
			}
			return nil
		})
	}

	go func() {
		defer close(work)
		for _, p := range peers {
			work <- p
		}
	}()

	go func() {
		g.Wait()
		close(results)
	}()

	var offers []FileOffer
	for r := range results {
		offers = append(offers, r...)
	}

	sort.Slice(offers, func(i, k int) bool {
		if offers[i].Filename != offers[k].Filename {
			return offers[i].Filename < offers[k].Filename
		}
		return offers[i].Peer.String() < offers[k].Peer.String()
	})

	return offers
}

func listFiles(log *slog.Logger, peer discovery.PeerAddress, connectTimeout, readTimeout time.Duration) []FileOffer {
	conn, err := net.DialTimeout("tcp4", peer.String(), connectTimeout)
	if err != nil {
		log.Debug("search: dial failed", "peer", peer, "error", err)
		return nil
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(readTimeout))

	if err := wire.WriteString(conn, "REQUEST_FILE_LIST"); err != nil {
		return nil
	}

	r := bufio.NewReader(conn)
	tag, err := wire.ReadString(r)
	if err != nil || tag != "FILE_LIST" {
		return nil
	}

	count, err := wire.ReadUint32(r)
	if err != nil {
		return nil
	}

	offers := make([]FileOffer, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := wire.ReadString(r)
		if err != nil {
			break
		}
		offers = append(offers, FileOffer{Peer: peer, Filename: name})
	}

	return offers
}
