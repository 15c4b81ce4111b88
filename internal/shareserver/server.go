// Package shareserver implements the serving side of the transfer
// protocol: an OS-assigned TCP listener that answers file-list,
// file-info, and chunk requests out of a shared folder.
package shareserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/prxssh/share/internal/folder"
	"golang.org/x/sync/errgroup"
)

// Server listens on an OS-assigned TCP port and answers one connection
// per accepted client, each handled on its own goroutine.
type Server struct {
	log    *slog.Logger
	folder folder.SharedFolder

	mu       sync.Mutex
	listener *net.TCPListener
	port     atomic.Uint32

	wg sync.WaitGroup
}

func New(log *slog.Logger, shared folder.SharedFolder) *Server {
	return &Server{
		log:    log.With("component", "shareserver"),
		folder: shared,
	}
}

// Start binds the listener to port 0 and launches the accept loop. It
// returns once bound; GetAssignedPort is valid immediately after.
func (s *Server) Start(ctx context.Context) error {
	addr := &net.TCPAddr{IP: net.IPv4zero, Port: 0}
	ln, err := net.ListenTCP("tcp4", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.port.Store(uint32(ln.Addr().(*net.TCPAddr).Port))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	}()

	s.log.Info("share server started", "port", s.GetAssignedPort())
	return nil
}

// GetAssignedPort returns the OS-assigned TCP port. Valid only after
// Start has returned successfully.
func (s *Server) GetAssignedPort() uint16 {
	return uint16(s.port.Load())
}

func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln *net.TCPListener) {
	g, gctx := errgroup.WithContext(ctx)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			s.log.Error("accept failed", "error", err)
			continue
		}

		g.Go(func() error {
			h := &connHandler{log: s.log, folder: s.folder, conn: conn}
			h.serve(gctx)
			return nil
		})
	}

	g.Wait()
}
