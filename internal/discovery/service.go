// Package discovery implements the UDP broadcast peer-discovery and
// soft-state membership protocol: discovery requests, direct responses,
// heartbeats, TTL-limited forwarding with loop suppression, and
// timeout-based eviction.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prxssh/share/internal/config"
	"golang.org/x/sys/unix"
)

var errStopped = errors.New("discovery: service stopped")

// LocalPortFunc returns the TCP port the share server is currently
// listening on, so discovery can advertise it without either package
// importing the other.
type LocalPortFunc func() uint16

// Service owns the discovery UDP socket, the PeerTable, and the
// processed-message-id set, and runs the receive loop plus the
// heartbeat/cleanup tickers.
type Service struct {
	log       *slog.Logger
	localPort LocalPortFunc

	mu   sync.RWMutex
	conn *net.UDPConn

	Peers     *PeerTable
	processed *processedSet

	done chan struct{}
	wg   sync.WaitGroup
}

func NewService(log *slog.Logger, localPort LocalPortFunc) *Service {
	cfg := config.Load()
	return &Service{
		log:       log.With("component", "discovery"),
		localPort: localPort,
		Peers:     NewPeerTable(),
		processed: newProcessedSet(cfg.ProcessedMessageCap),
		done:      make(chan struct{}),
	}
}

// Start binds the discovery socket and launches the receive loop and
// the periodic heartbeat/cleanup tasks. It returns once the socket is
// bound; the background goroutines keep running until Stop.
func (s *Service) Start() error {
	conn, err := s.listen()
	if err != nil {
		return fmt.Errorf("discovery: bind: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.receiveLoop() }()
	go func() { defer s.wg.Done(); s.periodic("heartbeat", config.Load().HeartbeatInterval, s.sendHeartbeats) }()
	go func() { defer s.wg.Done(); s.periodic("cleanup", config.Load().CleanupInterval, s.cleanup) }()

	s.log.Info("discovery service started", "port", config.Load().DiscoveryPort)
	return nil
}

func (s *Service) Stop() {
	close(s.done)
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
}

// listen binds the discovery UDP socket with SO_REUSEADDR and
// SO_BROADCAST set before bind, so the port can be rebound quickly on
// restart and so writes to a broadcast address are permitted.
func (s *Service) listen() (*net.UDPConn, error) {
	cfg := config.Load()

	lc := net.ListenConfig{Control: setReuseAddrAndBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", cfg.DiscoveryPort))
	if err != nil {
		return nil, err
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("discovery: unexpected packet conn type %T", pc)
	}
	return conn, nil
}

func setReuseAddrAndBroadcast(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// periodic runs fn every interval until Stop, swallowing any panic-free
// error fn chooses to log itself — a transient failure in one tick must
// never kill the scheduler.
func (s *Service) periodic(name string, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.safeRun(name, fn)
		}
	}
}

func (s *Service) safeRun(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", "task", name, "panic", r)
		}
	}()
	fn()
}

func (s *Service) receiveLoop() {
	buf := make([]byte, 1024)
	recreated := false

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		conn.SetReadDeadline(time.Now().Add(config.Load().DiscoveryReadTimeout))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.log.Error("discovery read failed", "error", err)
			if recreated {
				s.log.Error("discovery socket unrecoverable, exiting receive loop")
				return
			}
			recreated = true
			newConn, rerr := s.listen()
			if rerr != nil {
				s.log.Error("discovery socket recreate failed", "error", rerr)
				return
			}
			s.mu.Lock()
			s.conn.Close()
			s.conn = newConn
			s.mu.Unlock()
			continue
		}

		s.handleDatagram(buf[:n], from)
	}
}

func (s *Service) handleDatagram(payload []byte, from *net.UDPAddr) {
	msg, err := decodeMessage(string(payload))
	if err != nil {
		s.log.Debug("malformed discovery message", "error", err, "from", from)
		return
	}

	switch {
	case msg.request != nil:
		s.handleRequest(*msg.request)
	case msg.response != nil:
		s.handleResponse(*msg.response)
	case msg.heartbeat != nil:
		s.handleHeartbeat(*msg.heartbeat)
	}
}

func (s *Service) isLocal(addr PeerAddress) bool {
	return addr.Port == s.localPort() && isLocalHost(addr.Host)
}

func (s *Service) handleRequest(m requestMsg) {
	if s.isLocal(m.origin) {
		return
	}
	if !s.processed.InsertIfAbsent(m.msgID) {
		return
	}

	local := PeerAddress{Host: localIPv4(), Port: s.localPort()}
	s.unicast(encodeResponse(responseMsg{msgID: m.msgID, ttl: m.ttl, responder: local}), m.origin)
	s.Peers.Put(m.origin)

	if m.ttl > 1 {
		s.broadcast(encodeRequest(requestMsg{msgID: m.msgID, ttl: m.ttl - 1, origin: m.origin}))
	}
}

func (s *Service) handleResponse(m responseMsg) {
	if s.isLocal(m.responder) {
		return
	}
	s.Peers.Put(m.responder)
}

func (s *Service) handleHeartbeat(m heartbeatMsg) {
	if s.isLocal(m.sender) {
		return
	}
	s.Peers.Put(m.sender)
}

func (s *Service) sendHeartbeats() {
	local := PeerAddress{Host: localIPv4(), Port: s.localPort()}
	msg := encodeHeartbeat(heartbeatMsg{sender: local})
	for _, peer := range s.Peers.Addresses() {
		s.unicast(msg, peer)
	}
}

func (s *Service) cleanup() {
	evicted := s.Peers.EvictOlderThan(config.Load().PeerTimeout)
	if len(evicted) > 0 {
		s.log.Debug("evicted stale peers", "count", len(evicted))
	}
}

// SendDiscoveryRequest broadcasts a fresh discovery request with the
// configured initial TTL, self-suppressing the eventual echo.
func (s *Service) SendDiscoveryRequest() error {
	cfg := config.Load()
	msgID := uuid.NewString()
	s.processed.InsertIfAbsent(msgID)

	local := PeerAddress{Host: localIPv4(), Port: s.localPort()}
	req := requestMsg{msgID: msgID, ttl: cfg.DiscoveryInitialTTL, origin: local}
	return s.broadcastErr(encodeRequest(req))
}

// RegisterPeer inserts addr directly into the PeerTable, bypassing
// discovery entirely.
func (s *Service) RegisterPeer(addr PeerAddress) {
	s.Peers.Put(addr)
}

func (s *Service) unicast(payload string, to PeerAddress) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}

	addr := &net.UDPAddr{IP: net.ParseIP(to.Host), Port: int(to.Port)}
	if _, err := conn.WriteToUDP([]byte(payload), addr); err != nil {
		s.log.Debug("discovery unicast failed", "to", to, "error", err)
	}
}

func (s *Service) broadcast(payload string) {
	if err := s.broadcastErr(payload); err != nil {
		s.log.Debug("discovery broadcast failed", "error", err)
	}
}

func (s *Service) broadcastErr(payload string) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errStopped
	}

	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: int(config.Load().DiscoveryPort)}
	_, err := conn.WriteToUDP([]byte(payload), addr)
	return err
}

// localIPv4 returns the first non-loopback IPv4 address of this host,
// falling back to the loopback address if none is found — good enough
// for advertising identity on a local broadcast domain.
func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}

	return "127.0.0.1"
}

func isLocalHost(host string) bool {
	return host == localIPv4()
}
