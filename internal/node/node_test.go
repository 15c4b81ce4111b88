package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prxssh/share/internal/discovery"
	"github.com/prxssh/share/internal/folder"
)

func mustLocalAddr(t *testing.T, port uint16) discovery.PeerAddress {
	t.Helper()
	addr, err := discovery.ParsePeerAddress(fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("ParsePeerAddress() error: %v", err)
	}
	return addr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardSink struct{}

func (discardSink) Log(string)                  {}
func (discardSink) UpdateProgress(string, string) {}

func TestNodeStartStopAssignsPort(t *testing.T) {
	dir := t.TempDir()
	n := New(testLogger(), folder.Static(dir), discardSink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer n.Stop()

	if n.GetAssignedPort() == 0 {
		t.Fatal("expected a non-zero assigned port after Start")
	}
}

func TestNodeSearchFindsOwnSharedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := New(testLogger(), folder.Static(dir), discardSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer a.Stop()

	b := New(testLogger(), folder.Static(t.TempDir()), discardSink{})
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer b.Stop()

	b.RegisterPeer(mustLocalAddr(t, a.GetAssignedPort()))

	time.Sleep(50 * time.Millisecond)
	offers := b.Search()

	found := false
	for _, o := range offers {
		if o.Filename == "readme.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected readme.txt among search offers, got %+v", offers)
	}
}
