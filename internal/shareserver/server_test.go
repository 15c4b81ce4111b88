package shareserver

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prxssh/share/internal/config"
	"github.com/prxssh/share/internal/folder"
	"github.com/prxssh/share/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startTestServer(t *testing.T, dir string) (*Server, func()) {
	t.Helper()
	srv := New(testLogger(), folder.Static(dir))
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return srv, func() {
		cancel()
		srv.Stop()
	}
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(srv.GetAssignedPort()))))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestFileList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	srv, stop := startTestServer(t, dir)
	defer stop()

	conn := dial(t, srv)
	defer conn.Close()

	if err := wire.WriteString(conn, cmdFileList); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(conn)
	tag, err := wire.ReadString(r)
	if err != nil || tag != fileListTag {
		t.Fatalf("tag = %q, err = %v", tag, err)
	}

	count, err := wire.ReadUint32(r)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestChunkRequestNotFound(t *testing.T) {
	dir := t.TempDir()
	srv, stop := startTestServer(t, dir)
	defer stop()

	conn := dial(t, srv)
	defer conn.Close()

	if err := wire.WriteString(conn, cmdChunk+" missing.txt 0"); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(conn)
	id, err := wire.ReadInt32(r)
	if err != nil {
		t.Fatal(err)
	}
	if id != notFoundSize {
		t.Fatalf("id = %d, want %d", id, notFoundSize)
	}
}

func TestChunkRequestServesData(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Load()
	content := make([]byte, cfg.ChunkSize+10)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(filepath.Join(dir, "big.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	srv, stop := startTestServer(t, dir)
	defer stop()

	conn := dial(t, srv)
	defer conn.Close()

	if err := wire.WriteString(conn, cmdChunk+" big.bin 1"); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(conn)
	id, err := wire.ReadInt32(r)
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	n, err := wire.ReadInt32(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Fatalf("chunk size = %d, want 10 (final short chunk)", n)
	}

	blob, err := wire.ReadBlob(r, int(n))
	if err != nil {
		t.Fatal(err)
	}
	want := content[cfg.ChunkSize:]
	if string(blob) != string(want) {
		t.Fatal("chunk payload mismatch")
	}

	if err := wire.WriteUint32(conn, uint32(id)); err != nil {
		t.Fatal(err)
	}
}
