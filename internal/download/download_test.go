package download

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/prxssh/share/internal/config"
	"github.com/prxssh/share/internal/folder"
	"github.com/prxssh/share/internal/shareserver"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type capturingSink struct {
	mu       sync.Mutex
	messages []string
}

func (c *capturingSink) Log(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *capturingSink) UpdateProgress(filename, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, filename+":"+status)
}

func startServer(t *testing.T, dir string) string {
	t.Helper()
	srv := shareserver.New(testLogger(), folder.Static(dir))
	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("server Start() error: %v", err)
	}
	t.Cleanup(srv.Stop)
	return "127.0.0.1:" + strconv.Itoa(int(srv.GetAssignedPort()))
}

func TestDownloadSmallFile(t *testing.T) {
	shareDir := t.TempDir()
	destDir := t.TempDir()
	want := []byte("hello, peer-to-peer world")
	if err := os.WriteFile(filepath.Join(shareDir, "greeting.txt"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	addr := startServer(t, shareDir)
	sink := &capturingSink{}
	job := NewJob(testLogger(), sink, "greeting.txt", destDir, []string{addr})

	result := job.Run()
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v, want Completed", result.Status)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "greeting.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("downloaded content = %q, want %q", got, want)
	}
}

func TestDownloadMultiChunkFile(t *testing.T) {
	shareDir := t.TempDir()
	destDir := t.TempDir()

	cfg := config.Load()
	want := make([]byte, cfg.ChunkSize*3+1234)
	for i := range want {
		want[i] = byte(i % 256)
	}
	if err := os.WriteFile(filepath.Join(shareDir, "blob.bin"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	addr := startServer(t, shareDir)
	sink := &capturingSink{}
	job := NewJob(testLogger(), sink, "blob.bin", destDir, []string{addr})

	result := job.Run()
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v, want Completed", result.Status)
	}
	if result.ChunksMissing != 0 {
		t.Fatalf("ChunksMissing = %d, want 0", result.ChunksMissing)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "blob.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestDownloadZeroByteFile(t *testing.T) {
	shareDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(shareDir, "empty.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	addr := startServer(t, shareDir)
	sink := &capturingSink{}
	job := NewJob(testLogger(), sink, "empty.txt", destDir, []string{addr})

	result := job.Run()
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v, want Completed", result.Status)
	}
	if result.Length != 0 {
		t.Fatalf("Length = %d, want 0", result.Length)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "empty.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("downloaded content length = %d, want 0", len(got))
	}
}

func TestDownloadFileNotFound(t *testing.T) {
	shareDir := t.TempDir()
	destDir := t.TempDir()

	addr := startServer(t, shareDir)
	sink := &capturingSink{}
	job := NewJob(testLogger(), sink, "nope.txt", destDir, []string{addr})

	result := job.Run()
	if result.Status != StatusFileNotFound {
		t.Fatalf("Status = %v, want FileNotFound", result.Status)
	}
}

func TestFailureLedgerBlacklist(t *testing.T) {
	ledger := NewFailureLedger(2)

	if ledger.IsBlacklisted("peer-a") {
		t.Fatal("fresh peer should not be blacklisted")
	}

	ledger.RecordFailure("peer-a")
	if ledger.IsBlacklisted("peer-a") {
		t.Fatal("peer should not be blacklisted after one failure with cap=2")
	}

	ledger.RecordFailure("peer-a")
	if !ledger.IsBlacklisted("peer-a") {
		t.Fatal("peer should be blacklisted after reaching cap")
	}

	ledger.ResetSuccess("peer-a")
	if ledger.IsBlacklisted("peer-a") {
		t.Fatal("ResetSuccess should clear the blacklist")
	}
}
