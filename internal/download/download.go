// Package download implements the multi-source parallel download
// engine: size agreement across candidate peers, local file
// preallocation, a small-file fast path, and a bounded worker pool that
// fetches chunks with per-job retry and peer blacklisting.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/prxssh/share/internal/bitset"
	"github.com/prxssh/share/internal/config"
	"github.com/prxssh/share/internal/folder"
	"github.com/prxssh/share/internal/retry"
	"golang.org/x/sync/errgroup"
)

// Status is the terminal outcome of a download job.
type Status int

const (
	StatusCompleted Status = iota
	StatusIncomplete
	StatusError
	StatusFileNotFound
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusIncomplete:
		return "Incomplete"
	case StatusError:
		return "Error"
	case StatusFileNotFound:
		return "FileNotFound"
	default:
		return "Unknown"
	}
}

// Result is returned once a job reaches a terminal status.
type Result struct {
	Name           string
	Status         Status
	Length         int64
	ChunksTotal    int64
	ChunksMissing  int64
	DestinationDir string
}

// Job drives a single file's download against a set of candidate
// peers. A Job is single-use.
type Job struct {
	log    *slog.Logger
	sink   folder.ProgressSink
	client *peerClient

	name       string
	destDir    string
	candidates []string
}

func NewJob(log *slog.Logger, sink folder.ProgressSink, name, destDir string, candidates []string) *Job {
	cfg := config.Load()
	return &Job{
		log:        log.With("component", "download", "file", name),
		sink:       sink,
		client:     newPeerClient(cfg.DialTimeout, cfg.SocketTimeout),
		name:       name,
		destDir:    destDir,
		candidates: candidates,
	}
}

// Run executes all three phases and returns the terminal result.
func (j *Job) Run() Result {
	length, validated, ok := j.agreeOnSize()
	if !ok {
		j.sink.Log(fmt.Sprintf("download %s: no peer agreed on a file size", j.name))
		j.sink.UpdateProgress(j.name, StatusFileNotFound.String())
		return Result{Name: j.name, Status: StatusFileNotFound, DestinationDir: j.destDir}
	}

	path := filepath.Join(j.destDir, j.name)
	f, err := preallocate(path, length)
	if err != nil {
		j.log.Error("preallocate failed", "error", err)
		j.sink.UpdateProgress(j.name, StatusError.String())
		return Result{Name: j.name, Status: StatusError, Length: length, DestinationDir: j.destDir}
	}
	defer f.Close()

	// A zero-length file has nothing to transfer: the preallocated,
	// truncated-to-zero file is already the complete result.
	if length == 0 {
		j.sink.UpdateProgress(j.name, "100%")
		j.sink.UpdateProgress(j.name, StatusCompleted.String())
		return Result{Name: j.name, Status: StatusCompleted, DestinationDir: j.destDir}
	}

	cfg := config.Load()
	chunkCount := chunkCountFor(length, cfg.ChunkSize)

	var writeMu sync.Mutex

	if chunkCount == 1 && length < cfg.ChunkSize {
		missing := j.downloadSmallFile(f, &writeMu, validated, length)
		status := StatusCompleted
		if missing {
			status = StatusIncomplete
		}
		j.sink.UpdateProgress(j.name, status.String())
		return Result{
			Name: j.name, Status: status, Length: length,
			ChunksTotal: 1, ChunksMissing: boolToInt64(missing), DestinationDir: j.destDir,
		}
	}

	missingCount := j.downloadParallel(f, &writeMu, validated, chunkCount)
	status := StatusCompleted
	if missingCount > 0 {
		status = StatusIncomplete
	}
	j.sink.UpdateProgress(j.name, status.String())

	return Result{
		Name: j.name, Status: status, Length: length,
		ChunksTotal: chunkCount, ChunksMissing: missingCount, DestinationDir: j.destDir,
	}
}

// agreeOnSize implements Phase 1: find the first declared length
// reported by any candidate (zero is a valid length, distinct from the
// peer's "not found" sentinel of -1), then keep only candidates that
// agree with it. ok is false only when no candidate has the file at
// all.
func (j *Job) agreeOnSize() (length int64, validated []string, ok bool) {
	var declared int64
	found := false
	for _, addr := range j.candidates {
		size, err := j.client.requestFileInfo(addr, j.name)
		if err != nil || size < 0 {
			continue
		}
		declared = size
		found = true
		break
	}
	if !found {
		return 0, nil, false
	}

	validated = make([]string, 0, len(j.candidates))
	for _, addr := range j.candidates {
		size, err := j.client.requestFileInfo(addr, j.name)
		if err != nil || size != declared {
			continue
		}
		validated = append(validated, addr)
	}

	return declared, validated, true
}

func preallocate(path string, length int64) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(length); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// downloadSmallFile implements Phase 3a: try candidates in order until
// one serves chunk 0 successfully.
func (j *Job) downloadSmallFile(f *os.File, writeMu *sync.Mutex, peers []string, length int64) (missing bool) {
	for _, addr := range peers {
		reply, err := j.client.requestChunk(addr, j.name, 0)
		if err != nil || reply.id < 0 {
			continue
		}

		writeMu.Lock()
		_, werr := f.WriteAt(reply.data, 0)
		writeMu.Unlock()
		if werr != nil {
			j.log.Error("write failed", "error", werr)
			continue
		}

		j.sink.UpdateProgress(j.name, "100%")
		return false
	}

	j.sink.Log(fmt.Sprintf("download %s: no peer served the only chunk", j.name))
	return true
}

// downloadParallel implements Phase 3b and returns the number of
// chunks still missing once every worker has finished.
func (j *Job) downloadParallel(f *os.File, writeMu *sync.Mutex, peers []string, chunkCount int64) int64 {
	cfg := config.Load()

	chunkIDs := make([]int64, chunkCount)
	for i := range chunkIDs {
		chunkIDs[i] = int64(i)
	}
	rand.Shuffle(len(chunkIDs), func(i, k int) { chunkIDs[i], chunkIDs[k] = chunkIDs[k], chunkIDs[i] })

	completed := bitset.New(int(chunkCount))
	var completedMu sync.Mutex
	var completedCount int64

	work := make(chan int64)
	go func() {
		defer close(work)
		for _, id := range chunkIDs {
			work <- id
		}
	}()

	// Shared across every worker so a peer that fails repeatedly is
	// blacklisted job-wide after MaxRetryAttempts, not per worker.
	ledger := NewFailureLedger(cfg.MaxRetryAttempts)

	g := new(errgroup.Group)
	for n := 0; n < cfg.WorkerPoolSize; n++ {
		g.Go(func() error {
			for id := range work {
				if j.fetchChunk(f, writeMu, peers, id, ledger, cfg.MaxRetryAttempts) {
					completedMu.Lock()
					completed.Set(int(id))
					completedCount++
					pct := completedCount * 100 / chunkCount
					completedMu.Unlock()
					j.sink.UpdateProgress(j.name, fmt.Sprintf("%d%%", pct))
				}
			}
			return nil
		})
	}
	g.Wait()

	return chunkCount - int64(completed.Count())
}

// fetchChunk attempts to fetch and write a single chunk, rotating
// through a chunk-local shuffled view of peers, up to maxAttempts times.
// Retry policy is linear with no delay between attempts: the design
// notes forbid artificial waits in the download path, and the point of
// retrying here is to rotate to the next peer, not to wait out the
// current one.
func (j *Job) fetchChunk(f *os.File, writeMu *sync.Mutex, peers []string, id int64, ledger *FailureLedger, maxAttempts int) bool {
	if len(peers) == 0 {
		return false
	}

	shuffled := make([]string, len(peers))
	copy(shuffled, peers)
	rand.Shuffle(len(shuffled), func(i, k int) { shuffled[i], shuffled[k] = shuffled[k], shuffled[i] })

	cfg := config.Load()
	attempt := 0

	err := retry.Do(context.Background(), func(context.Context) error {
		addr := shuffled[attempt%len(shuffled)]
		attempt++

		if ledger.IsBlacklisted(addr) {
			return fmt.Errorf("peer %s blacklisted", addr)
		}

		reply, err := j.client.requestChunk(addr, j.name, int(id))
		if err != nil {
			ledger.RecordFailure(addr)
			return err
		}
		if reply.id < 0 {
			ledger.RecordFailure(addr)
			return fmt.Errorf("peer %s does not have chunk %d", addr, id)
		}

		offset := id * cfg.ChunkSize
		writeMu.Lock()
		_, werr := f.WriteAt(reply.data, offset)
		writeMu.Unlock()
		if werr != nil {
			ledger.RecordFailure(addr)
			return werr
		}

		ledger.ResetSuccess(addr)
		return nil
	}, retry.WithLinearBackoff(maxAttempts, 0)...)

	return err == nil
}

func chunkCountFor(length, chunkSize int64) int64 {
	if length == 0 {
		return 0
	}
	n := length / chunkSize
	if length%chunkSize != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
