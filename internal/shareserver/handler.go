package shareserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prxssh/share/internal/config"
	"github.com/prxssh/share/internal/folder"
	"github.com/prxssh/share/internal/wire"
)

const (
	cmdFileList  = "REQUEST_FILE_LIST"
	cmdFileInfo  = "REQUEST_FILE_INFO"
	cmdChunk     = "REQUEST_CHUNK"
	fileListTag  = "FILE_LIST"
	notFoundSize = -1
)

// connHandler serves exactly one accepted connection: read one command,
// dispatch, reply, close.
type connHandler struct {
	log    *slog.Logger
	folder folder.SharedFolder
	conn   net.Conn
}

func (h *connHandler) serve(ctx context.Context) {
	defer h.conn.Close()

	h.conn.SetDeadline(time.Now().Add(config.Load().SocketTimeout))
	if deadline, ok := ctx.Deadline(); ok {
		h.conn.SetDeadline(deadline)
	}

	r := bufio.NewReader(h.conn)
	cmd, err := wire.ReadString(r)
	if err != nil {
		h.log.Debug("failed to read command", "error", err, "remote", h.conn.RemoteAddr())
		return
	}

	switch {
	case cmd == cmdFileList:
		h.handleFileList()
	case strings.HasPrefix(cmd, cmdFileInfo+" "):
		h.handleFileInfo(strings.TrimPrefix(cmd, cmdFileInfo+" "))
	case strings.HasPrefix(cmd, cmdChunk+" "):
		h.handleChunk(strings.TrimPrefix(cmd, cmdChunk+" "))
	default:
		h.log.Debug("unrecognized command", "command", cmd)
	}
}

func (h *connHandler) handleFileList() {
	names, err := folder.Catalog(h.folder.Dir())
	if err != nil {
		h.log.Error("catalog failed", "error", err)
		names = nil
	}

	if err := wire.WriteString(h.conn, fileListTag); err != nil {
		return
	}
	if err := wire.WriteUint32(h.conn, uint32(len(names))); err != nil {
		return
	}
	for _, name := range names {
		if err := wire.WriteString(h.conn, name); err != nil {
			return
		}
	}
}

func (h *connHandler) handleFileInfo(name string) {
	info, err := os.Stat(filepath.Join(h.folder.Dir(), name))
	if err != nil || !info.Mode().IsRegular() {
		wire.WriteInt64(h.conn, notFoundSize)
		return
	}
	wire.WriteInt64(h.conn, info.Size())
}

// handleChunk expects "<name> <id>" as its argument tail.
func (h *connHandler) handleChunk(tail string) {
	name, idStr, ok := strings.Cut(tail, " ")
	id, err := strconv.Atoi(idStr)
	if !ok || err != nil {
		wire.WriteInt32(h.conn, notFoundSize)
		return
	}

	cfg := config.Load()
	path := filepath.Join(h.folder.Dir(), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		wire.WriteInt32(h.conn, notFoundSize)
		return
	}

	totalChunks := chunkCount(info.Size(), cfg.ChunkSize)
	if id < 0 || int64(id) >= totalChunks {
		wire.WriteInt32(h.conn, notFoundSize)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		wire.WriteInt32(h.conn, notFoundSize)
		return
	}
	defer f.Close()

	offset := int64(id) * cfg.ChunkSize
	buf := make([]byte, cfg.ChunkSize)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		wire.WriteInt32(h.conn, notFoundSize)
		return
	}

	if err := wire.WriteInt32(h.conn, int32(id)); err != nil {
		return
	}
	if err := wire.WriteInt32(h.conn, int32(n)); err != nil {
		return
	}
	if err := wire.WriteBlob(h.conn, buf[:n]); err != nil {
		return
	}

	ack, err := wire.ReadUint32(h.conn)
	if err != nil {
		h.log.Debug("failed to read chunk ack", "error", err)
		return
	}
	if ack != uint32(id) {
		h.log.Warn("chunk ack mismatch", "sent", id, "acked", ack)
	}
}

func chunkCount(size, chunkSize int64) int64 {
	if size == 0 {
		return 0
	}
	n := size / chunkSize
	if size%chunkSize != 0 {
		n++
	}
	return n
}
