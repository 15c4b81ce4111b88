package download

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/prxssh/share/internal/wire"
)

// peerClient issues exactly one request per connection against a
// remote share server, matching the request/response ordering of
// §4.3: dial, write the command string, read the framed reply, close.
type peerClient struct {
	dialTimeout   time.Duration
	socketTimeout time.Duration
}

func newPeerClient(dialTimeout, socketTimeout time.Duration) *peerClient {
	return &peerClient{dialTimeout: dialTimeout, socketTimeout: socketTimeout}
}

func (c *peerClient) dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp4", addr, c.dialTimeout)
	if err != nil {
		return nil, err
	}
	conn.SetDeadline(time.Now().Add(c.socketTimeout))
	return conn, nil
}

// requestFileInfo asks addr for name's length. A negative result means
// the peer does not have the file.
func (c *peerClient) requestFileInfo(addr, name string) (int64, error) {
	conn, err := c.dial(addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := wire.WriteString(conn, fmt.Sprintf("REQUEST_FILE_INFO %s", name)); err != nil {
		return 0, err
	}

	return wire.ReadInt64(bufio.NewReader(conn))
}

// chunkReply is what requestChunk returns on success.
type chunkReply struct {
	id   int32
	data []byte
}

// requestChunk asks addr for chunk id of name, then sends the
// acknowledgment if the reply was well-formed. A returned id of -1
// means the peer does not have the chunk.
func (c *peerClient) requestChunk(addr, name string, id int) (chunkReply, error) {
	conn, err := c.dial(addr)
	if err != nil {
		return chunkReply{}, err
	}
	defer conn.Close()

	if err := wire.WriteString(conn, fmt.Sprintf("REQUEST_CHUNK %s %d", name, id)); err != nil {
		return chunkReply{}, err
	}

	r := bufio.NewReader(conn)
	gotID, err := wire.ReadInt32(r)
	if err != nil {
		return chunkReply{}, err
	}
	if gotID < 0 {
		return chunkReply{id: gotID}, nil
	}

	size, err := wire.ReadInt32(r)
	if err != nil {
		return chunkReply{}, err
	}
	if size < 0 {
		return chunkReply{}, fmt.Errorf("download: malformed chunk size %d", size)
	}

	data, err := wire.ReadBlob(r, int(size))
	if err != nil {
		return chunkReply{}, err
	}

	if err := wire.WriteUint32(conn, uint32(gotID)); err != nil {
		return chunkReply{}, err
	}

	return chunkReply{id: gotID, data: data}, nil
}
