// Package wire implements the length-prefixed encode/decode primitives
// shared by every TCP message in this protocol: big-endian 32- and
// 64-bit integers, u16-length-prefixed UTF-8 strings, and raw byte
// blobs. There are no delimiters and no self-describing types — callers
// know the shape of the message they are reading or writing.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	// ErrStringTooLong is returned by WriteString when the encoded
	// string would overflow the u16 length prefix.
	ErrStringTooLong = errors.New("wire: string exceeds u16 length prefix")

	// ErrNegativeBlob is returned by ReadBlob when asked to read a
	// negative byte count.
	ErrNegativeBlob = errors.New("wire: negative blob length")
)

// WriteUint32 writes v as a 4-byte big-endian integer.
func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint32 reads a 4-byte big-endian integer. A read that sees EOF
// mid-frame fails with io.ErrUnexpectedEOF via io.ReadFull.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// WriteInt32 writes v as a 4-byte big-endian signed integer, used for
// the protocol's negative sentinel values (chunk-not-found, etc).
func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

// ReadInt32 reads a 4-byte big-endian signed integer.
func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// WriteUint64 writes v as an 8-byte big-endian integer.
func WriteUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint64 reads an 8-byte big-endian integer.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// WriteInt64 writes v as an 8-byte big-endian signed integer, used for
// the protocol's negative file-length sentinel.
func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

// ReadInt64 reads an 8-byte big-endian signed integer.
func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// WriteString writes s as a u16 length prefix followed by its UTF-8
// bytes.
func WriteString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return ErrStringTooLong
	}

	if err := writeUint16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a u16-length-prefixed UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	n, err := readUint16(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBlob writes exactly len(b) raw bytes, with no length prefix —
// the caller is expected to have already communicated the length (e.g.
// via a preceding u32 size field).
func WriteBlob(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// ReadBlob reads exactly n bytes of raw payload.
func ReadBlob(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeBlob
	}
	if n == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
