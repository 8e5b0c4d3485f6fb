// Package id3 reads the title, artist and album text frames from an ID3v2
// tag, repairing mis-declared encodings along the way, and writes a fresh
// ID3v2.3 UTF-16 tag in front of the untouched audio payload.
package id3

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ankit-chaubey/id3-surgery/core/cursor"
)

const (
	headerSize      = 10
	frameHeaderSize = 10
	footerSize      = 10
)

// Header flag bits.
const (
	flagExtendedHeader = 0x40
	flagFooter         = 0x10
)

var magic = []byte("ID3")

// ErrNoTag is returned by parseHeader when data does not open with "ID3".
var ErrNoTag = errors.New("no ID3v2 tag")

type header struct {
	major    byte
	revision byte
	flags    byte
	size     uint32 // body size, excluding header and footer
}

func parseHeader(data []byte) (header, error) {
	if !bytes.HasPrefix(data, magic) {
		return header{}, ErrNoTag
	}
	c := cursor.New(data)
	if err := c.Skip(len(magic), "tag magic"); err != nil {
		return header{}, err
	}
	v, err := c.Bytes(3, "tag version and flags")
	if err != nil {
		return header{}, fmt.Errorf("truncated tag header: %w", err)
	}
	size, err := c.Synchsafe("tag size")
	if err != nil {
		return header{}, fmt.Errorf("tag header: %w", err)
	}
	return header{major: v[0], revision: v[1], flags: v[2], size: size}, nil
}

// total is the number of bytes the tag occupies at the start of the file.
func (h header) total() int {
	n := headerSize + int(h.size)
	if h.major == 4 && h.flags&flagFooter != 0 {
		n += footerSize
	}
	return n
}

// TagSize returns how many leading bytes of data belong to the ID3v2 tag,
// or 0 when data does not start with one.
func TagSize(data []byte) (int, error) {
	h, err := parseHeader(data)
	if errors.Is(err, ErrNoTag) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.total(), nil
}
