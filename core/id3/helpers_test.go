package id3

import (
	"encoding/binary"
	"testing"

	"github.com/ankit-chaubey/id3-surgery/core/cursor"
)

// audioBytes stands in for an MPEG audio stream: a frame sync followed by
// arbitrary payload.
var audioBytes = []byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

// "カタカナ1" in Shift-JIS.
var sjisTitle = []byte{0x83, 0x4A, 0x83, 0x5E, 0x83, 0x4A, 0x83, 0x69, 0x31}

// textFrame builds a v2.3 frame: id, big-endian size, two flag bytes, the
// encoding indicator and content.
func textFrame(id string, indicator byte, content []byte) []byte {
	b := []byte(id)
	b = binary.BigEndian.AppendUint32(b, uint32(len(content)+1))
	b = append(b, 0, 0, indicator)
	return append(b, content...)
}

// textFrame24 builds a v2.4 frame with a synchsafe size.
func textFrame24(t *testing.T, id string, indicator byte, content []byte) []byte {
	t.Helper()
	b, err := cursor.AppendSynchsafe([]byte(id), uint32(len(content)+1))
	if err != nil {
		t.Fatal(err)
	}
	b = append(b, 0, 0, indicator)
	return append(b, content...)
}

// rawFrame builds a frame with an arbitrary body and explicit flags.
func rawFrame(id string, flags [2]byte, body []byte) []byte {
	b := []byte(id)
	b = binary.BigEndian.AppendUint32(b, uint32(len(body)))
	b = append(b, flags[0], flags[1])
	return append(b, body...)
}

// buildTag assembles a tag header around frames plus zero padding.
func buildTag(t *testing.T, major, flags byte, padding int, frames ...[]byte) []byte {
	t.Helper()
	var body []byte
	for _, f := range frames {
		body = append(body, f...)
	}
	body = append(body, make([]byte, padding)...)
	hdr, err := cursor.AppendSynchsafe([]byte{'I', 'D', '3', major, 0, flags}, uint32(len(body)))
	if err != nil {
		t.Fatal(err)
	}
	return append(hdr, body...)
}

func withAudio(tag []byte) []byte {
	out := append([]byte{}, tag...)
	return append(out, audioBytes...)
}
