package id3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bogem/id3v2/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/cursor"
)

var (
	// ErrTagOverrun means the header claims more bytes than the file holds.
	ErrTagOverrun = errors.New("tag size runs past end of file")
	// ErrUnrepresentable means a value cannot be stored in a UTF-16 text frame.
	ErrUnrepresentable = errors.New("value cannot be represented as UTF-16 text")
	// ErrTagBuild means the freshly built tag failed its own header check.
	ErrTagBuild = errors.New("built tag is malformed")
)

// AudioPayload returns the bytes that follow the leading ID3v2 tag, or all
// of data when there is no tag. The result aliases data.
func AudioPayload(data []byte) ([]byte, error) {
	n, err := TagSize(data)
	if err != nil {
		return nil, err
	}
	if n > len(data) {
		return nil, fmt.Errorf("%w: header declares %d bytes, file has %d", ErrTagOverrun, n, len(data))
	}
	return data[n:], nil
}

// Write replaces the tag at the start of data with one built from md. The
// audio payload is copied through unchanged. Nothing is returned unless the
// whole output was built.
//
// ID3v2.3 requires at least one frame, so when md has no non-blank field
// the output is the bare payload with no tag at all.
func Write(data []byte, md core.ResolvedMetadata) ([]byte, error) {
	payload, err := AudioPayload(data)
	if err != nil {
		return nil, err
	}
	tag, err := BuildTag(md)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(tag)+len(payload))
	out = append(out, tag...)
	out = append(out, payload...)
	return out, nil
}

// utf16BOM encodes big-endian UTF-16 preceded by a byte-order mark.
var utf16BOM = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// BuildTag encodes the non-empty fields of md as an ID3v2.3 tag whose text
// frames are UTF-16 with a byte-order mark. Frames are written in the
// order TIT2, TPE1, TALB, so equal metadata always yields equal bytes. It
// returns nil when md has no field to write.
func BuildTag(md core.ResolvedMetadata) ([]byte, error) {
	fields := []struct {
		id, name, value string
	}{
		{FrameTitle, "title", md.Title},
		{FrameArtist, "artist", md.Artist},
		{FrameAlbum, "album", md.Album},
	}

	var frames bytes.Buffer
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		if err := representable(f.value); err != nil {
			return nil, fmt.Errorf("%s %q: %w", f.name, f.value, err)
		}
		body, err := textFrameBody(f.value)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", f.name, f.value, err)
		}
		if err := writeFrame(&frames, f.id, id3v2.UnknownFrame{Body: body}); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.id, err)
		}
	}
	if frames.Len() == 0 {
		return nil, nil
	}

	out, err := cursor.AppendSynchsafe([]byte{'I', 'D', '3', 3, 0, 0}, uint32(frames.Len()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTagBuild, err)
	}
	out = append(out, frames.Bytes()...)
	if err := checkBuilt(out); err != nil {
		return nil, err
	}
	return out, nil
}

// textFrameBody returns the encoding indicator, the BOM-prefixed UTF-16
// text and its two-byte terminator.
func textFrameBody(s string) ([]byte, error) {
	enc, _, err := transform.Bytes(utf16BOM.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrepresentable, err)
	}
	term := id3v2.EncodingUTF16.TerminationBytes
	body := make([]byte, 0, 1+len(enc)+len(term))
	body = append(body, id3v2.EncodingUTF16.Key)
	body = append(body, enc...)
	return append(body, term...), nil
}

// writeFrame emits a v2.3 frame header (big-endian size, no flags) and
// the frame body.
func writeFrame(w *bytes.Buffer, id string, f id3v2.Framer) error {
	w.WriteString(id)
	w.Write(binary.BigEndian.AppendUint32(nil, uint32(f.Size())))
	w.Write([]byte{0, 0})
	_, err := f.WriteTo(w)
	return err
}

func representable(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("invalid UTF-8: %w", ErrUnrepresentable)
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("embedded NUL: %w", ErrUnrepresentable)
	}
	return nil
}

// checkBuilt re-parses the header of a built tag and confirms its synchsafe
// size accounts for every byte.
func checkBuilt(b []byte) error {
	h, err := parseHeader(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTagBuild, err)
	}
	if h.major != 3 {
		return fmt.Errorf("%w: version 2.%d", ErrTagBuild, h.major)
	}
	if h.total() != len(b) {
		return fmt.Errorf("%w: header declares %d bytes, built %d", ErrTagBuild, h.total(), len(b))
	}
	return nil
}
