package id3

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/charset"
	"github.com/ankit-chaubey/id3-surgery/core/cursor"
)

// Frame identifiers the reader resolves.
const (
	FrameTitle  = "TIT2"
	FrameArtist = "TPE1"
	FrameAlbum  = "TALB"
)

var targets = []string{FrameTitle, FrameArtist, FrameAlbum}

// legacyScanLimit bounds the byte scan when the header gives no usable size.
const legacyScanLimit = 10000

type frame struct {
	id        string
	flags     [2]byte
	indicator byte
	content   []byte
	next      int // offset of the following frame header
}

// Read resolves title, artist and album from the tag at the start of data.
// It never fails: anything it cannot decode falls back to a default derived
// from name (title) or folderHint (album). A non-empty folderHint always
// wins over the embedded album.
func Read(name string, data []byte, folderHint string) core.ResolvedMetadata {
	md := Defaults(name, folderHint)

	h, err := parseHeader(data)
	end := len(data)
	switch {
	case errors.Is(err, ErrNoTag):
		return md
	case err != nil:
		// Unusable size: fall back to a bounded scan, treating the tag as v2.3.
		h = header{major: 3}
		end = min(end, legacyScanLimit)
	case h.major != 3 && h.major != 4:
		return md
	default:
		end = min(end, headerSize+int(h.size))
	}

	found := make(map[string]frame, len(targets))
	if !walkFrames(data, h, end, found) {
		scanFrames(data, h, end, found)
	}

	var sawUTF8, sawSJIS bool
	resolved := make(map[string]string, len(targets))
	for id, f := range found {
		s, enc, ok := decodeFrame(f, h.major)
		if !ok {
			continue
		}
		resolved[id] = s
		switch enc {
		case core.EncodingShiftJIS:
			sawSJIS = true
		case core.EncodingUTF8:
			sawUTF8 = true
		}
	}

	if s, ok := resolved[FrameTitle]; ok {
		md.Title = s
	}
	if s, ok := resolved[FrameArtist]; ok {
		md.Artist = s
	}
	if s, ok := resolved[FrameAlbum]; ok && folderHint == "" {
		md.Album = s
	}
	switch {
	case sawSJIS:
		md.OriginalEncoding = core.EncodingShiftJIS
	case sawUTF8:
		md.OriginalEncoding = core.EncodingUTF8
	}
	return md
}

// Defaults returns the metadata used when a file carries no usable tag.
func Defaults(name, folderHint string) core.ResolvedMetadata {
	md := core.ResolvedMetadata{
		Title:            TitleFromName(name),
		Artist:           core.UnknownArtist,
		Album:            core.UnknownAlbum,
		OriginalEncoding: core.EncodingUnknown,
	}
	if folderHint != "" {
		md.Album = folderHint
	}
	return md
}

// TitleFromName strips directories and the extension from a file name.
func TitleFromName(name string) string {
	if name == "" {
		return core.UnknownTitle
	}
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" || title == "." || title == string(filepath.Separator) {
		return core.UnknownTitle
	}
	return title
}

// walkFrames follows declared frame sizes from the first frame to end. It
// reports false when it had to stop on a malformed frame header.
func walkFrames(data []byte, h header, end int, found map[string]frame) bool {
	off, ok := firstFrameOffset(data, h, end)
	if !ok {
		return false
	}
	for off+frameHeaderSize <= end {
		if data[off] == 0 {
			return true // padding
		}
		if !validFrameID(data[off : off+4]) {
			return false
		}
		f, err := readFrameAt(data[:end], off, h.major)
		if err != nil {
			return false
		}
		if isTarget(f.id) {
			if _, dup := found[f.id]; !dup {
				found[f.id] = f
			}
		}
		if len(found) == len(targets) {
			return true
		}
		off = f.next
	}
	return true
}

// scanFrames tests every byte offset of the tag for a wanted identifier the
// walk did not reach. First match wins per identifier.
func scanFrames(data []byte, h header, end int, found map[string]frame) {
	for off := headerSize; off+frameHeaderSize <= end; off++ {
		id := string(data[off : off+4])
		if !isTarget(id) {
			continue
		}
		if _, dup := found[id]; dup {
			continue
		}
		f, err := readFrameAt(data[:end], off, h.major)
		if err != nil {
			continue
		}
		found[id] = f
		if len(found) == len(targets) {
			return
		}
	}
}

func firstFrameOffset(data []byte, h header, end int) (int, bool) {
	if h.flags&flagExtendedHeader == 0 {
		return headerSize, true
	}
	c := cursor.New(data[:end])
	if err := c.Seek(headerSize); err != nil {
		return 0, false
	}
	if h.major == 4 {
		// v2.4: synchsafe size includes the size field itself.
		n, err := c.Synchsafe("extended header size")
		if err != nil {
			return 0, false
		}
		return headerSize + int(n), headerSize+int(n) <= end
	}
	n, err := c.Uint32BE("extended header size")
	if err != nil {
		return 0, false
	}
	return headerSize + 4 + int(n), headerSize+4+int(n) <= end
}

func readFrameAt(data []byte, off int, major byte) (frame, error) {
	c := cursor.New(data)
	if err := c.Seek(off); err != nil {
		return frame{}, err
	}
	id, err := c.Bytes(4, "frame id")
	if err != nil {
		return frame{}, err
	}
	rawSize, err := c.Bytes(4, "frame size")
	if err != nil {
		return frame{}, err
	}
	size, err := frameSize(rawSize, major)
	if err != nil {
		return frame{}, err
	}
	flags, err := c.Bytes(2, "frame flags")
	if err != nil {
		return frame{}, err
	}
	body, err := c.Bytes(int(size), "frame "+string(id)+" body")
	if err != nil {
		return frame{}, err
	}

	f := frame{id: string(id), next: c.Offset()}
	copy(f.flags[:], flags)
	if len(body) > 0 {
		f.indicator = body[0]
		f.content = body[1:]
	}
	return f, nil
}

// frameSize decodes a frame size field. v2.3 sizes are plain big-endian;
// v2.4 sizes are synchsafe, except that writers which emit big-endian sizes
// in v2.4 tags are tolerated when a byte has its high bit set.
func frameSize(b []byte, major byte) (uint32, error) {
	if major == 4 {
		if n, err := cursor.Synchsafe(b); err == nil {
			return n, nil
		}
	}
	return cursor.Uint32BE(b)
}

// decodeFrame applies the encoding heuristic and junk rejection to f.
func decodeFrame(f frame, major byte) (string, core.Encoding, bool) {
	content := f.content
	switch major {
	case 3:
		if f.flags[1]&0xC0 != 0 { // compressed or encrypted
			return "", core.EncodingUnknown, false
		}
	case 4:
		if f.flags[1]&0x0C != 0 {
			return "", core.EncodingUnknown, false
		}
		if f.flags[1]&0x01 != 0 {
			// Data length indicator precedes the encoding byte.
			if len(content) < 4 {
				return "", core.EncodingUnknown, false
			}
			body := append([]byte{f.indicator}, content...)
			f.indicator, content = body[4], body[5:]
		}
	}
	if len(content) == 0 {
		return "", core.EncodingUnknown, false
	}
	return charset.Resolve(f.indicator, content)
}

func isTarget(id string) bool {
	for _, t := range targets {
		if id == t {
			return true
		}
	}
	return false
}

func validFrameID(b []byte) bool {
	for _, x := range b {
		if (x < 'A' || x > 'Z') && (x < '0' || x > '9') {
			return false
		}
	}
	return true
}
