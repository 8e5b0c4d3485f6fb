package id3

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ankit-chaubey/id3-surgery/core"
)

func TestReadNoTagReturnsDefaults(t *testing.T) {
	md := Read("music/01 Track.mp3", audioBytes, "")
	want := core.ResolvedMetadata{
		Title:            "01 Track",
		Artist:           core.UnknownArtist,
		Album:            core.UnknownAlbum,
		OriginalEncoding: core.EncodingUnknown,
	}
	if md != want {
		t.Errorf("Read = %+v, want %+v", md, want)
	}
}

func TestReadShiftJISTitleScenario(t *testing.T) {
	// Header declares a 0x23-byte body: one 20-byte TIT2 frame and 15 bytes of padding.
	// The frame header is the full v2.3 layout: id, 4-byte size 0x0A, two
	// flag bytes. The body is the Latin-1 indicator 00 and nine Shift-JIS bytes.
	data := []byte{0x49, 0x44, 0x33, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x23}
	data = append(data, 0x54, 0x49, 0x54, 0x32, 0x00, 0x00, 0x00, 0x0A, 0x00, 0x00)
	data = append(data, 0x00)
	data = append(data, sjisTitle...)
	data = append(data, make([]byte, 15)...)
	data = append(data, audioBytes...)

	md := Read("track.mp3", data, "")
	if md.Title != "カタカナ1" {
		t.Errorf("Title = %q, want カタカナ1", md.Title)
	}
	if md.Artist != core.UnknownArtist || md.Album != core.UnknownAlbum {
		t.Errorf("Artist/Album = %q/%q, want defaults", md.Artist, md.Album)
	}
	if md.OriginalEncoding != core.EncodingShiftJIS {
		t.Errorf("OriginalEncoding = %s, want Shift-JIS", md.OriginalEncoding)
	}

	withHint := Read("track.mp3", data, "MyAlbum")
	if withHint.Album != "MyAlbum" {
		t.Errorf("Album with hint = %q, want MyAlbum", withHint.Album)
	}
	if withHint.Title != "カタカナ1" {
		t.Errorf("Title with hint = %q", withHint.Title)
	}
}

func TestReadFrameMissingFlagBytes(t *testing.T) {
	// Same bytes with only one byte between the size and the text: the
	// second flag byte becomes 0x83, which marks the frame compressed, so
	// the title falls back to the file name.
	data := []byte{0x49, 0x44, 0x33, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x23}
	data = append(data, 0x54, 0x49, 0x54, 0x32, 0x00, 0x00, 0x00, 0x0A, 0x00)
	data = append(data, sjisTitle...)
	data = append(data, make([]byte, 0x23-9-len(sjisTitle))...)
	data = append(data, audioBytes...)

	md := Read("track.mp3", data, "")
	if md.Title != "track" || md.Artist != core.UnknownArtist || md.Album != core.UnknownAlbum {
		t.Errorf("Read = %+v, want defaults", md)
	}
}

func TestReadFrames(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		hint   string
		want   core.ResolvedMetadata
		encIgn bool
	}{
		{
			name: "utf8 bytes declared latin1",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TIT2", 0, []byte("日本語のタイトル")),
				textFrame("TPE1", 0, []byte("Artist")),
				textFrame("TALB", 0, []byte("Album")),
			)),
			want: core.ResolvedMetadata{Title: "日本語のタイトル", Artist: "Artist", Album: "Album", OriginalEncoding: core.EncodingUTF8},
		},
		{
			name: "utf16 with bom",
			data: withAudio(buildTag(t, 3, 0, 4,
				textFrame("TIT2", 1, []byte{0xFF, 0xFE, 0xAB, 0x30, 0xBF, 0x30, 0, 0}),
				textFrame("TPE1", 2, []byte{0x00, 'B', 0x00, 'E'}),
			)),
			want: core.ResolvedMetadata{Title: "カタ", Artist: "BE", Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUnknown},
		},
		{
			name: "nul padding and whitespace trimmed",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TIT2", 3, []byte("  Song \x00\x00")),
			)),
			want: core.ResolvedMetadata{Title: "Song", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUTF8},
		},
		{
			name: "control character rejected",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TIT2", 0, []byte("Good")),
				textFrame("TPE1", 0, []byte("Bad\x01Artist")),
				textFrame("TALB", 1, []byte{0xFF, 0xFE, 'A', 0, 0x1F, 0}),
			)),
			want: core.ResolvedMetadata{Title: "Good", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUTF8},
		},
		{
			name: "empty frame is absent",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TIT2", 0, nil),
			)),
			want: core.ResolvedMetadata{Title: "file", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUnknown},
		},
		{
			name: "invalid utf8 under indicator 3 is absent",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TIT2", 3, sjisTitle),
			)),
			want: core.ResolvedMetadata{Title: "file", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUnknown},
		},
		{
			name: "folder hint beats valid album",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TALB", 0, []byte("Embedded")),
			)),
			hint: "Folder",
			want: core.ResolvedMetadata{Title: "file", Artist: core.UnknownArtist, Album: "Folder", OriginalEncoding: core.EncodingUTF8},
		},
		{
			name: "folder hint beats corrupted album",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TALB", 0, []byte{0x83, 0x01, 0x02}),
			)),
			hint: "Folder",
			want: core.ResolvedMetadata{Title: "file", Artist: core.UnknownArtist, Album: "Folder", OriginalEncoding: core.EncodingUnknown},
			encIgn: true,
		},
		{
			name: "compressed frame is absent",
			data: withAudio(buildTag(t, 3, 0, 0,
				rawFrame("TIT2", [2]byte{0x00, 0x80}, append([]byte{0}, "zzzz"...)),
			)),
			want: core.ResolvedMetadata{Title: "file", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUnknown},
		},
		{
			name: "first frame wins",
			data: withAudio(buildTag(t, 3, 0, 0,
				textFrame("TIT2", 0, []byte("First")),
				textFrame("TIT2", 0, []byte("Second")),
			)),
			want: core.ResolvedMetadata{Title: "First", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUTF8},
		},
		{
			name: "unsupported v2.2 tag",
			data: withAudio(buildTag(t, 2, 0, 0, []byte("TT2\x00\x00\x06\x00Title"))),
			want: core.ResolvedMetadata{Title: "file", Artist: core.UnknownArtist, Album: core.UnknownAlbum, OriginalEncoding: core.EncodingUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Read("dir/file.mp3", tt.data, tt.hint)
			if tt.encIgn {
				got.OriginalEncoding = tt.want.OriginalEncoding
			}
			if got != tt.want {
				t.Errorf("Read =\n  %+v\nwant\n  %+v", got, tt.want)
			}
		})
	}
}

func TestReadFrameAfterLargeLeadingFrame(t *testing.T) {
	cover := rawFrame("APIC", [2]byte{}, bytes.Repeat([]byte{0xAA}, 20000))
	data := withAudio(buildTag(t, 3, 0, 0,
		cover,
		textFrame("TIT2", 0, []byte("Behind the cover")),
	))
	if md := Read("x.mp3", data, ""); md.Title != "Behind the cover" {
		t.Errorf("Title = %q, want frame located after 20000-byte cover", md.Title)
	}
}

func TestReadTruncatedFrameDoesNotPanic(t *testing.T) {
	tag := buildTag(t, 3, 0, 0, textFrame("TIT2", 0, []byte("Complete title")))
	for cut := 0; cut < len(tag); cut++ {
		md := Read("cut.mp3", tag[:cut], "")
		if md.Artist != core.UnknownArtist {
			t.Fatalf("cut %d: Artist = %q", cut, md.Artist)
		}
	}

	// Frame claims far more bytes than the buffer holds.
	data := []byte("ID3\x03\x00\x00\x00\x00\x01\x00TIT2\x00\x00\x10\x00\x00\x00\x00short")
	if md := Read("huge.mp3", data, ""); md.Title != "huge" {
		t.Errorf("Title = %q, want filename default", md.Title)
	}
}

func TestReadScanFallbackAfterMalformedWalk(t *testing.T) {
	garbage := []byte("\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0a")
	data := withAudio(buildTag(t, 3, 0, 0, garbage, textFrame("TPE1", 0, []byte("Found by scan"))))
	if md := Read("x.mp3", data, ""); md.Artist != "Found by scan" {
		t.Errorf("Artist = %q, want scan fallback result", md.Artist)
	}
}

func TestReadMalformedHeaderSize(t *testing.T) {
	frame := textFrame("TIT2", 0, []byte("Still here"))
	data := append([]byte{'I', 'D', '3', 3, 0, 0, 0x80, 0x80, 0x80, 0x80}, frame...)
	data = append(data, audioBytes...)
	if md := Read("x.mp3", data, ""); md.Title != "Still here" {
		t.Errorf("Title = %q, want bounded scan result", md.Title)
	}
}

func TestReadExtendedHeader(t *testing.T) {
	ext := []byte{0, 0, 0, 6, 0, 0, 0, 0, 0, 0} // size 6 excludes its own 4 bytes
	data := withAudio(buildTag(t, 3, flagExtendedHeader, 0, ext, textFrame("TIT2", 0, []byte("After ext"))))
	if md := Read("x.mp3", data, ""); md.Title != "After ext" {
		t.Errorf("Title = %q", md.Title)
	}
}

func TestReadV24SynchsafeFrameSize(t *testing.T) {
	long := strings.Repeat("x", 300)
	data := withAudio(buildTag(t, 4, 0, 0,
		textFrame24(t, "TIT2", 3, []byte(long)),
		textFrame24(t, "TPE1", 3, []byte("Next")),
	))
	md := Read("x.mp3", data, "")
	if md.Title != long {
		t.Errorf("Title length = %d, want 300", len(md.Title))
	}
	if md.Artist != "Next" {
		t.Errorf("Artist = %q, want frame after synchsafe-sized frame", md.Artist)
	}
}

func TestReadV24DataLengthIndicator(t *testing.T) {
	body := append([]byte{0, 0, 0, 6, 3}, "Hello"...)
	data := withAudio(buildTag(t, 4, 0, 0, rawFrame("TIT2", [2]byte{0x00, 0x01}, body)))
	if md := Read("x.mp3", data, ""); md.Title != "Hello" {
		t.Errorf("Title = %q, want Hello", md.Title)
	}
}

func TestTitleFromName(t *testing.T) {
	for in, want := range map[string]string{
		"01 Track.mp3":         "01 Track",
		"/a/b/Song.name.mp3":   "Song.name",
		"noext":                "noext",
		".mp3":                 core.UnknownTitle,
		"":                     core.UnknownTitle,
		"album/トラック01.MP3": "トラック01",
	} {
		if got := TitleFromName(in); got != want {
			t.Errorf("TitleFromName(%q) = %q, want %q", in, got, want)
		}
	}
}
