package id3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"github.com/dhowden/tag"

	"github.com/ankit-chaubey/id3-surgery/core"
)

func TestAudioPayload(t *testing.T) {
	t.Run("no tag returns whole input", func(t *testing.T) {
		got, err := AudioPayload(audioBytes)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, audioBytes) {
			t.Errorf("AudioPayload = % x, want entire input", got)
		}
	})

	t.Run("tag stripped by synchsafe size", func(t *testing.T) {
		data := withAudio(buildTag(t, 3, 0, 300, textFrame("TIT2", 0, []byte("x"))))
		got, err := AudioPayload(data)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, audioBytes) {
			t.Errorf("AudioPayload = % x, want % x", got, audioBytes)
		}
	})

	t.Run("v2.4 footer included", func(t *testing.T) {
		tagBytes := buildTag(t, 4, flagFooter, 0, textFrame24(t, "TIT2", 3, []byte("x")))
		footer := append([]byte("3DI"), tagBytes[3:10]...)
		data := append(append(tagBytes, footer...), audioBytes...)
		got, err := AudioPayload(data)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, audioBytes) {
			t.Errorf("AudioPayload = % x, want % x", got, audioBytes)
		}
	})

	t.Run("overrun", func(t *testing.T) {
		data := []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0x01, 0x00, 1, 2, 3}
		if _, err := AudioPayload(data); !errors.Is(err, ErrTagOverrun) {
			t.Errorf("err = %v, want ErrTagOverrun", err)
		}
	})

	t.Run("malformed size", func(t *testing.T) {
		data := []byte{'I', 'D', '3', 3, 0, 0, 0x80, 0, 0, 0}
		if _, err := AudioPayload(data); err == nil {
			t.Error("expected error for non-synchsafe size")
		}
	})
}

func TestWriteRoundTrip(t *testing.T) {
	original := withAudio(buildTag(t, 3, 0, 64,
		textFrame("TIT2", 0, sjisTitle),
		textFrame("TPE1", 0, []byte("Old Artist")),
	))
	md := Read("song.mp3", original, "アルバム")

	out, err := Write(original, md)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !bytes.HasPrefix(out, []byte{'I', 'D', '3', 3, 0}) {
		t.Fatalf("output header = % x, want ID3v2.3", out[:5])
	}
	payload, err := AudioPayload(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, audioBytes) {
		t.Errorf("payload changed: % x", payload)
	}

	back := Read("song.mp3", out, "")
	if back.Title != "カタカナ1" || back.Artist != "Old Artist" || back.Album != "アルバム" {
		t.Errorf("re-read = %+v", back)
	}
}

func TestWriteEncodesUTF16WithBOM(t *testing.T) {
	out, err := Write(audioBytes, core.ResolvedMetadata{Title: "曲"})
	if err != nil {
		t.Fatal(err)
	}
	idx := bytes.Index(out, []byte(FrameTitle))
	if idx != headerSize {
		t.Fatalf("TIT2 at %d, want %d", idx, headerSize)
	}
	body := out[idx+frameHeaderSize:]
	if body[0] != 1 {
		t.Errorf("encoding indicator = %d, want 1 (UTF-16 with BOM)", body[0])
	}
	// 曲 is U+66F2.
	want := []byte{1, 0xFE, 0xFF, 0x66, 0xF2, 0, 0}
	if !bytes.Equal(body, want) {
		t.Errorf("TIT2 body = % x, want % x", body, want)
	}
}

func TestWriteFramesHaveEvenUTF16Bodies(t *testing.T) {
	tests := []struct {
		name string
		md   core.ResolvedMetadata
		ids  []string
	}{
		{"ascii", core.ResolvedMetadata{Title: "T", Artist: "AB", Album: "ABC"}, []string{"TIT2", "TPE1", "TALB"}},
		{"japanese", core.ResolvedMetadata{Title: "カタカナ1", Artist: "アーティスト", Album: "アルバム"}, []string{"TIT2", "TPE1", "TALB"}},
		{"astral plane", core.ResolvedMetadata{Title: "🎵", Album: "x"}, []string{"TIT2", "TALB"}},
		{"album only", core.ResolvedMetadata{Album: "Z"}, []string{"TALB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := BuildTag(tt.md)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for off := headerSize; off+frameHeaderSize <= len(b); {
				id := string(b[off : off+4])
				size := int(binary.BigEndian.Uint32(b[off+4 : off+8]))
				body := b[off+frameHeaderSize : off+frameHeaderSize+size]
				if (size-1)%2 != 0 {
					t.Errorf("%s: text length %d is odd", id, size-1)
				}
				if !bytes.HasSuffix(body, []byte{0, 0}) {
					t.Errorf("%s: body % x lacks a 00 00 terminator", id, body)
				}
				ids = append(ids, id)
				off += frameHeaderSize + size
			}
			if !slices.Equal(ids, tt.ids) {
				t.Errorf("frame order = %v, want %v", ids, tt.ids)
			}
		})
	}
}

func TestWriteOmitsEmptyFields(t *testing.T) {
	out, err := Write(audioBytes, core.ResolvedMetadata{Title: "Only title", Album: "  "})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(out, []byte(FrameArtist)) || bytes.Contains(out, []byte(FrameAlbum)) {
		t.Error("output contains a frame for an empty field")
	}

	out, err = Write(withAudio(buildTag(t, 3, 0, 0, textFrame("TIT2", 0, []byte("x")))), core.ResolvedMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	// A v2.3 tag needs at least one frame, so no tag is written at all.
	if !bytes.Equal(out, audioBytes) {
		t.Errorf("empty metadata should leave bare payload, got % x", out)
	}
}

func TestWriteNoTagKeepsWholeInput(t *testing.T) {
	md := Read("01 Track.mp3", audioBytes, "")
	out, err := Write(audioBytes, md)
	if err != nil {
		t.Fatal(err)
	}
	n, err := TagSize(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out[n:], audioBytes) {
		t.Errorf("payload after new tag = % x, want full input", out[n:])
	}
}

func TestWriteIsStableWhenRepeated(t *testing.T) {
	md := core.ResolvedMetadata{Title: "T", Artist: "A", Album: "B"}
	first, err := Write(audioBytes, md)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Write(first, md)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("rewrite changed bytes:\n% x\n% x", first, second)
	}
	if got := Read("x.mp3", second, ""); got.Title != "T" || got.Artist != "A" || got.Album != "B" {
		t.Errorf("re-read = %+v", got)
	}
	payload, err := AudioPayload(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, audioBytes) {
		t.Error("rewrite changed the audio payload")
	}
}

func TestWriteErrors(t *testing.T) {
	if _, err := Write(audioBytes, core.ResolvedMetadata{Title: "bad\xff\xfe"}); !errors.Is(err, ErrUnrepresentable) {
		t.Errorf("invalid UTF-8: err = %v, want ErrUnrepresentable", err)
	}
	if _, err := Write(audioBytes, core.ResolvedMetadata{Artist: "a\x00b"}); !errors.Is(err, ErrUnrepresentable) {
		t.Errorf("embedded NUL: err = %v, want ErrUnrepresentable", err)
	}
	truncated := []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0x7F, 0x7F}
	if _, err := Write(truncated, core.ResolvedMetadata{Title: "x"}); !errors.Is(err, ErrTagOverrun) {
		t.Errorf("overrun: err = %v, want ErrTagOverrun", err)
	}
}

func TestWriteReadableByStandardReader(t *testing.T) {
	md := core.ResolvedMetadata{Title: "カタカナ1", Artist: "アーティスト", Album: "Album"}
	out, err := Write(audioBytes, md)
	if err != nil {
		t.Fatal(err)
	}
	m, err := tag.ReadFrom(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("tag.ReadFrom: %v", err)
	}
	if m.Format() != tag.ID3v2_3 {
		t.Errorf("Format = %s, want ID3v2.3", m.Format())
	}
	if m.Title() != md.Title || m.Artist() != md.Artist || m.Album() != md.Album {
		t.Errorf("standard reader saw %q/%q/%q", m.Title(), m.Artist(), m.Album())
	}
}
