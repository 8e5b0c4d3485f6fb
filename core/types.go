// Package core defines the shared types, collaborator interfaces, and format
// sniffing for ID3 Surgery.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Placeholders used when neither the tag nor the caller supplies a value.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

var (
	// ErrUnsupportedFormat is reported for inputs that are not MP3 and cannot
	// be converted into MP3.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNoCodec is reported when an operation needs the codec service and
	// none is configured.
	ErrNoCodec = errors.New("codec service not configured")
	// ErrNoOracle is reported when a guess is requested without an oracle.
	ErrNoOracle = errors.New("metadata oracle not configured")
)

// Encoding classifies how the text frames of a tag were originally encoded.
// It is diagnostic only.
type Encoding string

const (
	EncodingUTF8     Encoding = "UTF-8"
	EncodingShiftJIS Encoding = "Shift-JIS"
	EncodingUnknown  Encoding = "Unknown"
)

// ResolvedMetadata is the record handed to the tag writer.
type ResolvedMetadata struct {
	Title            string   `json:"title"`
	Artist           string   `json:"artist"`
	Album            string   `json:"album"`
	OriginalEncoding Encoding `json:"originalEncoding"`
}

// Guess is the best-effort answer of a metadata oracle. Any field may be empty.
type Guess struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// Empty reports whether the guess carries no usable field.
func (g Guess) Empty() bool {
	return g.Title == "" && g.Artist == "" && g.Album == ""
}

// Oracle infers metadata from a filename and an optional parent folder name.
// Implementations must honour ctx cancellation.
type Oracle interface {
	Guess(ctx context.Context, filename, folder string) (Guess, error)
}

// Segment is one output buffer produced by the codec service.
type Segment struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Codec converts and segments audio. Implementations must honour ctx
// cancellation.
type Codec interface {
	// Transcode converts data (any container ffmpeg reads) into MP3.
	Transcode(ctx context.Context, name string, data []byte) ([]byte, error)
	// SplitAt cuts data at the given offsets from the start of the stream.
	SplitAt(ctx context.Context, name string, data []byte, offsets []time.Duration) ([]Segment, error)
	// SplitOnSilence cuts data in the middle of every detected silence gap.
	SplitOnSilence(ctx context.Context, name string, data []byte) ([]Segment, error)
}

// Source selects where repaired metadata comes from.
type Source string

const (
	SourceTags     Source = "tags"
	SourceOracle   Source = "oracle"
	SourceFilename Source = "filename"
)

// ParseSource validates a user-supplied source name. Empty means SourceTags.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceTags:
		return SourceTags, nil
	case SourceOracle, SourceFilename:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown metadata source %q (want tags, oracle or filename)", s)
}

// Input is one file submitted for repair.
type Input struct {
	Name       string // file name, used for the title fallback
	Data       []byte
	FolderHint string // album override; empty means none
	Source     Source
	// Set holds manual overrides keyed by "title", "artist" or "album".
	Set map[string]string

	// Load supplies Data on demand when Data is nil. A batch then holds
	// only the files its workers are busy with.
	Load func() ([]byte, error)
	// Store, when set, receives the repaired bytes in place of
	// Result.Output. name is the result name, which may differ from Name
	// after transcoding.
	Store func(name string, out []byte) error
}

// Result is the outcome of repairing one file.
type Result struct {
	Name     string
	Metadata ResolvedMetadata
	Source   Source
	Output   []byte
	Err      error
}

// OK reports whether the file was repaired.
func (r Result) OK() bool { return r.Err == nil }

// MetaField represents a single metadata key-value pair.
type MetaField struct {
	Key      string // Canonical field name (e.g. "Title", "Artist")
	Value    string // String representation of the value
	Category string // Category label (e.g. "ID3v2.3", "ID3v2.4 (raw)")
}

// Metadata holds the fields a standard tag reader reports for one file.
type Metadata struct {
	FilePath string
	Format   string
	Fields   []MetaField
}

// Summary returns a short string of key fields for quick display.
func (m *Metadata) Summary() string {
	for _, f := range m.Fields {
		if f.Key == "Title" || f.Key == "Artist" {
			return f.Key + ": " + f.Value
		}
	}
	return m.Format
}

// Get returns the value of the first field named key.
func (m *Metadata) Get(key string) string {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}
