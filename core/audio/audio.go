// Package audio shows what a conventional tag reader makes of a buffer, so
// the heuristic result can be compared with what a player would display.
package audio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"github.com/ankit-chaubey/id3-surgery/core"
)

// rawSkip lists raw keys already shown as canonical fields.
var rawSkip = map[string]bool{
	"TIT2": true, "TPE1": true, "TALB": true, "TPE2": true, "TCOM": true,
	"TCON": true, "TYER": true, "TDRC": true, "TRCK": true, "TPOS": true,
	"title": true, "artist": true, "album": true, "genre": true,
	"year": true, "date": true, "track": true, "tracknumber": true,
}

// View reads data with dhowden/tag and returns its fields. Raw frames that
// are not text (pictures, comments as structs) are rendered as JSON when
// short.
func View(name string, data []byte) (*core.Metadata, error) {
	m := &core.Metadata{FilePath: name}

	t, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return m, fmt.Errorf("could not read tags: %w", err)
	}

	m.Format = string(t.Format())
	cat := m.Format
	if cat == "" {
		cat = "Audio Tags"
	}

	add := func(key, val, category string) {
		if val != "" {
			m.Fields = append(m.Fields, core.MetaField{Key: key, Value: val, Category: category})
		}
	}

	add("Title", t.Title(), cat)
	add("Artist", t.Artist(), cat)
	add("Album", t.Album(), cat)
	add("AlbumArtist", t.AlbumArtist(), cat)
	add("Composer", t.Composer(), cat)
	add("Genre", t.Genre(), cat)
	if t.Year() != 0 {
		add("Year", fmt.Sprintf("%d", t.Year()), cat)
	}
	if track, total := t.Track(); track != 0 {
		s := fmt.Sprintf("%d", track)
		if total != 0 {
			s = fmt.Sprintf("%d/%d", track, total)
		}
		add("TrackNumber", s, cat)
	}
	if p := t.Picture(); p != nil {
		add("Picture", fmt.Sprintf("%s, %d bytes", p.MIMEType, len(p.Data)), cat)
	}

	raw := t.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if rawSkip[k] || raw[k] == nil {
			continue
		}
		var s string
		switch v := raw[k].(type) {
		case string:
			s = v
		case []string:
			s = strings.Join(v, "; ")
		case int:
			s = fmt.Sprintf("%d", v)
		case *tag.Picture:
			continue
		default:
			b, _ := json.Marshal(v)
			s = string(b)
		}
		if len(s) < 512 {
			add(k, s, cat+" (raw)")
		}
	}
	return m, nil
}
