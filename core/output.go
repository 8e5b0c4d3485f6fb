package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Printer handles all display output for the CLI.
type Printer struct {
	JSON    bool
	Verbose bool
	Writer  io.Writer
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter(jsonMode, verbose bool) *Printer {
	return &Printer{JSON: jsonMode, Verbose: verbose, Writer: os.Stdout}
}

// PrintMetadata renders what a standard tag reader reports.
func (p *Printer) PrintMetadata(m *Metadata) {
	if p.JSON {
		p.printJSON(metadataJSON(m))
		return
	}
	fmt.Fprintf(p.Writer, "File  : %s\n", m.FilePath)
	fmt.Fprintf(p.Writer, "Format: %s\n", m.Format)
	if len(m.Fields) == 0 {
		fmt.Fprintln(p.Writer, "(no metadata found)")
		return
	}
	fmt.Fprintln(p.Writer)

	// Group by category
	groups := make(map[string][]MetaField)
	order := []string{}
	for _, f := range m.Fields {
		if _, seen := groups[f.Category]; !seen {
			order = append(order, f.Category)
		}
		groups[f.Category] = append(groups[f.Category], f)
	}
	for _, cat := range order {
		fmt.Fprintf(p.Writer, "── %s ──\n", cat)
		for _, f := range groups[cat] {
			fmt.Fprintf(p.Writer, "  %-30s %s\n", f.Key+":", f.Value)
		}
		fmt.Fprintln(p.Writer)
	}
}

// PrintResolved renders the repaired metadata for one file.
func (p *Printer) PrintResolved(name string, md ResolvedMetadata) {
	if p.JSON {
		p.printJSON(struct {
			File string `json:"file"`
			ResolvedMetadata
		}{name, md})
		return
	}
	fmt.Fprintf(p.Writer, "File    : %s\n", name)
	fmt.Fprintf(p.Writer, "Title   : %s\n", md.Title)
	fmt.Fprintf(p.Writer, "Artist  : %s\n", md.Artist)
	fmt.Fprintf(p.Writer, "Album   : %s\n", md.Album)
	fmt.Fprintf(p.Writer, "Encoding: %s\n", md.OriginalEncoding)
}

// PrintResults renders a batch of repair outcomes.
func (p *Printer) PrintResults(results []Result) {
	if p.JSON {
		type jsonResult struct {
			File     string           `json:"file"`
			OK       bool             `json:"ok"`
			Source   Source           `json:"source,omitempty"`
			Metadata ResolvedMetadata `json:"metadata"`
			Error    string           `json:"error,omitempty"`
		}
		out := make([]jsonResult, 0, len(results))
		for _, r := range results {
			jr := jsonResult{File: r.Name, OK: r.OK(), Source: r.Source, Metadata: r.Metadata}
			if r.Err != nil {
				jr.Error = r.Err.Error()
			}
			out = append(out, jr)
		}
		p.printJSON(out)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(p.Writer, "✗ %s: %v\n", r.Name, r.Err)
			continue
		}
		fmt.Fprintf(p.Writer, "✓ %s: %s / %s / %s", r.Name, r.Metadata.Title, r.Metadata.Artist, r.Metadata.Album)
		if p.Verbose {
			fmt.Fprintf(p.Writer, " [%s, %s]", r.Source, r.Metadata.OriginalEncoding)
		}
		fmt.Fprintln(p.Writer)
	}
	fmt.Fprintf(p.Writer, "%d repaired, %d failed\n", len(results)-failed, failed)
}

// PrintGuess renders an oracle answer.
func (p *Printer) PrintGuess(filename string, g Guess) {
	if p.JSON {
		p.printJSON(g)
		return
	}
	fmt.Fprintf(p.Writer, "File  : %s\n", filename)
	fmt.Fprintf(p.Writer, "Title : %s\n", g.Title)
	fmt.Fprintf(p.Writer, "Artist: %s\n", g.Artist)
	fmt.Fprintf(p.Writer, "Album : %s\n", g.Album)
}

func metadataJSON(m *Metadata) any {
	type jsonField struct {
		Key      string `json:"key"`
		Value    string `json:"value"`
		Category string `json:"category"`
	}
	type jsonOutput struct {
		FilePath string      `json:"file"`
		Format   string      `json:"format"`
		Fields   []jsonField `json:"fields"`
	}
	out := jsonOutput{FilePath: m.FilePath, Format: m.Format}
	for _, f := range m.Fields {
		out.Fields = append(out.Fields, jsonField{Key: f.Key, Value: f.Value, Category: f.Category})
	}
	return out
}

func (p *Printer) printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(p.Writer, string(b))
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, "✓ "+msg)
	}
}

// PrintInfo prints an info line (suppressed in JSON mode).
func (p *Printer) PrintInfo(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}

// ParseKV parses a "Key=Value" string.
func ParseKV(s string) (key, value string, ok bool) {
	idx := strings.Index(s, "=")
	if idx < 1 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), true
}

// ResolveOutPath returns dst if non-empty, otherwise src (in-place).
func ResolveOutPath(src, dst string) string {
	if dst == "" {
		return src
	}
	return dst
}
