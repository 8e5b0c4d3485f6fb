// Package repair runs the read, resolve and rewrite pipeline over one file or
// a batch of files.
package repair

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/id3"
)

// DefaultOracleTimeout bounds a single oracle call when no timeout is set.
const DefaultOracleTimeout = 30 * time.Second

// Repairer turns tagged audio into MP3 with a clean ID3v2.3 UTF-16 tag.
// It is safe for concurrent use.
type Repairer struct {
	log           *zap.Logger
	oracle        core.Oracle
	codec         core.Codec
	workers       int
	oracleTimeout time.Duration
}

// Option configures a Repairer.
type Option func(*Repairer)

// WithOracle enables SourceOracle.
func WithOracle(o core.Oracle) Option {
	return func(r *Repairer) { r.oracle = o }
}

// WithCodec enables conversion of non-MP3 inputs.
func WithCodec(c core.Codec) Option {
	return func(r *Repairer) { r.codec = c }
}

// WithWorkers bounds how many files RepairBatch handles at once. Values
// below 1 mean one per CPU.
func WithWorkers(n int) Option {
	return func(r *Repairer) { r.workers = n }
}

// WithOracleTimeout bounds each oracle call.
func WithOracleTimeout(d time.Duration) Option {
	return func(r *Repairer) { r.oracleTimeout = d }
}

// New returns a Repairer. A nil log discards output.
func New(log *zap.Logger, opts ...Option) *Repairer {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Repairer{log: log, oracleTimeout: DefaultOracleTimeout}
	for _, o := range opts {
		o(r)
	}
	if r.workers < 1 {
		r.workers = runtime.NumCPU()
	}
	return r
}

// Repair processes a single input. Failures are reported in Result.Err;
// the input buffer is never modified.
func (r *Repairer) Repair(ctx context.Context, in core.Input) core.Result {
	res := core.Result{Name: in.Name, Source: in.Source}
	if res.Source == "" {
		res.Source = core.SourceTags
	}
	log := r.log.With(zap.String("file", in.Name), zap.String("source", string(res.Source)))

	if in.Data == nil && in.Load != nil {
		data, err := in.Load()
		if err != nil {
			log.Warn("read failed", zap.Error(err))
			res.Err = fmt.Errorf("read %s: %w", in.Name, err)
			return res
		}
		in.Data = data
	}

	name, data, err := r.prepare(ctx, in.Name, in.Data)
	if err != nil {
		log.Warn("prepare failed", zap.Error(err))
		res.Err = err
		return res
	}
	res.Name = name

	md, err := r.resolve(ctx, log, name, data, in.FolderHint, res.Source)
	if err != nil {
		log.Warn("resolve failed", zap.Error(err))
		res.Err = err
		return res
	}
	if md, err = ApplyOverrides(md, in.Set); err != nil {
		res.Err = err
		return res
	}
	res.Metadata = md

	out, err := id3.Write(data, md)
	if err != nil {
		log.Warn("write failed", zap.Error(err))
		res.Err = err
		return res
	}
	if in.Store != nil {
		if err := in.Store(name, out); err != nil {
			log.Warn("store failed", zap.Error(err))
			res.Err = err
			return res
		}
	} else {
		res.Output = out
	}
	log.Debug("repaired",
		zap.String("title", md.Title),
		zap.String("artist", md.Artist),
		zap.String("album", md.Album),
		zap.String("encoding", string(md.OriginalEncoding)))
	return res
}

// RepairBatch repairs inputs concurrently and returns results in input
// order. A failing file never stops its siblings; once ctx is done, files
// that have not started are reported with ctx's error.
func (r *Repairer) RepairBatch(ctx context.Context, inputs []core.Input) []core.Result {
	results := make([]core.Result, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = core.Result{Name: in.Name, Source: in.Source, Err: err}
				return nil
			}
			results[i] = r.Repair(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	r.log.Info("batch finished",
		zap.Int("files", len(results)),
		zap.Int("repaired", len(results)-failed),
		zap.Int("failed", failed))
	return results
}

// prepare returns MP3 bytes for data, converting other containers through
// the codec. The returned name carries an .mp3 extension.
func (r *Repairer) prepare(ctx context.Context, name string, data []byte) (string, []byte, error) {
	format := core.Detect(name, data)
	switch {
	case format == core.FmtMP3:
		return name, data, nil
	case !core.Transcodable(format):
		return name, nil, fmt.Errorf("%s: %w", name, core.ErrUnsupportedFormat)
	case r.codec == nil:
		return name, nil, fmt.Errorf("%s is %s: %w", name, format, core.ErrNoCodec)
	}

	r.log.Info("transcoding", zap.String("file", name), zap.String("format", string(format)))
	out, err := r.codec.Transcode(ctx, name, data)
	if err != nil {
		return name, nil, fmt.Errorf("transcode %s: %w", name, err)
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".mp3", out, nil
}

func (r *Repairer) resolve(ctx context.Context, log *zap.Logger, name string, data []byte, hint string, src core.Source) (core.ResolvedMetadata, error) {
	md := id3.Read(name, data, hint)
	switch src {
	case core.SourceTags:
		return md, nil
	case core.SourceFilename:
		d := id3.Defaults(name, hint)
		d.OriginalEncoding = md.OriginalEncoding
		return d, nil
	case core.SourceOracle:
		if r.oracle == nil {
			return md, core.ErrNoOracle
		}
		g, err := r.guess(ctx, name, hint)
		if err != nil {
			if ctx.Err() != nil {
				return md, ctx.Err()
			}
			log.Warn("oracle failed, keeping tag values", zap.Error(err))
			return md, nil
		}
		return Merge(md, g, hint), nil
	}
	return md, fmt.Errorf("unknown metadata source %q", src)
}

func (r *Repairer) guess(ctx context.Context, name, hint string) (core.Guess, error) {
	ctx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()
	folder := hint
	if folder == "" {
		folder = filepath.Base(filepath.Dir(name))
		if folder == "." || folder == string(filepath.Separator) {
			folder = ""
		}
	}
	return r.oracle.Guess(ctx, filepath.Base(name), folder)
}

// Guess asks the configured oracle about name without touching any audio.
func (r *Repairer) Guess(ctx context.Context, name, folder string) (core.Guess, error) {
	if r.oracle == nil {
		return core.Guess{}, core.ErrNoOracle
	}
	ctx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()
	return r.oracle.Guess(ctx, filepath.Base(name), folder)
}

// Merge overlays the non-empty fields of g on md. A non-empty hint keeps
// the album.
func Merge(md core.ResolvedMetadata, g core.Guess, hint string) core.ResolvedMetadata {
	if g.Title != "" {
		md.Title = g.Title
	}
	if g.Artist != "" {
		md.Artist = g.Artist
	}
	if g.Album != "" && hint == "" {
		md.Album = g.Album
	}
	return md
}

// ErrUnknownField is returned for an override key other than title, artist
// or album.
var ErrUnknownField = errors.New("unknown metadata field")

// ApplyOverrides sets fields from set, keyed case-insensitively. Blank
// values are ignored.
func ApplyOverrides(md core.ResolvedMetadata, set map[string]string) (core.ResolvedMetadata, error) {
	for k, v := range set {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "title":
			md.Title = v
		case "artist":
			md.Artist = v
		case "album":
			md.Album = v
		default:
			return md, fmt.Errorf("%w %q (want title, artist or album)", ErrUnknownField, k)
		}
	}
	return md, nil
}
