// Package codec converts and splits audio by driving ffmpeg. Silence
// detection decodes MP3 to PCM in-process with minimp3.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/ankit-chaubey/id3-surgery/core"
)

var (
	// ErrBadOffsets is returned when split offsets are not strictly
	// increasing, not positive, or fall outside the stream.
	ErrBadOffsets = errors.New("invalid split offsets")
	// ErrNoDuration means the stream length could not be determined.
	ErrNoDuration = errors.New("could not determine stream duration")
)

// Config holds the ffmpeg and silence settings for a Service.
type Config struct {
	FFmpegPath string
	Bitrate    string
	Timeout    time.Duration
	// SilenceGap is the shortest run of quiet audio treated as a track break.
	SilenceGap time.Duration
	// SilenceThreshDB is the loudness, in dBFS, below which audio is quiet.
	SilenceThreshDB float64
}

// runFunc executes ffmpeg with args.
type runFunc func(ctx context.Context, bin string, args []string) error

// probeFunc returns ffprobe's JSON description of the file at path.
type probeFunc func(path string) (string, error)

// Service implements core.Codec on top of an ffmpeg binary.
type Service struct {
	cfg   Config
	log   *zap.Logger
	run   runFunc
	probe probeFunc
}

var _ core.Codec = (*Service)(nil)

// New returns a Service. Zero config fields take their usual defaults.
func New(cfg Config, log *zap.Logger) *Service {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "192k"
	}
	if cfg.SilenceGap <= 0 {
		cfg.SilenceGap = 2 * time.Second
	}
	if cfg.SilenceThreshDB == 0 {
		cfg.SilenceThreshDB = -50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:   cfg,
		log:   log,
		run:   runFFmpeg,
		probe: func(path string) (string, error) { return ffmpeggo.Probe(path) },
	}
}

func runFFmpeg(ctx context.Context, bin string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// workspace holds the temporary files of one operation.
type workspace struct {
	dir   string
	input string
}

func (s *Service) newWorkspace(name string, data []byte) (*workspace, error) {
	dir, err := os.MkdirTemp("", "id3-surgery-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	in := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(in, data, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("stage input: %w", err)
	}
	return &workspace{dir: dir, input: in}, nil
}

func (w *workspace) Close() { os.RemoveAll(w.dir) }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transcoding
// ──────────────────────────────────────────────────────────────────────────────

// Transcode converts data into MP3, keeping the source's metadata as an
// ID3v2.3 tag.
func (s *Service) Transcode(ctx context.Context, name string, data []byte) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ws, err := s.newWorkspace(name, data)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	out := filepath.Join(ws.dir, "output.mp3")
	args := ffmpeggo.Input(ws.input).
		Output(out, ffmpeggo.KwArgs{
			"map":           "0:a:0",
			"acodec":        "libmp3lame",
			"b:a":           s.cfg.Bitrate,
			"id3v2_version": "3",
		}).
		OverWriteOutput().
		GetArgs()

	start := time.Now()
	if err := s.run(ctx, s.cfg.FFmpegPath, args); err != nil {
		return nil, fmt.Errorf("transcode %s: %w", name, err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("transcode %s: %w", name, err)
	}
	s.log.Info("transcoded",
		zap.String("file", name),
		zap.Int("in_bytes", len(data)),
		zap.Int("out_bytes", len(b)),
		zap.Duration("took", time.Since(start)))
	return b, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Splitting
// ──────────────────────────────────────────────────────────────────────────────

// SplitAt cuts data at offsets measured from the start of the stream.
// Segments are stream copies named "<base>_NN<ext>".
func (s *Service) SplitAt(ctx context.Context, name string, data []byte, offsets []time.Duration) ([]core.Segment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ws, err := s.newWorkspace(name, data)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	total, err := s.duration(ws.input)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", name, err)
	}
	return s.cut(ctx, ws, name, offsets, total)
}

// SplitOnSilence cuts data in the middle of every quiet run of at least
// SilenceGap. Non-MP3 input is transcoded first. Audio without such a run
// comes back as a single segment.
func (s *Service) SplitOnSilence(ctx context.Context, name string, data []byte) ([]core.Segment, error) {
	if core.Detect(name, data) != core.FmtMP3 {
		mp3, err := s.Transcode(ctx, name, data)
		if err != nil {
			return nil, err
		}
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".mp3"
		data = mp3
	}

	pcm, err := decodeMP3(data)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", name, err)
	}
	gaps := DetectSilence(pcm.samples, pcm.sampleRate, pcm.channels, s.cfg.SilenceGap, s.cfg.SilenceThreshDB)
	cuts := CutPoints(gaps, pcm.duration)
	s.log.Info("silence scan",
		zap.String("file", name),
		zap.Duration("length", pcm.duration),
		zap.Int("gaps", len(gaps)),
		zap.Int("cuts", len(cuts)))
	if len(cuts) == 0 {
		return []core.Segment{{Name: segmentName(name, 0), Data: data}}, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ws, err := s.newWorkspace(name, data)
	if err != nil {
		return nil, err
	}
	defer ws.Close()
	return s.cut(ctx, ws, name, cuts, pcm.duration)
}

func (s *Service) duration(path string) (time.Duration, error) {
	js, err := s.probe(path)
	if err != nil {
		return 0, fmt.Errorf("probe: %w", err)
	}
	secs := gjson.Get(js, "format.duration").Float()
	if secs <= 0 {
		return 0, ErrNoDuration
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (s *Service) cut(ctx context.Context, ws *workspace, name string, offsets []time.Duration, total time.Duration) ([]core.Segment, error) {
	if err := ValidateOffsets(offsets, total); err != nil {
		return nil, err
	}
	bounds := append(append([]time.Duration{0}, offsets...), total)
	ext := filepath.Ext(ws.input)

	segs := make([]core.Segment, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		out := filepath.Join(ws.dir, fmt.Sprintf("segment_%02d%s", i+1, ext))
		in := ffmpeggo.KwArgs{"ss": seconds(bounds[i])}
		outArgs := ffmpeggo.KwArgs{"c": "copy", "map": "0:a:0"}
		if i+2 < len(bounds) {
			outArgs["t"] = seconds(bounds[i+1] - bounds[i])
		}
		args := ffmpeggo.Input(ws.input, in).Output(out, outArgs).OverWriteOutput().GetArgs()
		if err := s.run(ctx, s.cfg.FFmpegPath, args); err != nil {
			return nil, fmt.Errorf("split %s segment %d: %w", name, i+1, err)
		}
		b, err := os.ReadFile(out)
		if err != nil {
			return nil, fmt.Errorf("split %s segment %d: %w", name, i+1, err)
		}
		segs = append(segs, core.Segment{Name: segmentName(name, i), Data: b})
	}
	s.log.Info("split", zap.String("file", name), zap.Int("segments", len(segs)))
	return segs, nil
}

// ValidateOffsets checks that offsets are positive, strictly increasing and
// inside total.
func ValidateOffsets(offsets []time.Duration, total time.Duration) error {
	if len(offsets) == 0 {
		return fmt.Errorf("%w: none given", ErrBadOffsets)
	}
	if !sort.SliceIsSorted(offsets, func(i, j int) bool { return offsets[i] < offsets[j] }) {
		return fmt.Errorf("%w: not in ascending order", ErrBadOffsets)
	}
	for i, o := range offsets {
		if o <= 0 || (i > 0 && o == offsets[i-1]) {
			return fmt.Errorf("%w: %s", ErrBadOffsets, o)
		}
		if o >= total {
			return fmt.Errorf("%w: %s is past the end (%s)", ErrBadOffsets, o, total)
		}
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func segmentName(name string, i int) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_%02d%s", strings.TrimSuffix(base, ext), i+1, ext)
}
