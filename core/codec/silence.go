package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/tosone/minimp3"
)

// window is the analysis block length for loudness measurement.
const window = 10 * time.Millisecond

// Gap is a run of audio quieter than the silence threshold.
type Gap struct {
	Start time.Duration
	End   time.Duration
}

// Len returns the length of the gap.
func (g Gap) Len() time.Duration { return g.End - g.Start }

// pcm is decoded 16-bit little-endian interleaved audio.
type pcm struct {
	samples    []byte
	sampleRate int
	channels   int
	duration   time.Duration
}

func decodeMP3(data []byte) (*pcm, error) {
	dec, samples, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	defer dec.Close()
	if dec.SampleRate <= 0 || dec.Channels <= 0 {
		return nil, fmt.Errorf("decode mp3: no audio frames")
	}
	frames := len(samples) / 2 / dec.Channels
	return &pcm{
		samples:    samples,
		sampleRate: dec.SampleRate,
		channels:   dec.Channels,
		duration:   time.Duration(frames) * time.Second / time.Duration(dec.SampleRate),
	}, nil
}

// DetectSilence returns every run of at least minGap whose 10 ms RMS level
// stays below thresholdDB (dBFS). samples is 16-bit little-endian PCM with
// channels interleaved.
func DetectSilence(samples []byte, sampleRate, channels int, minGap time.Duration, thresholdDB float64) []Gap {
	if sampleRate <= 0 || channels <= 0 {
		return nil
	}
	frameBytes := 2 * channels
	perWindow := sampleRate * int(window) / int(time.Second)
	if perWindow < 1 {
		perWindow = 1
	}
	totalFrames := len(samples) / frameBytes
	at := func(frame int) time.Duration {
		return time.Duration(frame) * time.Second / time.Duration(sampleRate)
	}

	var gaps []Gap
	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		g := Gap{Start: at(runStart), End: at(end)}
		if g.Len() >= minGap {
			gaps = append(gaps, g)
		}
		runStart = -1
	}

	for f := 0; f < totalFrames; f += perWindow {
		n := min(perWindow, totalFrames-f)
		block := samples[f*frameBytes : (f+n)*frameBytes]
		if level(block) < thresholdDB {
			if runStart < 0 {
				runStart = f
			}
			continue
		}
		flush(f)
	}
	flush(totalFrames)
	return gaps
}

// level returns the RMS of block in dBFS; digital silence is -Inf.
func level(block []byte) float64 {
	n := len(block) / 2
	if n == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(block[2*i:])))
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768)
}

// CutPoints returns the midpoint of every gap that lies strictly inside the
// stream. Leading and trailing silence never produce a cut.
func CutPoints(gaps []Gap, total time.Duration) []time.Duration {
	var cuts []time.Duration
	for _, g := range gaps {
		if g.Start <= 0 || g.End >= total {
			continue
		}
		cuts = append(cuts, g.Start+g.Len()/2)
	}
	return cuts
}
