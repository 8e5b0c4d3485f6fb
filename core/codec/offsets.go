package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseOffsets parses a comma-separated list of split points. Each entry is
// a Go duration ("1m30s"), a clock time ("1:30", "1:02:03.5") or plain
// seconds ("90").
func ParseOffsets(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := ParseOffset(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none given", ErrBadOffsets)
	}
	return out, nil
}

// ParseOffset parses a single split point; see ParseOffsets.
func ParseOffset(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadOffsets, s)
	}
	var total float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v < 0 || (i > 0 && v >= 60) {
			return 0, fmt.Errorf("%w: %q", ErrBadOffsets, s)
		}
		if i < len(fields)-1 && v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %q", ErrBadOffsets, s)
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)), nil
}
