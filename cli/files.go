package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ankit-chaubey/id3-surgery/core"
)

// collectFiles expands args into audio file paths. Directories are walked
// recursively and filtered by extension; explicit files are kept as given.
func collectFiles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != arg && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && isAudioName(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no audio files found")
	}
	return out, nil
}

func isAudioName(path string) bool {
	return core.Detect(path, nil) != core.FmtUnknown
}

// outputPath decides where the repaired form of src goes. name is the
// result name, which may carry a new extension after transcoding.
func outputPath(src, name, outDir string) string {
	base := filepath.Base(name)
	var dst string
	switch {
	case outDir != "":
		dst = filepath.Join(outDir, base)
	case base != filepath.Base(src):
		dst = filepath.Join(filepath.Dir(src), base)
	}
	return core.ResolveOutPath(src, dst)
}

// parseSet turns repeated Key=Value flags into an override map.
func parseSet(pairs []string) (map[string]string, error) {
	set := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := core.ParseKV(p)
		if !ok {
			return nil, fmt.Errorf("invalid --set %q (want Key=Value)", p)
		}
		set[k] = v
	}
	return set, nil
}
