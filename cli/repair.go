package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ankit-chaubey/id3-surgery/core"
)

type repairOptions struct {
	Folder      string
	FolderAlbum bool
	Source      string
	Set         []string
	OutDir      string
	DryRun      bool
	Transcode   bool
}

func newRepairCommand(a *app) *cobra.Command {
	opts := repairOptions{Source: string(core.SourceTags)}

	cmd := &cobra.Command{
		Use:   "repair <file|dir>...",
		Short: "Rewrite tags as ID3v2.3 UTF-16, recovering Shift-JIS text",
		Long: "Repair reads the title, artist and album of every file, decodes Shift-JIS text that was " +
			"stored as Latin-1, and writes the file back with a fresh ID3v2.3 UTF-16 tag. " +
			"Directories are processed recursively.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := core.ParseSource(opts.Source)
			if err != nil {
				return err
			}
			set, err := parseSet(opts.Set)
			if err != nil {
				return err
			}
			if opts.Folder != "" && opts.FolderAlbum {
				return fmt.Errorf("--folder and --folder-album are mutually exclusive")
			}
			if opts.OutDir != "" {
				if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
					return err
				}
			}

			paths, err := collectFiles(args)
			if err != nil {
				return err
			}
			inputs := make([]core.Input, 0, len(paths))
			for _, p := range paths {
				hint := opts.Folder
				if opts.FolderAlbum {
					hint = filepath.Base(filepath.Dir(p))
				}
				inputs = append(inputs, core.Input{
					Name:       p,
					FolderHint: hint,
					Source:     src,
					Set:        set,
					Load:       func() ([]byte, error) { return readFile(p) },
					Store: func(name string, out []byte) error {
						if opts.DryRun {
							return nil
						}
						dst := outputPath(p, name, opts.OutDir)
						if err := writeFile(dst, out); err != nil {
							return err
						}
						a.log.Debug("wrote", zap.String("file", dst), zap.Int("bytes", len(out)))
						return nil
					},
				})
			}

			results := a.repairer(opts.Transcode).RepairBatch(cmd.Context(), inputs)
			failed := 0
			for _, res := range results {
				if !res.OK() {
					failed++
				}
			}
			a.printer.PrintResults(results)
			if opts.DryRun {
				a.printer.PrintInfo("dry run: no files written")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Folder, "folder", "", "album name to apply to every file")
	f.BoolVar(&opts.FolderAlbum, "folder-album", false, "use each file's parent directory as its album")
	f.StringVar(&opts.Source, "source", opts.Source, "metadata source: tags, oracle or filename")
	f.StringArrayVar(&opts.Set, "set", nil, "override a field, e.g. --set Artist=Name (repeatable)")
	f.StringVarP(&opts.OutDir, "out-dir", "o", "", "write repaired files here instead of in place")
	f.BoolVar(&opts.DryRun, "dry-run", false, "resolve and report without writing")
	f.BoolVar(&opts.Transcode, "transcode", false, "convert WMA and other formats to MP3 with ffmpeg first")
	return cmd
}
