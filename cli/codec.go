package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/codec"
)

func newGuessCommand(a *app) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "guess <filename>",
		Short: "Ask the metadata oracle about a file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if folder == "" {
				folder = filepath.Base(filepath.Dir(args[0]))
				if folder == "." {
					folder = ""
				}
			}
			g, err := a.repairer(false).Guess(cmd.Context(), args[0], folder)
			if err != nil {
				if errors.Is(err, core.ErrNoOracle) {
					return fmt.Errorf("%w: set SURGERY_ORACLE_API_KEY", err)
				}
				return err
			}
			a.printer.PrintGuess(args[0], g)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "parent folder name passed as context")
	return cmd
}

func newTranscodeCommand(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "transcode <file>...",
		Short: "Convert audio to MP3 with ffmpeg",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.codec()
			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				out, err := svc.Transcode(cmd.Context(), p, data)
				if err != nil {
					return err
				}
				dst := outputPath(p, strings.TrimSuffix(p, filepath.Ext(p))+".mp3", outDir)
				if err := writeFile(dst, out); err != nil {
					return err
				}
				a.printer.PrintSuccess(p + " → " + dst)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default: next to the input)")
	return cmd
}

func newSplitCommand(a *app) *cobra.Command {
	var (
		at      string
		silence bool
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Cut a recording into tracks at given times or at silence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (at == "") == !silence {
				return fmt.Errorf("exactly one of --at or --silence is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			svc := a.codec()

			var segs []core.Segment
			if silence {
				segs, err = svc.SplitOnSilence(cmd.Context(), args[0], data)
			} else {
				offsets, perr := codec.ParseOffsets(at)
				if perr != nil {
					return perr
				}
				segs, err = svc.SplitAt(cmd.Context(), args[0], data, offsets)
			}
			if err != nil {
				return err
			}

			dir := outDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for _, s := range segs {
				dst := filepath.Join(dir, s.Name)
				if err := writeFile(dst, s.Data); err != nil {
					return err
				}
				a.printer.PrintSuccess(dst)
			}
			a.printer.PrintInfo(fmt.Sprintf("%d segments", len(segs)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&at, "at", "", "comma-separated cut times, e.g. 3:15,7:02")
	f.BoolVar(&silence, "silence", false, "cut in the middle of silent gaps")
	f.StringVarP(&outDir, "out-dir", "o", "", "output directory (default: next to the input)")
	return cmd
}
