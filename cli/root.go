package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/codec"
	"github.com/ankit-chaubey/id3-surgery/core/config"
	"github.com/ankit-chaubey/id3-surgery/core/oracle"
	"github.com/ankit-chaubey/id3-surgery/core/repair"
)

// app carries state shared by every subcommand once the root has run.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	printer *core.Printer

	jsonOut bool
	verbose bool
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "surgery",
		Short: "Repair mojibake in ID3v2 tags and rewrite them as UTF-16",
		Long: "surgery reads ID3v2 title, artist and album frames, recovers Shift-JIS text that was " +
			"declared as Latin-1, and rewrites the tag as ID3v2.3 with UTF-16 text frames.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			a.printer = core.NewPrinter(a.jsonOut, a.verbose)
			a.printer.Writer = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print machine-readable JSON")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print source and encoding details")

	cmd.AddCommand(
		newRepairCommand(a),
		newInspectCommand(a),
		newGuessCommand(a),
		newTranscodeCommand(a),
		newSplitCommand(a),
		newServeCommand(a),
	)
	return cmd
}

// oracle returns the configured oracle client, or nil when no API key is set.
func (a *app) oracle() core.Oracle {
	if !a.cfg.OracleEnabled() {
		return nil
	}
	return oracle.New(a.cfg.OracleEndpoint, a.cfg.OracleAPIKey, a.cfg.OracleModel,
		oracle.WithLogger(a.log.Named("oracle")),
		oracle.WithHTTPClient(&http.Client{Timeout: a.cfg.OracleTimeout}))
}

func (a *app) codec() *codec.Service {
	return codec.New(codec.Config{
		FFmpegPath:      a.cfg.FFmpegPath,
		Bitrate:         a.cfg.MP3Bitrate,
		Timeout:         a.cfg.CodecTimeout,
		SilenceGap:      a.cfg.SilenceGap,
		SilenceThreshDB: a.cfg.SilenceThresh,
	}, a.log.Named("codec"))
}

func (a *app) repairer(withCodec bool) *repair.Repairer {
	opts := []repair.Option{
		repair.WithWorkers(a.cfg.WorkerCount()),
		repair.WithOracleTimeout(a.cfg.OracleTimeout),
	}
	if o := a.oracle(); o != nil {
		opts = append(opts, repair.WithOracle(o))
	}
	if withCodec {
		opts = append(opts, repair.WithCodec(a.codec()))
	}
	return repair.New(a.log.Named("repair"), opts...)
}

// Replaceable in tests.
var (
	readFile   = os.ReadFile
	renameFile = os.Rename
)

// writeFile replaces path with data through a synced temporary file in the
// same directory, so an interrupted write leaves the old file intact. An
// existing file keeps its permissions.
func writeFile(path string, data []byte) (err error) {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = renameFile(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
