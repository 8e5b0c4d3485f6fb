package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/id3-surgery/core"
	"github.com/ankit-chaubey/id3-surgery/core/audio"
	"github.com/ankit-chaubey/id3-surgery/core/id3"
)

func newInspectCommand(a *app) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Show what players see next to what repair would write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				if m, err := audio.View(p, data); err == nil {
					a.printer.PrintMetadata(m)
				} else {
					core.PrintError(p + ": " + err.Error())
				}
				a.printer.PrintInfo("── repaired ──")
				a.printer.PrintResolved(p, id3.Read(p, data, folder))
				a.printer.PrintInfo("")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "album hint applied to the repaired view")
	return cmd
}
