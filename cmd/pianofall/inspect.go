package main

import (
	"fmt"
	"io"

	pianofall "github.com/cbegin/pianofall-go"
	"github.com/spf13/cobra"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.mid>",
		Short: "Prints the tempo, meter and sections of a MIDI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr := pianofall.New(pianofall.OptionsFromConfig(root.cfg)...)
			if err := tr.LoadFile(args[0]); err != nil {
				return fmt.Errorf("load %q: %w", args[0], err)
			}
			return inspect(cmd.OutOrStdout(), tr)
		},
	}
}

func inspect(w io.Writer, tr *pianofall.Trainer) error {
	md, err := tr.Metadata()
	if err != nil {
		return err
	}
	measures := len(md.MeasureBoundaries) - 1
	if measures < 0 {
		measures = 0
	}
	fmt.Fprintf(w, "tempo:     %.0f BPM\n", md.BPM)
	fmt.Fprintf(w, "meter:     %d/%d\n", md.Numerator, md.Denominator)
	fmt.Fprintf(w, "notes:     %d\n", md.NoteCount)
	fmt.Fprintf(w, "measures:  %d\n", measures)
	fmt.Fprintf(w, "duration:  %.2fs\n", md.Duration)
	for _, s := range tr.Sections() {
		fmt.Fprintf(w, "%-8s %7.2fs - %7.2fs\n", s.Label, s.Start, s.End)
	}
	return nil
}
