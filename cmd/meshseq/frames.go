package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Faultbox/meshseq/pkg/frames"
)

func cmdFrames(args []string) error {
	cfg, _, err := loadConfig("frames", args)
	if err != nil {
		return err
	}
	if cfg.Input.Pattern == "" {
		fmt.Fprintln(os.Stderr, "Usage: meshseq frames <pattern> [--root dir] [--step n] [--fps n]")
		return errUsage
	}

	found, err := frames.Discover(cfg.Input.Pattern, frames.Options{
		Root:     cfg.Input.Root,
		Static:   cfg.Input.Static,
		Step:     cfg.Input.Step,
		FPS:      cfg.FrameRate(),
		TimeStep: cfg.Time.TimeStep,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQUENCE\tFRAME\tTIME\tPATH")
	for _, f := range found {
		name := f.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%s\n", name, f.Frame, f.Time, f.Path)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d frames in %d sequences\n", len(found), len(frames.Sequences(found)))
	return nil
}
