package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"upscale_backend/core"
	"upscale_backend/imaging"
)

// printConfigError prints a configuration problem and what to change.
func printConfigError(w io.Writer, err error) {
	errColor := color.New(color.FgRed, color.Bold)
	if ce, ok := core.IsConfigError(err); ok {
		errColor.Fprintf(w, "✗ %s\n", ce.Message)
		if ce.Err != nil {
			color.New(color.FgHiBlack).Fprintf(w, "    └─ %v\n", ce.Err)
		}
		if ce.Action != "" {
			color.New(color.FgYellow).Fprintf(w, "  → %s\n", ce.Action)
		}
		return
	}
	errColor.Fprintf(w, "✗ %v\n", err)
}

// printSummary prints the outcome of one run.
func printSummary(w io.Writer, r *runReport, err error) {
	fmt.Fprintln(w)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(w, "━━━ Upscale Failed ━━━")
	} else {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "━━━ Upscale Complete ━━━")
	}
	fmt.Fprintln(w)

	if r.Options != nil {
		printImageLine(w, "source", r.Options.source, r.Source)
		printImageLine(w, "guide", r.Options.guide, r.Guide)
	}
	if r.Result != nil && r.Options != nil {
		printImageLine(w, "output", r.Options.out, r.Result.Image)
		if r.Options.preview != "" && err == nil {
			printStep(w, true, "preview", r.Options.preview)
		}
	}

	dim := color.New(color.FgHiBlack)
	if r.Result != nil {
		s := r.Result.Stats
		fmt.Fprintf(w, "  tiles %d, splits %d, pre-splits %d, out of memory %d, depth %d\n",
			s.Tiles, s.Splits, s.PreSplits, s.OutOfMemory, s.MaxDepth)
		fmt.Fprintf(w, "  peak device memory %s on %s\n", core.FormatBytes(s.PeakBytes), r.Result.Device)
	}
	dim.Fprintf(w, "  %d iterations, %s mode, %v\n", r.Params.Iterations, r.Mode, r.Duration.Round(time.Millisecond))
	if r.ID != "" {
		dim.Fprintf(w, "  run %s\n", r.ID)
	}

	if err != nil {
		fmt.Fprintln(w)
		color.New(color.FgRed).Fprintf(w, "  └─ %v\n", err)
	}
	fmt.Fprintln(w)
}

func printImageLine(w io.Writer, label, path string, img *imaging.Image) {
	if img == nil {
		printStep(w, false, label, path)
		return
	}
	h, wd, c := img.Shape()
	printStep(w, true, label, fmt.Sprintf("%s  %s", core.FormatShape(h, wd, c), path))
}

func printStep(w io.Writer, ok bool, label, detail string) {
	if ok {
		color.New(color.FgGreen).Fprintf(w, "  ✓ %-7s", label)
	} else {
		color.New(color.FgHiBlack).Fprintf(w, "  ○ %-7s", label)
	}
	fmt.Fprintf(w, " %s\n", detail)
}
