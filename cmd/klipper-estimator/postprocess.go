package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Annex-Engineering/klipper-estimator/postprocess"
)

func runPostProcess(args []string) error {
	fs := flag.NewFlagSet("post-process", flag.ExitOnError)
	cf := registerCommonFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("post-process: expected exactly one file path")
	}
	path := fs.Arg(0)

	limits, err := loadLimits(cf)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening gcode file failed: %w", err)
	}
	rn := postprocess.NewRunner(limits)
	result, err := rn.Estimate(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("gcode read: %w", err)
	}

	return postprocess.ApplyChanges(path, result, rn.Interceptor(), toolVersion)
}
