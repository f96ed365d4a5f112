package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/Annex-Engineering/klipper-estimator/config"
)

func runDumpConfig(args []string) error {
	fs := flag.NewFlagSet("dump-config", flag.ExitOnError)
	cf := registerCommonFlags(fs)
	fs.Parse(args)

	limits, err := loadLimits(cf)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(config.FromLimits(limits))
}
