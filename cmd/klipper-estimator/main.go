// Command klipper-estimator estimates how long a gcode file will take a
// Klipper-driven printer to run, using the same trapezoidal-velocity
// lookahead Klipper's own firmware plans with, and can rewrite a file's
// slicer-embedded time markers with the times it computes.
package main

import (
	"fmt"
	"os"
)

const toolVersion = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "estimate":
		err = runEstimate(os.Args[2:])
	case "dump-moves":
		err = runDumpMoves(os.Args[2:])
	case "post-process":
		err = runPostProcess(os.Args[2:])
	case "dump-config":
		err = runDumpConfig(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: klipper-estimator <subcommand> [flags] [args]

Subcommands:
  estimate <file|->       print aggregate time statistics
  dump-moves <file|->     dump each planned move
  post-process <path>     rewrite a file's slicer time markers in place
  dump-config             emit the effective configuration as JSON

Common flags (all subcommands):
  -config_file <path>
  -config_moonraker_url <url>
  -config_moonraker_api_key <key>
  -config_moonraker_ignore_error
  -config_moonraker_cache_file <path>
  -c <key>=<value>        (repeatable; applied after file/Moonraker config)`)
}
