package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Annex-Engineering/klipper-estimator/config"
	"github.com/Annex-Engineering/klipper-estimator/planner"
)

func writeConfigFile(path string, f config.File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// commonFlags is the set of flags every subcommand accepts, mirroring the
// original tool's top-level Opts: where to load printer limits from, and
// overrides to apply on top.
type commonFlags struct {
	configFile           string
	moonrakerURL         string
	moonrakerAPIKey      string
	moonrakerIgnoreError bool
	moonrakerCacheFile   string
	overrides            overrideList
}

// overrideList collects repeated -c key=value flags in order.
type overrideList []string

func (o *overrideList) String() string { return strings.Join(*o, ",") }
func (o *overrideList) Set(s string) error {
	*o = append(*o, s)
	return nil
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configFile, "config_file", "", "path to a local JSON printer-limits config file")
	fs.StringVar(&cf.moonrakerURL, "config_moonraker_url", "", "base URL of a Moonraker instance to query for printer limits")
	fs.StringVar(&cf.moonrakerAPIKey, "config_moonraker_api_key", "", "Moonraker API key, if required")
	fs.BoolVar(&cf.moonrakerIgnoreError, "config_moonraker_ignore_error", false, "fall back to defaults/cache instead of failing if Moonraker is unreachable")
	fs.StringVar(&cf.moonrakerCacheFile, "config_moonraker_cache_file", "", "path to cache the last successful Moonraker config response")
	fs.Var(&cf.overrides, "c", "key=value override, applied after the config is loaded (repeatable)")
	return cf
}

// loadLimits resolves printer limits the same way the original's
// Opts::load_config does: local file config takes precedence if given,
// otherwise Moonraker is queried if a URL was given, otherwise the
// built-in defaults are used. -c overrides always apply last.
func loadLimits(cf *commonFlags) (planner.Limits, error) {
	var limits planner.Limits

	switch {
	case cf.configFile != "":
		data, err := os.ReadFile(cf.configFile)
		if err != nil {
			return planner.Limits{}, fmt.Errorf("config: read %s: %w", cf.configFile, err)
		}
		f, err := config.Load(data)
		if err != nil {
			return planner.Limits{}, err
		}
		limits = f.ToLimits()

	case cf.moonrakerURL != "":
		client := &http.Client{Timeout: 10 * time.Second}
		mc, err := config.QueryMoonraker(client, cf.moonrakerURL, cf.moonrakerAPIKey)
		switch {
		case err == nil:
			limits = mc.Limits
			if cf.moonrakerCacheFile != "" {
				_ = cacheMoonrakerLimits(cf.moonrakerCacheFile, limits)
			}
		case cf.moonrakerCacheFile != "":
			cached, cacheErr := loadCachedMoonrakerLimits(cf.moonrakerCacheFile)
			if cacheErr != nil {
				if cf.moonrakerIgnoreError {
					limits = planner.DefaultLimits()
				} else {
					return planner.Limits{}, fmt.Errorf("moonraker: %w (cache also unavailable: %v)", err, cacheErr)
				}
			} else {
				limits = cached
			}
		case cf.moonrakerIgnoreError:
			limits = planner.DefaultLimits()
		default:
			return planner.Limits{}, err
		}

	default:
		limits = planner.DefaultLimits()
	}

	if err := applyOverrides(&limits, cf.overrides); err != nil {
		return planner.Limits{}, err
	}
	return limits, nil
}

func cacheMoonrakerLimits(path string, l planner.Limits) error {
	return writeConfigFile(path, config.FromLimits(l))
}

func loadCachedMoonrakerLimits(path string) (planner.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return planner.Limits{}, err
	}
	f, err := config.Load(data)
	if err != nil {
		return planner.Limits{}, err
	}
	return f.ToLimits(), nil
}

// applyOverrides applies -c key=value flags directly to limits, so that
// overrides still take effect regardless of whether limits came from a
// file, Moonraker, or the built-in defaults.
func applyOverrides(l *planner.Limits, kvs []string) error {
	for _, kv := range kvs {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			return fmt.Errorf("invalid override %q, want key=value", kv)
		}
		key, raw := kv[:eq], kv[eq+1:]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("override %q: %w", kv, err)
		}
		switch key {
		case "max_velocity":
			l.SetMaxVelocity(v)
		case "max_acceleration":
			l.SetMaxAcceleration(v)
		case "max_accel_to_decel":
			l.SetMaxAccelToDecel(v)
		case "square_corner_velocity":
			l.SetSquareCornerVelocity(v)
		case "instant_corner_velocity":
			l.SetInstantCornerVelocity(v)
		case "mm_per_arc_segment":
			l.MMPerArcSegment = v
		default:
			return fmt.Errorf("unknown override key %q", key)
		}
	}
	return nil
}
