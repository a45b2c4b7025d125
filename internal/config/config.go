// Package config resolves the runtime's operational knobs: the four
// environment variables spec.md §6 defines, plus an optional yaml
// override file for targets that can't easily set environment variables
// (e.g. embedded in a larger test harness that controls its own env).
//
// The yaml file overrides the pipe fd numbers and the names of the four
// canonical environment variables; a value not given in the file keeps
// its compiled-in default. The knob values themselves are always read
// from the process environment. There is no command-line flag layer.
package config

import (
	"os"

	env "github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Names of the environment variables from spec.md §6.
const (
	EnvShmID         = "__AFL_SHM_ID"
	EnvPersistent    = "__AFL_PERSISTENT"
	EnvDeferForksrv  = "__AFL_DEFER_FORKSRV"
	EnvInstRatio     = "AFL_INST_RATIO"
	EnvQuiet         = "AFL_QUIET"
	EnvMonitorSocket = "AFLRT_MONITOR_SOCK"
	EnvCoverageLog   = "AFLRT_COV_LOG"
	EnvCmpLog        = "AFLRT_CMPLOG"
)

// File overrides the four canonical environment-variable names and the
// pipe fd numbers, loaded from an optional yaml document (default path
// "aflrt.yaml", overridable via AFLRT_CONFIG).
type File struct {
	ControlFD     int    `yaml:"control_fd"`
	StatusFD      int    `yaml:"status_fd"`
	ShmIDVar      string `yaml:"shm_id_var"`
	PersistentVar string `yaml:"persistent_var"`
	DeferVar      string `yaml:"defer_var"`
	InstRatioVar  string `yaml:"inst_ratio_var"`
}

// defaultFile holds the compiled-in defaults, matching spec.md §6 and
// original_source/src/config.h.
func defaultFile() File {
	return File{
		ControlFD:     198,
		StatusFD:      199,
		ShmIDVar:      EnvShmID,
		PersistentVar: EnvPersistent,
		DeferVar:      EnvDeferForksrv,
		InstRatioVar:  EnvInstRatio,
	}
}

// Load reads path (default "aflrt.yaml", or $AFLRT_CONFIG if set) and
// merges it over the compiled-in defaults. A missing file is not an
// error — it just means "use the defaults" (the common case: most
// instrumented targets never ship a config file at all).
func Load() (File, error) {
	f := defaultFile()

	path := env.Str("AFLRT_CONFIG", "aflrt.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, err
	}

	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, err
	}
	return f, nil
}

// Runtime is the resolved set of knobs the aflrt package's init uses:
// environment variables read through github.com/xyproto/env/v2 under the
// (possibly yaml-overridden) names in f, plus the fd numbers from f.
type Runtime struct {
	ControlFD     int
	StatusFD      int
	ShmID         string
	Persistent    bool
	DeferForksrv  bool
	InstRatio     string
	Quiet         bool
	MonitorSocket string
	CoverageLog   string
	CmpLog        bool
}

// Resolve builds a Runtime from f and the process environment.
func Resolve(f File) Runtime {
	return Runtime{
		ControlFD:     f.ControlFD,
		StatusFD:      f.StatusFD,
		ShmID:         env.Str(f.ShmIDVar, ""),
		Persistent:    env.Bool(f.PersistentVar),
		DeferForksrv:  env.Bool(f.DeferVar),
		InstRatio:     env.Str(f.InstRatioVar, ""),
		Quiet:         env.Bool(EnvQuiet),
		MonitorSocket: env.Str(EnvMonitorSocket, ""),
		CoverageLog:   env.Str(EnvCoverageLog, ""),
		CmpLog:        env.Bool(EnvCmpLog),
	}
}
