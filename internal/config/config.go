// Package config resolves process-wide tunables from the environment once
// at startup, the way the teacher's pkg/vango/config.go resolves DevMode and
// EffectStrictMode.
package config

import (
	"os"
	"strconv"
)

// StrictMode governs how aggressively the reactive core validates itself.
type StrictMode int

const (
	// StrictOff drops render-time mutations; cmd/loom applies it the same
	// way as StrictWarn (the drop is logged). Hook-order violations are
	// raised in every mode.
	StrictOff StrictMode = iota
	// StrictWarn logs render-time mutations via slog and drops them instead
	// of aborting the flush.
	StrictWarn
	// StrictPanic raises the typed error (the default, in and out of dev
	// mode).
	StrictPanic
)

// Config is the resolved set of environment-driven tunables.
type Config struct {
	// DevMode is reported in cmd/loom's startup log; it does not change
	// Strict, whose default (StrictPanic, see Default) applies with or
	// without it. Hook-order checks always run. Mirrors the teacher's
	// vango.DevMode.
	DevMode bool

	// Strict governs render-time-mutation enforcement (LOOM_STRICT_MODE).
	Strict StrictMode

	// FastlaneThreshold is the minimum keyed-list length (spec §6) above
	// which the fast-lane reconciliation path is attempted.
	FastlaneThreshold int

	// BulkTextThreshold is the minimum count of uniform text-only children
	// above which fast-lane considers a bulk text-shift eligible.
	BulkTextThreshold int

	// MaxNestedRenders bounds re-renders of a single instance within one
	// flush before ErrInfiniteUpdateLoop trips (spec §4.1).
	MaxNestedRenders int
}

// Default returns the configuration with spec-documented defaults, before
// any environment overrides.
func Default() Config {
	return Config{
		DevMode:           false,
		Strict:            StrictPanic,
		FastlaneThreshold: 100,
		BulkTextThreshold: 10,
		MaxNestedRenders:  100,
	}
}

// FromEnv resolves a Config from the process environment, following the
// teacher's convention of one package-level resolution at startup rather
// than scattered os.Getenv calls.
func FromEnv() Config {
	cfg := Default()

	if v, ok := os.LookupEnv("LOOM_DEV_MODE"); ok {
		cfg.DevMode = parseBool(v, cfg.DevMode)
	}
	if v, ok := os.LookupEnv("LOOM_STRICT_MODE"); ok {
		switch v {
		case "off":
			cfg.Strict = StrictOff
		case "warn":
			cfg.Strict = StrictWarn
		case "panic":
			cfg.Strict = StrictPanic
		}
	}
	if v, ok := os.LookupEnv("FASTLANE_THRESHOLD"); ok {
		cfg.FastlaneThreshold = parseInt(v, cfg.FastlaneThreshold)
	}
	if v, ok := os.LookupEnv("BULK_TEXT_THRESHOLD"); ok {
		cfg.BulkTextThreshold = parseInt(v, cfg.BulkTextThreshold)
	}
	if v, ok := os.LookupEnv("LOOM_MAX_NESTED_RENDERS"); ok {
		cfg.MaxNestedRenders = parseInt(v, cfg.MaxNestedRenders)
	}

	return cfg
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
