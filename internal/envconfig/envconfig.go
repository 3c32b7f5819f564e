// Package envconfig exposes the environment flags that gate optional device
// features. Flags are read once on first use and cached for the process
// lifetime.
package envconfig

import (
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Flags are the recognized environment switches.
type Flags struct {
	// DisjointTimer is the hardware timing support level: 0 disables
	// per-program timing (scopes fall back to whole-scope wall clock),
	// 1 enables per-program timing around a completion barrier.
	DisjointTimer int `envconfig:"FLARE_DISJOINT_TIMER" default:"1"`

	// ForceSyncReads disables the non-blocking download path; asynchronous
	// reads degrade to the blocking one.
	ForceSyncReads bool `envconfig:"FLARE_FORCE_SYNC_READS" default:"false"`

	// MinDeviceVersion is the minimum device API version required at
	// context construction. Construction fails below it.
	MinDeviceVersion int `envconfig:"FLARE_MIN_DEVICE_VERSION" default:"1"`

	// LogLevel sets the zerolog level for backend loggers.
	LogLevel string `envconfig:"FLARE_LOG_LEVEL" default:"info"`
}

var (
	once  sync.Once
	flags Flags
)

// Get returns the cached process flags, reading the environment on first
// call.
func Get() Flags {
	once.Do(func() {
		if err := envconfig.Process("", &flags); err != nil {
			// Unparseable values fall back to defaults rather than killing
			// construction; the flags only gate optional features.
			flags = Flags{DisjointTimer: 1, MinDeviceVersion: 1, LogLevel: "info"}
		}
	})
	return flags
}

// ZerologLevel maps the LogLevel flag to a zerolog level.
func (f Flags) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(f.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
