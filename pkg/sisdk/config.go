package sisdk

import (
	"os"
	"path/filepath"

	"github.com/sisdk/sisdk/pkg/level"
)

// Config holds the settings NewWithConfig needs to build a Client,
// mirroring pkg/omni/config.go's Config/DefaultConfig/Validate shape:
// a typed struct with defaults filled in by Validate, not by the zero
// value alone.
type Config struct {
	// Hostname and AppName populate the LogHeader packet every
	// metadata-emitting protocol sends on connect. Left empty, Validate
	// fills them from the OS.
	Hostname string
	AppName  string

	// Connections is the connections-string DSL (spec.md §4.B) describing
	// one or more sink protocols to build.
	Connections string

	// Enabled gates whether any protocol actually connects; false is
	// useful for constructing a Client whose protocols are wired but
	// dormant (tests, or an application-level enable/disable toggle).
	Enabled bool
}

// DefaultConfig returns a Config with Enabled=true and empty
// Hostname/AppName/Connections; Validate fills in the OS-derived
// defaults.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Validate fills in OS-derived defaults and reports any Config-level
// mistake that isn't a connections-string parse error (those surface
// from NewFromConnections/NewWithConfig directly as KindInvalidConnections).
func (c *Config) Validate() error {
	if c.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			c.Hostname = h
		} else {
			c.Hostname = "unknown-host"
		}
	}
	if c.AppName == "" {
		if len(os.Args) > 0 {
			c.AppName = filepath.Base(os.Args[0])
		} else {
			c.AppName = "unknown-app"
		}
	}
	return nil
}

// defaultLevel is the minimum level a protocol observes when its
// connections-string options don't specify one.
const defaultLevel = level.Debug
