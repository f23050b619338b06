// Package log configures the process-wide logrus logger, grounded on the
// teacher's pkg/flags.ConfigureAndParse level-parsing convention.
package log

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// EnvVar is the environment variable the CLI falls back to when --log-level
// is not passed explicitly.
const EnvVar = "BUILDCTL_LOG_LEVEL"

// Configure parses level (one of logrus's level names) and installs it as
// the process-wide log level. An empty level leaves the default (info)
// level in place.
func Configure(level string) error {
	if level == "" {
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log: invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)
	return nil
}
