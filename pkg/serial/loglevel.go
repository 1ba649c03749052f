package serial

import "strings"

// LogLevel is the verbosity threshold of the console debug logger.
// Messages below the current level are discarded.
type LogLevel int

// Log levels, in increasing order of severity.
const (
	LogInfo LogLevel = iota
	LogDebug
	LogWarning
	LogError
	LogFatal
	LogOff

	numLogLevels
)

var logLevelNames = [numLogLevels]string{
	LogInfo:    "info",
	LogDebug:   "debug",
	LogWarning: "warning",
	LogError:   "error",
	LogFatal:   "fatal",
	LogOff:     "off",
}

// String implements fmt.Stringer.
func (l LogLevel) String() string {
	if l.IsValid() {
		return logLevelNames[l]
	}
	return "invalid"
}

// IsValid indicates l is a known level.
func (l LogLevel) IsValid() bool {
	return l >= LogInfo && l < numLogLevels
}

// LogLevelNames lists all level names in order.
func LogLevelNames() []string {
	return append([]string(nil), logLevelNames[:]...)
}

// ParseLogLevel parses a level name, case insensitive.
func ParseLogLevel(name string) (LogLevel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for n, s := range logLevelNames {
		if s == name {
			return LogLevel(n), nil
		}
	}
	if name == "warn" {
		return LogWarning, nil
	}
	return LogInfo, &InvalidLogLevelError{Name: name}
}
