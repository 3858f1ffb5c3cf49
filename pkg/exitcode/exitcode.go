// Package exitcode provides standardized exit codes for indexgate
package exitcode

// Exit codes for the indexgate CLI. Findings always exit with 1 so callers
// that only distinguish zero from non-zero keep working.
const (
	Success         = 0
	Findings        = 1
	ConfigError     = 2
	FileSystemError = 4
	TimeoutError    = 7
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case Findings:
		return "Validation findings reported"
	case ConfigError:
		return "Configuration error"
	case FileSystemError:
		return "File system error"
	case TimeoutError:
		return "Timeout error"
	default:
		return "Unknown error"
	}
}
