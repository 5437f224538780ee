// Package exitcodes contains the process exit codes of the devtools command.
package exitcodes

// ExitCode is a process exit code. Values stay between 0 and 125 except for
// GoPanic, which mirrors the runtime's own convention for crashes.
type ExitCode uint8

// list of exit codes used by devtools
const (
	InvalidConfig        ExitCode = 104
	ExternalAbort        ExitCode = 105
	BrowserUnreachable   ExitCode = 110
	BrowserRequestFailed ExitCode = 111
	CDPFailed            ExitCode = 112
	GoPanic              ExitCode = 255
)
