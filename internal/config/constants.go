// Package config holds process-wide constants for the cosh toolchain.
package config

// Version is the current cosh-go version.
var Version = "0.1.0"

// SourceFileExt is the recognized source file extension.
const SourceFileExt = ".cosh"

// BytecodeFileExt is the extension used for compiled chunk files.
const BytecodeFileExt = ".chc"

// HasSourceExt returns true if path ends with the recognized source extension.
func HasSourceExt(path string) bool {
	return len(path) >= len(SourceFileExt) && path[len(path)-len(SourceFileExt):] == SourceFileExt
}

// RuntimeLibPaths are tried, in order, when loading the standard runtime
// library at startup (unless --no-rt is given).
var RuntimeLibPaths = []string{
	"/usr/local/lib/cosh/rt.chc",
	"./rt.chc",
}

// HistoryFileName is the REPL history file, relative to the working directory.
const HistoryFileName = ".cosh_history"
