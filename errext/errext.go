// Package errext contains extensions for normal Go errors that are used by the
// devtools command: user hints and process exit codes.
package errext
