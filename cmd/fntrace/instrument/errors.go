// Package instrument - error types.
//
// Instrumentation itself has no failure mode: a function either gets
// rewritten or is skipped by the eligibility filter. Errors only arise at
// the file boundary (unparsable source, unprintable output), and those
// carry their source position so build output reads like compiler output:
//
//	main.go:42:15: expected declaration, found 'return'
package instrument

import (
	"fmt"
	"go/scanner"
)

// InstrumentError reports a file-level instrumentation failure with its
// source position.
type InstrumentError struct {
	File    string // Source file path
	Line    int    // Line number (1-indexed, 0 when unknown)
	Column  int    // Column number (1-indexed, 0 when unknown)
	Message string // What went wrong
}

// Error implements the error interface, formatting as file:line:column: message.
func (e *InstrumentError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// parseError converts a go/parser failure into an InstrumentError, keeping
// the first error's position when the parser produced a list.
func parseError(filename string, err error) error {
	if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
		first := list[0]
		return &InstrumentError{
			File:    first.Pos.Filename,
			Line:    first.Pos.Line,
			Column:  first.Pos.Column,
			Message: first.Msg,
		}
	}
	return &InstrumentError{File: filename, Message: err.Error()}
}
