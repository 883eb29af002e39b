package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// StackEntry is one frame of a runtime error trace.
type StackEntry struct {
	Function string
	Line     int
}

// RuntimeError is a fatal error raised by the interpreter. It terminates
// the current Run or Call.
type RuntimeError struct {
	Message string
	Trace   []StackEntry // innermost frame first
	cause   error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, entry := range e.Trace {
		fmt.Fprintf(&b, "\n[line %d] in %s", entry.Line, entry.Function)
	}
	return b.String()
}

// Unwrap returns the underlying cause, such as context.Canceled.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

// RaisedError reports a script error value that reached the embedder
// without being handled.
type RaisedError struct {
	Value Value
	Text  string
}

func (e *RaisedError) Error() string {
	return "uncaught error: " + e.Text
}

// ErrStackOverflow is the cause of a RuntimeError raised when the frame or
// value stack limit is exceeded.
var ErrStackOverflow = errors.New("stack overflow")

// stackOverflow is panicked by push when the value stack cannot grow, and
// recovered by the interpreter loop.
type stackOverflow struct{}

// errorf builds a RuntimeError carrying the current call stack.
func (vm *VM) errorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Trace: vm.trace()}
}

// wrapError converts an error from a builtin into a RuntimeError.
func (vm *VM) wrapError(err error) *RuntimeError {
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		if rerr.Trace == nil {
			rerr.Trace = vm.trace()
		}
		return rerr
	}
	return &RuntimeError{Message: err.Error(), Trace: vm.trace(), cause: err}
}

func (vm *VM) trace() []StackEntry {
	entries := make([]StackEntry, 0, vm.fc)
	for i := vm.fc - 1; i >= 0; i-- {
		f := &vm.frames[i]
		offset := f.ip - 1
		if offset < 0 {
			offset = 0
		}
		line, _ := f.fn.Chunk.GetSourceLocation(uint32(offset))
		entries = append(entries, StackEntry{Function: f.fn.DisplayName(), Line: int(line)})
	}
	return entries
}
