// Package trace provides the runtime output primitive for instrumented code.
//
// See doc.go for detailed documentation and examples.
package trace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fntrace/fntrace/internal/trace/cformat"
)

// OutEnv names the environment variable that redirects trace output to a
// file. The fntrace tool sets it when a trace destination is configured.
const OutEnv = "FNTRACE_OUT"

var (
	mu  sync.Mutex
	out io.Writer = os.Stdout
)

func init() {
	path := os.Getenv(OutEnv)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Fall back to stdout rather than losing the trace.
		fmt.Fprintf(os.Stderr, "fntrace: cannot open %s: %v\n", path, err)
		return
	}
	out = f
}

// Printf is the output primitive referenced by every injected trace call.
//
// The fntrace tool inserts calls to this function automatically; manual
// calls are typically not needed. The format string uses C printf notation
// (the instrumenter emits %lld for zero-extended integers) and is translated
// before formatting. One call produces one trace line.
//
// Example (automatic instrumentation):
//
//	// Original code:
//	func add(a, b int) int { return a + b }
//
//	// Instrumented code:
//	func add(a, b int) int {
//		__fntrace_fn := "add"
//		__fntrace.Printf(">> %s\n", __fntrace_fn)
//		__fntrace.Printf("   %s(arg%d)=%lld\n", __fntrace_fn, 0, uint64(uint(a)))
//		__fntrace.Printf("   %s(arg%d)=%lld\n", __fntrace_fn, 1, uint64(uint(b)))
//		var __fntrace_ret0 int = a + b
//		__fntrace.Printf("<< %s returns %lld\n", __fntrace_fn, uint64(uint(__fntrace_ret0)))
//		return __fntrace_ret0
//	}
//
// Every instrumented call site in a build resolves to this one function. The
// writer is guarded by a mutex so goroutines in the traced program cannot
// interleave partial lines.
func Printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, cformat.Translate(format), args...)
}

// SetOutput redirects trace output to w. It is intended for tests and for
// programs that want to capture their own trace.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}
