// Package instrument - test suite for the instrumentation engine.
//
// These tests validate the engine's ability to:
//  1. Parse and type-check Go source files
//  2. Inject required imports (trace runtime, unsafe)
//  3. Rewrite function bodies with entry, argument, and exit traces
//  4. Leave ineligible functions untouched
//
// Each test feeds a small source snippet through Source and inspects the
// printed output, the way instrumented code would reach the build.
package instrument

import (
	"strings"
	"testing"
)

// TestSource_SimpleFunction tests the canonical transformation: a two-int
// function with one return.
//
//	func add(a, b int) int { return a + b }
//
// Expected:
//   - Runtime import injected under the reserved alias
//   - Name label as the first body statement
//   - Entry trace, one argument trace per argument
//   - Return operand hoisted and traced through the integer template
func TestSource_SimpleFunction(t *testing.T) {
	input := `package main

func add(a, b int) int {
	return a + b
}

func main() {
	_ = add(2, 5)
}
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if !result.Changed {
		t.Fatalf("Changed = false, want true")
	}
	if !strings.Contains(result.Code, RuntimeImportPath) {
		t.Errorf("Output missing runtime import")
	}
	if !strings.Contains(result.Code, `__fntrace_fn := "add"`) {
		t.Errorf("Output missing name label for add")
	}
	if !strings.Contains(result.Code, ">> %s") {
		t.Errorf("Output missing entry trace template")
	}
	if !strings.Contains(result.Code, "uint64(uint(a))") {
		t.Errorf("Output missing zero-extension of argument a")
	}
	if !strings.Contains(result.Code, "uint64(uint(b))") {
		t.Errorf("Output missing zero-extension of argument b")
	}
	if !strings.Contains(result.Code, "var __fntrace_ret0 int = a + b") {
		t.Errorf("Output missing hoisted return value")
	}
	if !strings.Contains(result.Code, "return __fntrace_ret0") {
		t.Errorf("Output missing rewritten return")
	}

	if result.Stats.FunctionsInstrumented != 2 {
		t.Errorf("Stats.FunctionsInstrumented = %d, want 2 (add and main)", result.Stats.FunctionsInstrumented)
	}
	if result.Stats.ArgTraces != 2 {
		t.Errorf("Stats.ArgTraces = %d, want 2", result.Stats.ArgTraces)
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

// TestSource_ImportInjection tests that existing imports are preserved and
// the runtime import joins them in grouped syntax.
func TestSource_ImportInjection(t *testing.T) {
	input := `package main

import "fmt"

func greet(name string) {
	fmt.Println("hello", name)
}
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if !strings.Contains(result.Code, `"fmt"`) {
		t.Errorf("Output missing existing fmt import")
	}
	if !strings.Contains(result.Code, RuntimeImportPath) {
		t.Errorf("Output missing runtime import")
	}
	if !strings.Contains(result.Code, "import (") {
		t.Errorf("Output should use grouped import syntax")
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

// TestSource_UnsafeImportOnlyForPointers tests that the unsafe import is
// injected exactly when a pointer value gets traced.
func TestSource_UnsafeImportOnlyForPointers(t *testing.T) {
	withPointer := `package main

func deref(p *int) int {
	return *p
}
`
	result, err := Source("test.go", withPointer, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if !strings.Contains(result.Code, `"unsafe"`) {
		t.Errorf("Output missing unsafe import for pointer argument")
	}
	if !strings.Contains(result.Code, "unsafe.Pointer(p)") {
		t.Errorf("Output missing opaque pointer cast")
	}

	withoutPointer := `package main

func double(x int) int {
	return x * 2
}
`
	result, err = Source("test.go", withoutPointer, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if strings.Contains(result.Code, `"unsafe"`) {
		t.Errorf("Output has unsafe import with no pointer value in sight")
	}
}

// TestSource_DoubleRun tests that re-instrumenting already instrumented
// output changes nothing.
//
// The second run must see the injected name label, skip every function, and
// report Changed = false. Without this guard a build over pre-instrumented
// sources would double every trace line.
func TestSource_DoubleRun(t *testing.T) {
	input := `package main

func add(a, b int) int {
	return a + b
}
`

	first, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("first Source failed: %v", err)
	}
	if !first.Changed {
		t.Fatalf("first run: Changed = false, want true")
	}

	second, err := Source("test.go", first.Code, Options{})
	if err != nil {
		t.Fatalf("second Source failed: %v", err)
	}

	if second.Changed {
		t.Errorf("second run: Changed = true, want false")
	}
	if second.Stats.FunctionsInstrumented != 0 {
		t.Errorf("second run instrumented %d functions, want 0", second.Stats.FunctionsInstrumented)
	}
	if second.Stats.InstrumentedSkipped != 1 {
		t.Errorf("second run: InstrumentedSkipped = %d, want 1", second.Stats.InstrumentedSkipped)
	}
	if second.Code != first.Code {
		t.Errorf("second run altered the code")
	}
}

// TestSource_Method tests that a method traces under TypeName.MethodName
// with the receiver as argument 0.
func TestSource_Method(t *testing.T) {
	input := `package main

type Counter struct {
	n int
}

func (c *Counter) Add(delta int) int {
	c.n += delta
	return c.n
}
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if !strings.Contains(result.Code, `__fntrace_fn := "Counter.Add"`) {
		t.Errorf("Output missing method display name")
	}
	// Receiver is argument 0, a pointer.
	if !strings.Contains(result.Code, "unsafe.Pointer(c)") {
		t.Errorf("Output missing receiver pointer trace")
	}
	if result.Stats.ArgTraces != 2 {
		t.Errorf("Stats.ArgTraces = %d, want 2 (receiver + delta)", result.Stats.ArgTraces)
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

// TestSource_UnnamedParameters tests that unnamed and blank parameters keep
// their argument slots and report through the aggregate template.
func TestSource_UnnamedParameters(t *testing.T) {
	input := `package main

func handle(_ string, n int) int {
	return n
}
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	// Blank parameter occupies slot 0, n is slot 1.
	if !strings.Contains(result.Code, "uint64(uint(n))") {
		t.Errorf("Output missing trace of named parameter n")
	}
	if result.Stats.ArgTraces != 2 {
		t.Errorf("Stats.ArgTraces = %d, want 2", result.Stats.ArgTraces)
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

// TestSource_SyntaxError tests that invalid source fails with a positioned
// error rather than corrupt output.
func TestSource_SyntaxError(t *testing.T) {
	input := `package main

func main() {
	this is not valid Go code
}
`

	_, err := Source("test.go", input, Options{})
	if err == nil {
		t.Fatalf("Source should fail on invalid syntax")
	}
	if !strings.Contains(err.Error(), "test.go:") {
		t.Errorf("Error should carry the source position: %v", err)
	}
}

// TestSource_NoFunctions tests that a file with nothing to instrument
// reports Changed = false and stays import-free.
func TestSource_NoFunctions(t *testing.T) {
	input := `package main

const answer = 42

var greeting = "hello"
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if result.Changed {
		t.Errorf("Changed = true for a file with no functions")
	}
	if strings.Contains(result.Code, RuntimeImportPath) {
		t.Errorf("Runtime import injected with nothing instrumented")
	}
}

// TestSource_SkipPrefixes tests the configured exclusion list.
func TestSource_SkipPrefixes(t *testing.T) {
	input := `package main

func debugDump() {}

func work() {}
`

	result, err := Source("test.go", input, Options{SkipPrefixes: []string{"debug"}})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if strings.Contains(result.Code, `"debugDump"`) {
		t.Errorf("Configured-skip function was instrumented")
	}
	if !strings.Contains(result.Code, `__fntrace_fn := "work"`) {
		t.Errorf("Non-matching function was not instrumented")
	}
	if result.Stats.ConfiguredSkipped != 1 {
		t.Errorf("Stats.ConfiguredSkipped = %d, want 1", result.Stats.ConfiguredSkipped)
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

// TestSource_FloatAndString tests the float template and the aggregate
// fallback for strings on the same signature.
func TestSource_FloatAndString(t *testing.T) {
	input := `package main

func scale(label string, factor float32) float64 {
	_ = label
	return float64(factor) * 2
}
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if !strings.Contains(result.Code, "(aggregate)") {
		t.Errorf("Output missing aggregate template for string argument")
	}
	if !strings.Contains(result.Code, "float64(factor)") {
		t.Errorf("Output missing widened float argument")
	}
	if !strings.Contains(result.Code, "var __fntrace_ret0 float64") {
		t.Errorf("Output missing hoisted float return")
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

// TestSource_StructByValue tests that a struct argument and result both use
// the aggregate template and the struct value is never read by a trace line.
func TestSource_StructByValue(t *testing.T) {
	input := `package main

type point struct {
	x, y float64
}

func mirror(p point) point {
	return point{x: -p.x, y: -p.y}
}
`

	result, err := Source("test.go", input, Options{})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}

	if !strings.Contains(result.Code, "(arg%d)=(aggregate)") {
		t.Errorf("Output missing aggregate argument template")
	}
	if !strings.Contains(result.Code, "returns (aggregate)") {
		t.Errorf("Output missing aggregate return template")
	}
	// Aggregate exits are not hoisted; the original return stays.
	if strings.Contains(result.Code, "__fntrace_ret") {
		t.Errorf("Aggregate return should not hoist a temporary")
	}

	t.Logf("Instrumented output:\n%s", result.Code)
}

func BenchmarkSource(b *testing.B) {
	input := `package main

func add(a, b int) int {
	return a + b
}

func classify(x int) string {
	if x < 0 {
		return "negative"
	}
	return "non-negative"
}

func main() {
	_ = add(2, 5)
	_ = classify(-1)
}
`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Source("bench.go", input, Options{}); err != nil {
			b.Fatalf("Source failed: %v", err)
		}
	}
}
