// Package trace is the runtime half of fntrace: instrumented programs import
// it (under the reserved __fntrace alias) and call [Printf] once per trace
// line.
//
// # Quick Start
//
// The package is injected automatically by the fntrace tool:
//
//	$ fntrace build myprogram.go
//	$ ./myprogram
//	>> main
//	>> add
//	   add(arg0)=2
//	   add(arg1)=5
//	<< add returns 7
//	<< main returns void
//
// # Trace line format
//
// Every line is produced by one Printf call using a fixed template:
//
//	Entry            >> %s
//	Arg: pointer        %s(arg%d)=%p
//	Arg: integer        %s(arg%d)=%lld
//	Arg: float          %s(arg%d)=%f
//	Arg: aggregate      %s(arg%d)=(aggregate)
//	Return: void     << %s returns void
//	Return: pointer  << %s returns %p
//	Return: integer  << %s returns %lld
//	Return: float    << %s returns %f
//	Return: aggregate << %s returns (aggregate)
//
// %s is the instrumented function's name, %d the zero-based argument index.
// Integer values are zero-extended to 64 bits regardless of the declared
// width or signedness; narrow floats are widened to float64 before
// formatting. Line ordering follows the program's execution order.
//
// # Output destination
//
// Trace lines go to stdout by default. Set FNTRACE_OUT to a file path to
// append them there instead, or call [SetOutput] from the program itself.
package trace
