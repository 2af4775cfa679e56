// Package cformat translates the C printf templates carried by injected
// trace calls into formats the fmt package understands.
//
// The instrumenter emits its format strings in C notation because the trace
// line templates are the tool's wire format: ">> %s\n", "   %s(arg%d)=%lld\n"
// and so on. Go's fmt has no length modifiers, so the only rewrite needed is
// %lld -> %d; the remaining verbs (%s, %d, %f, %p) are shared between the
// two worlds.
package cformat

import "strings"

// Translate rewrites C length-modified verbs to their fmt equivalents.
// Literal text and shared verbs pass through unchanged.
func Translate(format string) string {
	if !strings.Contains(format, "%ll") {
		return format
	}

	var b strings.Builder
	b.Grow(len(format))
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '%' && strings.HasPrefix(format[i+1:], "lld") {
			b.WriteString("%d")
			i += 3
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
