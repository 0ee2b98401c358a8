package payload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wesleyorama2/waveshaper/internal/sequence"
)

// Context keys the driver seeds into every worker's sequence.
const (
	// WorkerKey holds the worker number.
	WorkerKey = "worker"

	// ResponseKey holds the body of the last sink response.
	ResponseKey = "response"
)

// Render replaces {{name}} placeholders in tmpl.
//
// {{iteration}} and {{position}} expand to the sequence iteration and the
// position of the running step. Any other name is looked up in the context.
// Unknown names are left untouched.
func Render(tmpl string, ctx *sequence.Context, nav *sequence.Navigator) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	s := tmpl
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start+2:], "}}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start + 2

		b.WriteString(s[:start])
		name := strings.TrimSpace(s[start+2 : end])
		if value, ok := lookup(name, ctx, nav); ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+2])
		}
		s = s[end+2:]
	}

	return b.String()
}

func lookup(name string, ctx *sequence.Context, nav *sequence.Navigator) (string, bool) {
	switch name {
	case "iteration":
		return strconv.FormatInt(ctx.Iteration(), 10), true
	case "position":
		return strconv.Itoa(nav.Position()), true
	}

	v, ok := ctx.Get(name)
	if !ok {
		return "", false
	}
	return toString(v), true
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
