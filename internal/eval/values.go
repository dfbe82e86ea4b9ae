package eval

import (
	"fmt"

	"github.com/cbegin/loopcode/internal/lang"
	"github.com/cbegin/loopcode/internal/pattern"
)

// value is anything an expression can produce: float64, string,
// *pattern.Pattern, silence, *transform, *lambda or *control.
type value any

// silence is the "no pattern" sentinel returned by silence().
type silence struct{}

// transform is a pattern operation not yet bound to a pattern, such as the
// result of fast(2) or x => x.rev().
type transform struct {
	desc string
	fn   pattern.Transform
}

type lambda struct {
	param string
	body  lang.Node
	env   map[string]value
}

// control marks a completed top-level statement.
type control struct {
	message string
}

func typeName(v value) string {
	switch v.(type) {
	case nil:
		return "nothing"
	case float64:
		return "number"
	case string:
		return "string"
	case *pattern.Pattern:
		return "pattern"
	case silence:
		return "silence"
	case *transform, *lambda:
		return "function"
	case *control:
		return "statement"
	}
	return fmt.Sprintf("%T", v)
}
