package eval

import (
	"strconv"

	"github.com/cbegin/loopcode/internal/lang"
	"github.com/cbegin/loopcode/internal/pattern"
)

// scope carries lambda parameters and the random source for chance
// operations. Pure scopes reject control calls.
type scope struct {
	vars map[string]value
	rng  pattern.RandomSource
	pure bool
}

func (sc *scope) lookup(name string) (value, bool) {
	v, ok := sc.vars[name]
	return v, ok
}

func (e *Evaluator) eval(node lang.Node, sc *scope) (value, error) {
	switch n := node.(type) {
	case *lang.Number:
		return n.Value, nil
	case *lang.String:
		return n.Value, nil
	case *lang.Ident:
		if v, ok := sc.lookup(n.Name); ok {
			return v, nil
		}
		if n.Name == "silence" {
			return silence{}, nil
		}
		return nil, usageError("unknown name %q", n.Name)
	case *lang.Lambda:
		return &lambda{param: n.Param, body: n.Body, env: sc.vars}, nil
	case *lang.Call:
		args, err := e.evalArgs(n.Args, sc)
		if err != nil {
			return nil, err
		}
		if v, ok := sc.lookup(n.Name); ok {
			return e.invoke(v, args)
		}
		return e.call(n.Name, args, sc)
	case *lang.Method:
		recv, err := e.eval(n.Recv, sc)
		if err != nil {
			return nil, err
		}
		args, err := e.evalArgs(n.Args, sc)
		if err != nil {
			return nil, err
		}
		return e.method(recv, n.Name, args, sc)
	}
	return nil, usageError("unsupported expression")
}

func (e *Evaluator) evalArgs(nodes []lang.Node, sc *scope) ([]value, error) {
	args := make([]value, len(nodes))
	for i, n := range nodes {
		v, err := e.eval(n, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// invoke calls a function value held in a variable: f(p).
func (e *Evaluator) invoke(fn value, args []value) (value, error) {
	if len(args) != 1 {
		return nil, usageError("a function takes exactly one pattern")
	}
	p, ok := args[0].(*pattern.Pattern)
	if !ok {
		return nil, usageError("a function takes a pattern, got a %s", typeName(args[0]))
	}
	t, err := e.toTransform(fn)
	if err != nil {
		return nil, err
	}
	return t.fn(p), nil
}

// method applies name to a pattern, or composes it onto a transform.
func (e *Evaluator) method(recv value, name string, args []value, sc *scope) (value, error) {
	switch r := recv.(type) {
	case *pattern.Pattern:
		return e.patternMethod(r, name, args, sc.rng)
	case *transform:
		next, err := e.partial(name, args)
		if err != nil {
			return nil, err
		}
		inner := r.fn
		return &transform{
			desc: r.desc + "." + next.desc,
			fn:   func(p *pattern.Pattern) *pattern.Pattern { return next.fn(inner(p)) },
		}, nil
	}
	return nil, usageError("cannot call .%s on a %s", name, typeName(recv))
}

// checkPattern is the pattern used to check partial transforms and lambdas when
// they are defined.
func checkPattern() *pattern.Pattern {
	p, _ := pattern.FromNotation(pattern.KindSound, "bd sd", 0)
	return p
}

// missRand never passes a chance threshold, so checking a transform does
// not consume real draws.
type missRand struct{}

func (missRand) Float64() float64 { return 1 }

// partial builds a transform from a method name and its arguments,
// rejecting it right away if it would fail on a real pattern.
func (e *Evaluator) partial(name string, args []value) (*transform, error) {
	if _, err := e.patternMethod(checkPattern(), name, args, missRand{}); err != nil {
		return nil, err
	}
	return &transform{
		desc: name + "(...)",
		fn: func(p *pattern.Pattern) *pattern.Pattern {
			out, err := e.patternMethod(p, name, args, e.rng)
			if err != nil {
				e.logger.Warn("transform failed", "op", name, "err", err)
				return p
			}
			return out
		},
	}, nil
}

// toTransform turns a function-valued argument into a pattern.Transform.
func (e *Evaluator) toTransform(v value) (*transform, error) {
	switch f := v.(type) {
	case *transform:
		return f, nil
	case *lambda:
		apply := func(p *pattern.Pattern, rng pattern.RandomSource) (*pattern.Pattern, error) {
			vars := make(map[string]value, len(f.env)+1)
			for k, v := range f.env {
				vars[k] = v
			}
			vars[f.param] = p
			out, err := e.eval(f.body, &scope{vars: vars, rng: rng, pure: true})
			if err != nil {
				return nil, err
			}
			res, ok := out.(*pattern.Pattern)
			if !ok {
				return nil, usageError("function must return a pattern, got a %s", typeName(out))
			}
			return res, nil
		}
		if _, err := apply(checkPattern(), missRand{}); err != nil {
			return nil, err
		}
		return &transform{
			desc: f.param + " => ...",
			fn: func(p *pattern.Pattern) *pattern.Pattern {
				out, err := apply(p, e.rng)
				if err != nil {
					e.logger.Warn("function failed", "err", err)
					return p
				}
				return out
			},
		}, nil
	}
	return nil, usageError("expected a function, got a %s", typeName(v))
}

func numberArg(name string, args []value, i int) (float64, error) {
	if i >= len(args) {
		return 0, usageError("%s needs %d argument(s)", name, i+1)
	}
	f, ok := args[i].(float64)
	if !ok {
		return 0, usageError("%s expects a number, got a %s", name, typeName(args[i]))
	}
	return f, nil
}

func stringArg(name string, args []value, i int) (string, error) {
	if i >= len(args) {
		return "", usageError("%s needs %d argument(s)", name, i+1)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", usageError("%s expects a string, got a %s", name, typeName(args[i]))
}

func arity(name string, args []value, n int) error {
	if len(args) != n {
		return usageError("%s takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}
