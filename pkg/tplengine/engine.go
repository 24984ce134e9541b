// Package tplengine is the `{{expr}}` substitution engine (C3): a
// hand-rolled scanner and helper-call mini-parser, not Go's text/template,
// because the grammar spec.md defines (bare dotted paths, quoted/numeric
// literal helper arguments, a fixed helper library) is incompatible with
// text/template's pipe syntax. Arithmetic helpers use shopspring/decimal
// for precision instead of raw float64 math.
package tplengine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/compozy/webhookflow/engine/errs"
)

// Mode controls behavior when a bare path or helper argument path fails to
// resolve.
type Mode int

const (
	// Strict makes an unresolved path a fatal template error.
	Strict Mode = iota
	// Lenient substitutes the engine's default value, which is the empty
	// string unless New was given another.
	Lenient
)

const defaultMaxDepth = 10

// Engine resolves template strings and recursively walks parameter
// structures (maps/sequences) rewriting embedded template tags.
type Engine struct {
	mode         Mode
	defaultValue string
	maxDepth     int
	helpers      map[string]HelperFunc
}

// New constructs an Engine. mode controls unresolved-path behavior;
// defaultValue is substituted in Lenient mode when no helper/path resolves.
func New(mode Mode, defaultValue string) *Engine {
	return &Engine{mode: mode, defaultValue: defaultValue, maxDepth: defaultMaxDepth, helpers: defaultHelpers()}
}

// WithMaxDepth overrides the recursive-walk depth cap (default 10).
func (e *Engine) WithMaxDepth(depth int) *Engine {
	e.maxDepth = depth
	return e
}

// RegisterHelper adds or overrides a named helper.
func (e *Engine) RegisterHelper(name string, fn HelperFunc) {
	e.helpers[name] = fn
}

// HasTemplate reports whether s contains at least one `{{...}}` tag.
func HasTemplate(s string) bool {
	start := strings.Index(s, "{{")
	if start < 0 {
		return false
	}
	return strings.Contains(s[start+2:], "}}")
}

// Resolve walks v (string/map/sequence/scalar) recursively, rewriting every
// string containing template tags, up to the engine's depth cap. Inputs
// with no template strings are returned unchanged as required by the
// `resolve(O) == O` invariant; the recursion is always performed so the
// depth cap is still enforced even over template-free structures.
func (e *Engine) Resolve(v any, vars map[string]any) (any, error) {
	return e.walk(v, vars, 0)
}

func (e *Engine) walk(v any, vars map[string]any, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, errs.New(errs.KindValidation, "tplengine: max depth exceeded")
	}
	switch t := v.(type) {
	case string:
		if !HasTemplate(t) {
			return t, nil
		}
		return e.RenderString(t, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			rv, err := e.walk(vv, vars, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			rv, err := e.walk(vv, vars, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// RenderString substitutes every `{{...}}` tag in s and returns the result.
// A string consisting of exactly one tag that resolves to a non-string
// value returns that value's natural printed form per the formatting rule
// (nulls become "", structures become JSON, scalars use their natural
// form) — callers needing the raw typed value for a whole-string single
// expression should use RenderValue instead.
func (e *Engine) RenderString(s string, vars map[string]any) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "{{")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		out.WriteString(s[i : i+start])
		tagStart := i + start + 2
		end := strings.Index(s[tagStart:], "}}")
		if end < 0 {
			out.WriteString(s[i+start:])
			break
		}
		raw := strings.TrimSpace(s[tagStart : tagStart+end])
		val, err := e.evalTag(raw, vars)
		if err != nil {
			return "", err
		}
		out.WriteString(stringifyValue(val))
		i = tagStart + end + 2
	}
	return out.String(), nil
}

// RenderValue evaluates s, which must be exactly one `{{...}}` tag, and
// returns the resolved value without stringifying it. Used when a
// parameter should preserve its structured type (e.g. loop's
// `params.items`) instead of always becoming a string.
func (e *Engine) RenderValue(s string, vars map[string]any) (any, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") &&
		strings.Count(trimmed, "{{") == 1 {
		inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "{{"), "}}")
		return e.evalTag(strings.TrimSpace(inner), vars)
	}
	rendered, err := e.RenderString(s, vars)
	return rendered, err
}

func (e *Engine) evalTag(raw string, vars map[string]any) (any, error) {
	if isDenylisted(raw) {
		return e.unresolved(raw, "expression denylisted")
	}
	parsed := parseExpr(raw)
	switch parsed.kind {
	case exprPath:
		val, ok := resolvePath(parsed.path, vars)
		if !ok {
			return e.unresolved(raw, fmt.Sprintf("unresolved path %q", parsed.path))
		}
		return val, nil
	case exprCall:
		fn, ok := e.helpers[parsed.name]
		if !ok {
			return e.unresolved(raw, fmt.Sprintf("unknown helper %q", parsed.name))
		}
		args := make([]any, len(parsed.args))
		for i, a := range parsed.args {
			if a.isLiteral {
				args[i] = a.literal
				continue
			}
			val, ok := resolvePath(a.path, vars)
			if !ok {
				val = nil
			}
			args[i] = val
		}
		val, err := fn(args)
		if err != nil {
			return e.unresolved(raw, err.Error())
		}
		return val, nil
	default:
		return e.unresolved(raw, "unrecognized expression")
	}
}

func (e *Engine) unresolved(raw, reason string) (any, error) {
	if e.mode == Strict {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("tplengine: %s", reason))
	}
	return e.defaultValue, nil
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return trimFloat(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
