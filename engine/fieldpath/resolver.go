// Package fieldpath implements the safe path-expression resolver used to
// read values out of arbitrary, possibly attacker-controlled, nested
// payloads. No third-party path/query library in the corpus implements the
// exact missing-vs-null and graceful/strict semantics this needs, so it is
// hand-rolled recursive descent over engine/value trees.
package fieldpath

import "github.com/compozy/webhookflow/engine/errs"

// missing is a sentinel distinct from nil so the resolver can tell "key not
// present" apart from "key present with a null value".
type missingType struct{}

var missing = missingType{}

// IsMissing reports whether v is the resolver's missing sentinel.
func IsMissing(v any) bool {
	_, ok := v.(missingType)
	return ok
}

// Options tunes resolution behavior.
type Options struct {
	// Graceful, when true (the default), makes an invalid or unresolved
	// path return DefaultValue instead of an error.
	Graceful bool
	// DefaultValue is returned in place of a missing/invalid result when
	// Graceful is true.
	DefaultValue any
	// TreatNullAsMissing makes a present-but-null value resolve as missing.
	TreatNullAsMissing bool
	// MaxDepth bounds recursive [*] expansion; 0 means DefaultOptions' 50.
	MaxDepth int
}

// DefaultOptions returns the resolver's default behavior: graceful, no
// default value, nulls are not treated as missing, depth capped at 50.
func DefaultOptions() Options {
	return Options{Graceful: true, MaxDepth: 50}
}

// Resolve extracts the value at path from data. It is a pure function of
// (data, path, opts): it never mutates data and carries no state between
// calls.
func Resolve(data any, path string, opts Options) (any, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 50
	}
	segs, err := parsePath(path)
	if err != nil {
		return resolveErr(opts, err)
	}
	val, rerr := resolveSegments(data, segs, opts, 0)
	if rerr != nil {
		return resolveErr(opts, rerr)
	}
	if IsMissing(val) {
		if opts.Graceful {
			return opts.DefaultValue, nil
		}
		return nil, errs.New(errs.KindValidation, "fieldpath: path not found")
	}
	return val, nil
}

func resolveErr(opts Options, err error) (any, error) {
	if opts.Graceful {
		return opts.DefaultValue, nil
	}
	return nil, errs.Wrap(errs.KindValidation, "fieldpath: invalid path", err)
}

func resolveSegments(data any, segs []segment, opts Options, depth int) (any, error) {
	if depth > opts.MaxDepth {
		return nil, errs.New(errs.KindValidation, "fieldpath: max depth exceeded")
	}
	cur := data
	for i, seg := range segs {
		if IsMissing(cur) {
			return missing, nil
		}
		if opts.TreatNullAsMissing && cur == nil {
			return missing, nil
		}
		switch seg.kind {
		case segProperty:
			cur = resolveProperty(cur, seg.name)
		case segIndex:
			cur = resolveIndex(cur, seg.index)
		case segAll:
			rest := segs[i+1:]
			return resolveAll(cur, rest, opts, depth+1)
		case segFilter:
			rest := segs[i+1:]
			filtered := resolveFilter(cur, seg.name, seg.filterVal)
			if len(rest) == 0 {
				return filtered, nil
			}
			return resolveAll(filtered, rest, opts, depth+1)
		}
	}
	if opts.TreatNullAsMissing && cur == nil {
		return missing, nil
	}
	return cur, nil
}

func resolveProperty(cur any, name string) any {
	switch m := cur.(type) {
	case map[string]any:
		v, ok := m[name]
		if !ok {
			return missing
		}
		return v
	default:
		return missing
	}
}

func resolveIndex(cur any, idx int) any {
	arr, ok := cur.([]any)
	if !ok {
		return missing
	}
	if idx < 0 {
		idx = len(arr) + idx
	}
	if idx < 0 || idx >= len(arr) {
		return missing
	}
	return arr[idx]
}

func resolveFilter(cur any, key, value string) []any {
	arr, ok := cur.([]any)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(arr))
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		v, ok := m[key]
		if !ok {
			continue
		}
		if stringify(v) == value {
			out = append(out, el)
		}
	}
	return out
}

// resolveAll applies rest to every element of cur (which must be a
// sequence) and returns a new sequence of the non-missing results, or
// returns cur as-is when rest is empty (the [*] terminal case).
func resolveAll(cur any, rest []segment, opts Options, depth int) (any, error) {
	arr, ok := cur.([]any)
	if !ok {
		return missing, nil
	}
	if len(rest) == 0 {
		return arr, nil
	}
	out := make([]any, 0, len(arr))
	for _, el := range arr {
		v, err := resolveSegments(el, rest, opts, depth)
		if err != nil {
			return nil, err
		}
		if IsMissing(v) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return toStringFallback(t)
	}
}
