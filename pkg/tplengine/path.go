package tplengine

import "github.com/compozy/webhookflow/engine/fieldpath"

// resolvePath resolves a bare dotted path (e.g. "trigger.payload.pull_request.number")
// against the variables bundle using fieldpath, treating a hyphenated first
// segment like "user-name" as a literal map key rather than a minus
// operator — fieldpath's grammar has no arithmetic, so hyphens are always
// literal.
func resolvePath(path string, vars map[string]any) (any, bool) {
	opts := fieldpath.DefaultOptions()
	opts.Graceful = false
	val, err := fieldpath.Resolve(any(vars), path, opts)
	if err != nil {
		return nil, false
	}
	return val, true
}
