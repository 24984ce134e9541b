package workflow

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/compozy/webhookflow/engine/condition"
)

// Matches reports whether an incoming event satisfies t's trigger-level
// gate (spec.md §3's optional repository glob plus FilterRule array): the
// repository glob, when set, is checked first and short-circuits a
// mismatch before the (possibly more expensive) filter evaluation runs.
// Filters are ANDed, matching the behavior of a bare FilterRule list with
// no explicit logical operator.
func (t Trigger) Matches(repository string, payload map[string]any) (bool, error) {
	if t.Repository != "" {
		ok, err := doublestar.Match(t.Repository, repository)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if len(t.Filters) == 0 {
		return true, nil
	}
	group := &condition.ConditionGroup{Operator: condition.LogicalAnd}
	for i := range t.Filters {
		group.Rules = append(group.Rules, condition.Node{Rule: &t.Filters[i]})
	}
	return condition.Evaluate(group, payload)
}
