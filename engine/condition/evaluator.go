// Package condition evaluates the boolean predicate trees (FilterRule /
// ConditionGroup) that gate trigger matching and per-action execution. It
// builds on engine/fieldpath for field access and the standard regexp
// package for regex/matches, compiled once per distinct pattern.
package condition

import (
	"fmt"

	"github.com/compozy/webhookflow/engine/errs"
	"github.com/compozy/webhookflow/engine/fieldpath"
)

func errUnknownOperator(op string) error {
	return errs.New(errs.KindValidation, fmt.Sprintf("condition: unknown operator %q", op))
}

// LogicalOp is the boolean combinator of a ConditionGroup.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "AND"
	LogicalOr  LogicalOp = "OR"
	LogicalNot LogicalOp = "NOT"
)

// FilterRule is a single leaf predicate: field path, operator, and the
// comparison value (scalar, array, or [lo,hi] pair depending on operator).
type FilterRule struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Node is either a FilterRule or a nested ConditionGroup.
type Node struct {
	Rule  *FilterRule
	Group *ConditionGroup
}

// ConditionGroup is a recursive boolean tree: AND requires every rule to
// be true, OR requires at least one, NOT requires none. An empty rule list
// always evaluates to true.
type ConditionGroup struct {
	Operator LogicalOp `json:"operator" yaml:"operator"`
	Rules    []Node    `json:"rules" yaml:"rules"`
}

// Evaluate walks group against ctx, resolving each rule's field path with
// fieldpath.Resolve. A resolved-but-missing field is passed through to the
// operator as present=false so is_null/exists semantics are correct.
func Evaluate(group *ConditionGroup, ctx any) (bool, error) {
	if group == nil || len(group.Rules) == 0 {
		return true, nil
	}
	switch group.Operator {
	case LogicalAnd, "":
		for _, node := range group.Rules {
			ok, err := evalNode(node, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case LogicalOr:
		for _, node := range group.Rules {
			ok, err := evalNode(node, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case LogicalNot:
		for _, node := range group.Rules {
			ok, err := evalNode(node, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, errs.New(errs.KindValidation, fmt.Sprintf("condition: unknown logical operator %q", group.Operator))
	}
}

func evalNode(node Node, ctx any) (bool, error) {
	if node.Group != nil {
		return Evaluate(node.Group, ctx)
	}
	if node.Rule == nil {
		return false, errs.New(errs.KindValidation, "condition: empty node")
	}
	return evalRule(node.Rule, ctx)
}

func evalRule(rule *FilterRule, ctx any) (bool, error) {
	opts := fieldpath.DefaultOptions()
	opts.Graceful = false
	val, err := fieldpath.Resolve(ctx, rule.Field, opts)
	present := true
	if err != nil {
		present = false
		val = nil
	}
	return evalOperator(rule.Operator, val, present, rule.Value)
}
