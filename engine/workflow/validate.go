package workflow

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/compozy/webhookflow/engine/condition"
	"github.com/compozy/webhookflow/engine/dag"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/robfig/cron/v3"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ValidationIssue is a structured validation error with a JSON-pointer-ish
// path and a machine-readable code, per spec.md §6.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult separates blocking errors from non-blocking warnings
// (e.g. >20 actions, condition nesting >3, missing error handling).
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// AssignActionIDs fills in any missing ActionConfig.ID with a deterministic
// slug derived from Name (or Type as a fallback), disambiguated with a
// short uuid suffix on collision.
func AssignActionIDs(def *Definition) {
	seen := make(map[string]bool, len(def.Actions))
	for i := range def.Actions {
		a := &def.Actions[i]
		if a.ID != "" {
			seen[a.ID] = true
			continue
		}
		base := a.Name
		if base == "" {
			base = a.Type
		}
		id := slug.Make(base)
		if id == "" {
			id = slug.Make(fmt.Sprintf("action-%d", i))
		}
		for seen[id] {
			id = fmt.Sprintf("%s-%s", slug.Make(base), uuid.NewString()[:8])
		}
		a.ID = id
		seen[id] = true
	}
}

// Validate runs schema-shape and business-rule validation against def,
// returning blocking errors and non-blocking warnings separately.
func Validate(def *Definition) ValidationResult {
	var res ValidationResult
	if def.Name == "" {
		res.Errors = append(res.Errors, ValidationIssue{Path: "$.name", Message: "name is required", Code: "required"})
	}
	if def.Version != "" && !versionPattern.MatchString(def.Version) {
		res.Errors = append(res.Errors, ValidationIssue{
			Path: "$.version", Message: "version must match ^\\d+\\.\\d+\\.\\d+$", Code: "pattern",
		})
	}
	if def.Trigger.Type == "" {
		res.Errors = append(res.Errors, ValidationIssue{Path: "$.trigger.type", Message: "trigger type is required", Code: "required"})
	}
	if def.Trigger.Repository != "" {
		if _, err := doublestar.Match(def.Trigger.Repository, "owner/repo"); err != nil {
			res.Errors = append(res.Errors, ValidationIssue{
				Path: "$.trigger.repository", Message: "invalid repository glob: " + err.Error(), Code: "invalid_glob",
			})
		}
	}
	if def.Trigger.Cron != "" {
		if _, err := cron.ParseStandard(def.Trigger.Cron); err != nil {
			res.Errors = append(res.Errors, ValidationIssue{
				Path: "$.trigger.cron", Message: "invalid cron expression: " + err.Error(), Code: "invalid_cron",
			})
		}
	}
	if len(def.Actions) == 0 {
		res.Errors = append(res.Errors, ValidationIssue{Path: "$.actions", Message: "at least one action is required", Code: "required"})
	}
	res.Errors = append(res.Errors, validateActionIDs(def)...)
	res.Warnings = append(res.Warnings, businessWarnings(def)...)
	return res
}

func validateActionIDs(def *Definition) []ValidationIssue {
	var issues []ValidationIssue
	seen := make(map[string]bool, len(def.Actions))
	nodes := make([]dag.Node, 0, len(def.Actions))
	for i, a := range def.Actions {
		if a.ID == "" {
			issues = append(issues, ValidationIssue{
				Path: fmt.Sprintf("$.actions[%d].id", i), Message: "action id is required", Code: "required",
			})
			continue
		}
		if seen[a.ID] {
			issues = append(issues, ValidationIssue{
				Path: fmt.Sprintf("$.actions[%d].id", i), Message: "duplicate action id " + a.ID, Code: "duplicate",
			})
		}
		seen[a.ID] = true
		nodes = append(nodes, dag.Node{ID: a.ID, DependsOn: a.DependsOn})
	}
	if len(issues) == 0 {
		errsList, _ := dag.Validate(nodes)
		for _, e := range errsList {
			issues = append(issues, ValidationIssue{Path: "$.actions", Message: e, Code: "dependency_error"})
		}
	}
	return issues
}

func businessWarnings(def *Definition) []ValidationIssue {
	var warnings []ValidationIssue
	if len(def.Actions) > 20 {
		warnings = append(warnings, ValidationIssue{
			Path: "$.actions", Message: "workflow has more than 20 actions", Code: "large_workflow",
		})
	}
	for i, a := range def.Actions {
		if depth := conditionDepth(a.Condition, 0); depth > 3 {
			warnings = append(warnings, ValidationIssue{
				Path: fmt.Sprintf("$.actions[%d].condition", i), Message: "condition nesting exceeds 3 levels", Code: "deep_condition",
			})
		}
	}
	if def.ErrorHandling == nil {
		warnings = append(warnings, ValidationIssue{
			Path: "$.errorHandling", Message: "no workflow-level error handling configured", Code: "missing_error_handling",
		})
	}
	if def.TimeoutSecs > 3600 {
		warnings = append(warnings, ValidationIssue{
			Path: "$.timeout", Message: "workflow timeout is unusually long", Code: "long_timeout",
		})
	}
	complexity := dag.AnalyzeComplexity(actionsToNodes(def.Actions))
	if complexity.MaxDependencyCount > 5 {
		warnings = append(warnings, ValidationIssue{
			Path: "$.actions", Message: "an action has more than five dependencies", Code: "high_fanin",
		})
	}
	return warnings
}

func actionsToNodes(actions []ActionConfig) []dag.Node {
	nodes := make([]dag.Node, len(actions))
	for i, a := range actions {
		nodes[i] = dag.Node{ID: a.ID, DependsOn: a.DependsOn}
	}
	return nodes
}

// conditionDepth returns the maximum nesting depth of group, where a bare
// FilterRule node counts as depth+1 and a nested ConditionGroup recurses.
func conditionDepth(group *condition.ConditionGroup, depth int) int {
	if group == nil || len(group.Rules) == 0 {
		return depth
	}
	max := depth + 1
	for _, node := range group.Rules {
		if node.Group != nil {
			if d := conditionDepth(node.Group, depth+1); d > max {
				max = d
			}
		}
	}
	return max
}
