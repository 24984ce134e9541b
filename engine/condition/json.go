package condition

import "encoding/json"

// MarshalJSON flattens Node to whichever of Rule/Group is set, so workflow
// definitions can express a Rules array as a mix of leaf rules and nested
// groups without a discriminator field.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Group != nil {
		return json.Marshal(n.Group)
	}
	if n.Rule != nil {
		return json.Marshal(n.Rule)
	}
	return []byte("null"), nil
}

// UnmarshalJSON distinguishes a leaf FilterRule from a nested ConditionGroup
// by the presence of a "rules" key, matching the wire shape workflow
// definitions use (spec.md §6).
func (n *Node) UnmarshalJSON(data []byte) error {
	var probe struct {
		Rules *json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Rules != nil {
		var group ConditionGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return err
		}
		n.Group = &group
		n.Rule = nil
		return nil
	}
	var rule FilterRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return err
	}
	n.Rule = &rule
	n.Group = nil
	return nil
}
