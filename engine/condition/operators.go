package condition

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Operator is a FilterRule comparison operator.
type Operator string

const (
	OpEquals        Operator = "equals"
	OpNotEquals     Operator = "not_equals"
	OpContains      Operator = "contains"
	OpNotContains   Operator = "not_contains"
	OpStartsWith    Operator = "starts_with"
	OpEndsWith      Operator = "ends_with"
	OpRegex         Operator = "regex"
	OpMatches       Operator = "matches"
	OpIn            Operator = "in"
	OpNotIn         Operator = "not_in"
	OpGreaterThan   Operator = "greater_than"
	OpLessThan      Operator = "less_than"
	OpGreaterEqual  Operator = "greater_equal"
	OpLessEqual     Operator = "less_equal"
	OpBetween       Operator = "between"
	OpIsNull        Operator = "is_null"
	OpIsNotNull     Operator = "is_not_null"
	OpExists        Operator = "exists"
	OpNotExists     Operator = "not_exists"
)

var regexCache sync.Map // string -> *regexp.Regexp

func compileRegex(pattern string) (*regexp.Regexp, bool) {
	if v, ok := regexCache.Load(pattern); ok {
		re, ok := v.(*regexp.Regexp)
		return re, ok
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		regexCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil, false
	}
	regexCache.Store(pattern, re)
	return re, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// evalOperator applies op comparing the resolved field value against the
// rule's configured value. missing indicates the field path resolved to no
// value at all (as opposed to a present null).
func evalOperator(op Operator, fieldVal any, present bool, ruleVal any) (bool, error) {
	switch op {
	case OpEquals:
		return present && strictEqual(fieldVal, ruleVal), nil
	case OpNotEquals:
		return !(present && strictEqual(fieldVal, ruleVal)), nil
	case OpContains:
		return containsOp(fieldVal, ruleVal), nil
	case OpNotContains:
		return !containsOp(fieldVal, ruleVal), nil
	case OpStartsWith:
		fs, fok := fieldVal.(string)
		rs, rok := ruleVal.(string)
		return fok && rok && strings.HasPrefix(fs, rs), nil
	case OpEndsWith:
		fs, fok := fieldVal.(string)
		rs, rok := ruleVal.(string)
		return fok && rok && strings.HasSuffix(fs, rs), nil
	case OpRegex, OpMatches:
		pattern, ok := ruleVal.(string)
		if !ok {
			return false, nil
		}
		re, ok := compileRegex(pattern)
		if !ok {
			return false, nil
		}
		fs, ok := fieldVal.(string)
		if !ok {
			return false, nil
		}
		return re.MatchString(fs), nil
	case OpIn:
		seq, ok := asSlice(ruleVal)
		if !ok {
			return false, nil
		}
		for _, item := range seq {
			if strictEqual(fieldVal, item) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		seq, ok := asSlice(ruleVal)
		if !ok {
			return true, nil
		}
		for _, item := range seq {
			if strictEqual(fieldVal, item) {
				return false, nil
			}
		}
		return true, nil
	case OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		return numericCompare(op, fieldVal, ruleVal), nil
	case OpBetween:
		return betweenOp(fieldVal, ruleVal), nil
	case OpIsNull:
		return present && fieldVal == nil, nil
	case OpIsNotNull:
		return present && fieldVal != nil, nil
	case OpExists:
		return present, nil
	case OpNotExists:
		return !present, nil
	default:
		return false, errUnknownOperator(string(op))
	}
}

func strictEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		_, aIsStr := a.(string)
		_, bIsStr := b.(string)
		if !aIsStr && !bIsStr {
			return af == bf
		}
	}
	return a == b
}

func containsOp(fieldVal, ruleVal any) bool {
	if fs, ok := fieldVal.(string); ok {
		if rs, ok := ruleVal.(string); ok {
			return strings.Contains(fs, rs)
		}
	}
	if seq, ok := asSlice(fieldVal); ok {
		for _, item := range seq {
			if strictEqual(item, ruleVal) {
				return true
			}
		}
	}
	return false
}

func numericCompare(op Operator, fieldVal, ruleVal any) bool {
	a, aok := toFloat(fieldVal)
	b, bok := toFloat(ruleVal)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpGreaterThan:
		return a > b
	case OpLessThan:
		return a < b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	default:
		return false
	}
}

func betweenOp(fieldVal, ruleVal any) bool {
	pair, ok := asSlice(ruleVal)
	if !ok || len(pair) != 2 {
		return false
	}
	v, vok := toFloat(fieldVal)
	lo, lok := toFloat(pair[0])
	hi, hok := toFloat(pair[1])
	if !vok || !lok || !hok {
		return false
	}
	return lo <= v && v <= hi
}
