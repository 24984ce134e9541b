package tplengine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HelperFunc is a template helper invoked with already-resolved argument
// values. It returns the substituted value (not yet stringified).
type HelperFunc func(args []any) (any, error)

func defaultHelpers() map[string]HelperFunc {
	return map[string]HelperFunc{
		"upper": func(a []any) (any, error) { return strings.ToUpper(argString(a, 0)), nil },
		"lower": func(a []any) (any, error) { return strings.ToLower(argString(a, 0)), nil },
		"trim":  func(a []any) (any, error) { return strings.TrimSpace(argString(a, 0)), nil },
		"length": func(a []any) (any, error) {
			if len(a) == 0 {
				return 0, nil
			}
			switch v := a[0].(type) {
			case string:
				return float64(len(v)), nil
			case []any:
				return float64(len(v)), nil
			case map[string]any:
				return float64(len(v)), nil
			default:
				return float64(0), nil
			}
		},
		"formatDate": helperFormatDate,
		"addDays":    helperAddDays,
		"add":        helperArith(func(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }),
		"subtract":   helperArith(func(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }),
		"multiply":   helperArith(func(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }),
		"divide": func(a []any) (any, error) {
			x := argDecimal(a, 0)
			y := argDecimal(a, 1)
			if y.IsZero() {
				return nil, fmt.Errorf("tplengine: divide by zero")
			}
			return x.DivRound(y, 10).InexactFloat64(), nil
		},
		"round": func(a []any) (any, error) {
			places := int32(0)
			if len(a) > 1 {
				places = int32(argDecimal(a, 1).IntPart())
			}
			return argDecimal(a, 0).Round(places).InexactFloat64(), nil
		},
		"join": func(a []any) (any, error) {
			sep := ","
			if len(a) > 1 {
				sep = argString(a, 1)
			}
			seq, _ := a[0].([]any)
			parts := make([]string, len(seq))
			for i, v := range seq {
				parts[i] = stringifyValue(v)
			}
			return strings.Join(parts, sep), nil
		},
		"first": func(a []any) (any, error) {
			seq, _ := a[0].([]any)
			if len(seq) == 0 {
				return nil, nil
			}
			return seq[0], nil
		},
		"last": func(a []any) (any, error) {
			seq, _ := a[0].([]any)
			if len(seq) == 0 {
				return nil, nil
			}
			return seq[len(seq)-1], nil
		},
		"slice": func(a []any) (any, error) {
			seq, _ := a[0].([]any)
			start := int(argDecimal(a, 1).IntPart())
			end := len(seq)
			if len(a) > 2 {
				end = int(argDecimal(a, 2).IntPart())
			}
			if start < 0 || start > len(seq) || end < start || end > len(seq) {
				return []any{}, nil
			}
			return seq[start:end], nil
		},
		"keys": func(a []any) (any, error) {
			m, _ := a[0].(map[string]any)
			out := make([]any, 0, len(m))
			names := make([]string, 0, len(m))
			for k := range m {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				out = append(out, k)
			}
			return out, nil
		},
		"values": func(a []any) (any, error) {
			m, _ := a[0].(map[string]any)
			names := make([]string, 0, len(m))
			for k := range m {
				names = append(names, k)
			}
			sort.Strings(names)
			out := make([]any, 0, len(m))
			for _, k := range names {
				out = append(out, m[k])
			}
			return out, nil
		},
		"if": func(a []any) (any, error) {
			if len(a) < 3 {
				return nil, fmt.Errorf("tplengine: if requires 3 arguments")
			}
			if truthy(a[0]) {
				return a[1], nil
			}
			return a[2], nil
		},
		"default": func(a []any) (any, error) {
			if len(a) < 2 {
				return nil, fmt.Errorf("tplengine: default requires 2 arguments")
			}
			if a[0] == nil {
				return a[1], nil
			}
			return a[0], nil
		},
		"urlEncode": func(a []any) (any, error) { return url.QueryEscape(argString(a, 0)), nil },
		"urlDecode": func(a []any) (any, error) { return url.QueryUnescape(argString(a, 0)) },
		"toJson": func(a []any) (any, error) {
			b, err := json.Marshal(a[0])
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
		"fromJson": func(a []any) (any, error) {
			var v any
			if err := json.Unmarshal([]byte(argString(a, 0)), &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

func helperArith(op func(a, b decimal.Decimal) decimal.Decimal) HelperFunc {
	return func(a []any) (any, error) {
		x := argDecimal(a, 0)
		y := argDecimal(a, 1)
		return op(x, y).InexactFloat64(), nil
	}
}

func helperFormatDate(a []any) (any, error) {
	t, err := argTime(a, 0)
	if err != nil {
		return nil, err
	}
	format := "iso"
	if len(a) > 1 {
		format = argString(a, 1)
	}
	switch format {
	case "iso":
		return t.UTC().Format(time.RFC3339), nil
	case "date":
		return t.UTC().Format("2006-01-02"), nil
	case "time":
		return t.UTC().Format("15:04:05"), nil
	default:
		return t.UTC().Format(format), nil
	}
}

func helperAddDays(a []any) (any, error) {
	t, err := argTime(a, 0)
	if err != nil {
		return nil, err
	}
	days := int(argDecimal(a, 1).IntPart())
	return t.AddDate(0, 0, days).UTC().Format(time.RFC3339), nil
}

func argString(a []any, i int) string {
	if i >= len(a) {
		return ""
	}
	return stringifyValue(a[i])
}

func argDecimal(a []any, i int) decimal.Decimal {
	if i >= len(a) {
		return decimal.Zero
	}
	switch v := a[i].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func argTime(a []any, i int) (time.Time, error) {
	if i >= len(a) {
		return time.Time{}, fmt.Errorf("tplengine: missing time argument")
	}
	switch v := a[i].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.UnixMilli(int64(f)), nil
		}
		return time.Time{}, fmt.Errorf("tplengine: cannot parse date %q", v)
	case float64:
		return time.UnixMilli(int64(v)), nil
	case time.Time:
		return v, nil
	default:
		return time.Time{}, fmt.Errorf("tplengine: unsupported date value %T", v)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}
