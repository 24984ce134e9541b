package fieldpath

import "fmt"

func toStringFallback(v any) string {
	return fmt.Sprintf("%v", v)
}
