package tplengine

import "regexp"

// denylist rejects expression strings that attempt to escape the template
// sandbox: prototype/constructor access, dynamic code execution, module
// loading, or reaching into process/runtime globals. Templates are data
// substitution only — this is not a general-purpose scripting surface.
var denylist = []*regexp.Regexp{
	regexp.MustCompile(`__proto__`),
	regexp.MustCompile(`\bprototype\b`),
	regexp.MustCompile(`\bconstructor\b`),
	regexp.MustCompile(`\bfunction\s*\(`),
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`\bnew\s+\w+`),
	regexp.MustCompile(`\bimport\s*\(`),
	regexp.MustCompile(`\brequire\s*\(`),
	regexp.MustCompile(`\bprocess\b`),
	regexp.MustCompile(`\bglobal\b`),
	regexp.MustCompile(`\bwindow\b`),
	regexp.MustCompile(`\bdocument\b`),
	regexp.MustCompile(`\bconsole\b`),
	regexp.MustCompile(`\bsetTimeout\b`),
	regexp.MustCompile(`\bsetInterval\b`),
}

func isDenylisted(expr string) bool {
	for _, re := range denylist {
		if re.MatchString(expr) {
			return true
		}
	}
	return false
}
