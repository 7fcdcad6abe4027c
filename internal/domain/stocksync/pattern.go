package stocksync

import "strings"

// MatchSkuPattern matches sku against an exact pattern or a PREFIX* wildcard,
// ignoring case.
func MatchSkuPattern(pattern, sku string) bool {
	p := strings.ToUpper(strings.TrimSpace(pattern))
	s := strings.ToUpper(strings.TrimSpace(sku))
	if p == "" || s == "" {
		return false
	}
	if prefix, ok := strings.CutSuffix(p, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	return p == s
}

// SplitList splits a comma or newline separated list, dropping blanks.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func hasItems(s string) bool {
	return len(SplitList(s)) > 0
}
