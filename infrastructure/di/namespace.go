package di

import (
	"strings"
	"time"
	"unicode"
)

// slowQueryThreshold is the latency above which the query bus logs a warning.
const slowQueryThreshold = 250 * time.Millisecond

// sanitizeNamespace maps a CloudWatch style namespace ("GraphStore/prod")
// to a valid Prometheus metric prefix ("graphstore_prod").
func sanitizeNamespace(ns string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(ns) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return serviceName
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}
