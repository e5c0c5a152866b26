package meta

import (
	"os"
	"strings"
	"unicode"
)

const envExprPrefix = "${env."

// expandEnvExpr substitutes every ${env.KEY} occurrence with the value of
// the KEY environment variable, empty when unset. Malformed expressions are
// left as literal text.
func expandEnvExpr(value string) string {
	if !strings.Contains(value, envExprPrefix) {
		return value
	}
	var b strings.Builder
	rest := value
	for {
		idx := strings.Index(rest, envExprPrefix)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:idx])
		rest = rest[idx+len(envExprPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(envExprPrefix)
			b.WriteString(rest)
			return b.String()
		}
		key := rest[:end]
		if !validEnvKey(key) {
			b.WriteString(envExprPrefix)
			continue
		}
		b.WriteString(os.Getenv(key))
		rest = rest[end+1:]
	}
}

func validEnvKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
