package migrate

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// TokenMap maps placeholder names to replacement text. A placeholder is
// written ${KEY} in a script.
type TokenMap map[string]string

// ParseTokens parses KEY=VALUE pairs. The value may itself contain '='.
func ParseTokens(pairs []string) (TokenMap, error) {
	tokens := make(TokenMap, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Mark(errors.Newf("token %q is not in KEY=VALUE form", p), ErrInvalidToken)
		}
		if _, dup := tokens[key]; dup {
			return nil, errors.Mark(errors.Newf("token %q given more than once", key), ErrInvalidToken)
		}
		tokens[key] = value
	}
	return tokens, nil
}

// Replace substitutes every ${KEY} in text. Replacement is single pass, so a
// value that itself looks like a placeholder is left alone.
func (t TokenMap) Replace(text string) string {
	if len(t) == 0 {
		return text
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	oldnew := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		oldnew = append(oldnew, "${"+k+"}", t[k])
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}

// Pairs returns the map as sorted KEY=VALUE strings.
func (t TokenMap) Pairs() []string {
	out := make([]string, 0, len(t))
	for k, v := range t {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
