package entity

import (
	"crypto/md5" // #nosec G501 -- md5 derives deterministic alias tokens, not used for security
	"fmt"
	"regexp"
)

// aliasHashLen is the number of hex characters of the content hash kept
// in an alias token. 32 bits of hash is enough for per-corpus uniqueness
// in practice; collisions are possible at very large corpus sizes.
const aliasHashLen = 8

// AliasPattern matches any alias token produced by Alias, capturing the
// entity type in group 1.
var AliasPattern = regexp.MustCompile(`\[([A-Z_]+)_[0-9a-f]{8}\]`)

// Alias returns the deterministic placeholder token for an original value.
// The same value always yields the same token, across calls and across
// documents, which is what lets a question mentioning a value anonymized
// in an earlier document resolve to the alias stored in its chunks.
func Alias(original string, t Type) string {
	h := fmt.Sprintf("%x", md5.Sum([]byte(original))) // #nosec G401 -- deterministic token, not crypto
	return fmt.Sprintf("[%s_%s]", t, h[:aliasHashLen])
}

// IsAlias reports whether s is exactly one alias token.
func IsAlias(s string) bool {
	loc := AliasPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// ContainsAlias reports whether s contains any alias token.
func ContainsAlias(s string) bool {
	return AliasPattern.MatchString(s)
}

// AliasType extracts the entity type from an alias token. The second
// return is false when the token is not alias-shaped or carries an
// unknown type.
func AliasType(alias string) (Type, bool) {
	m := AliasPattern.FindStringSubmatch(alias)
	if m == nil {
		return "", false
	}
	t := Type(m[1])
	if !t.Valid() {
		return "", false
	}
	return t, true
}
