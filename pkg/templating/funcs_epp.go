package templating

import (
	"math/rand/v2"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

const authInfoChars = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!#%+-=?"

// cltrid returns a fresh client transaction identifier, optionally prefixed.
func cltrid(prefix ...string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(prefix) > 0 && prefix[0] != "" {
		return prefix[0] + "-" + id
	}
	return id
}

// authInfo returns a random password of length n suitable for an
// authorization info element. n is clamped to [8, 64].
func authInfo(n int) string {
	n = min(max(n, 8), 64)
	b := make([]byte, n)
	for i := range b {
		b[i] = authInfoChars[rand.IntN(len(authInfoChars))]
	}
	return string(b)
}

// eppDate formats t the way registries expect dates: RFC 3339 in UTC.
// Strings are passed through.
func eppDate(t any) string {
	switch v := t.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case string:
		return v
	default:
		return ""
	}
}

// isSet returns true if a value is not its zero value.
func isSet(val any) bool {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return false
	}
	return !v.IsZero()
}
