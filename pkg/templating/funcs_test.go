package templating

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTemplateFunctions validates the behavior of the engine's own template functions.
func TestTemplateFunctions(t *testing.T) {
	t.Run("Escape", func(t *testing.T) {
		assert.Equal(t, "a &lt;b&gt; &amp; &#34;c&#34;", escape(`a <b> & "c"`))
		assert.Equal(t, "", escape(nil))
		assert.Equal(t, "42", escape(42))
	})

	t.Run("Cltrid", func(t *testing.T) {
		id := cltrid()
		assert.Len(t, id, 32)
		assert.NotContains(t, id, "-")
		assert.NotEqual(t, id, cltrid(), "cltrid should not repeat")
		assert.True(t, strings.HasPrefix(cltrid("ABC"), "ABC-"))
	})

	t.Run("AuthInfo", func(t *testing.T) {
		assert.Len(t, authInfo(16), 16)
		assert.Len(t, authInfo(1), 8, "authInfo should clamp short lengths")
		assert.Len(t, authInfo(500), 64, "authInfo should clamp long lengths")
		for _, c := range authInfo(64) {
			assert.Contains(t, authInfoChars, string(c))
		}
	})

	t.Run("EppDate", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))
		assert.Equal(t, "2024-03-01T11:30:00Z", eppDate(ts))
		assert.Equal(t, "2024-03-01T11:30:00Z", eppDate(&ts))
		assert.Equal(t, "as-is", eppDate("as-is"))
		assert.Equal(t, "", eppDate(12))
	})

	t.Run("IsSet", func(t *testing.T) {
		assert.False(t, isSet(nil))
		assert.False(t, isSet(""))
		assert.False(t, isSet(0))
		assert.True(t, isSet("x"))
		assert.True(t, isSet([]string{}))
	})

	t.Run("Raw", func(t *testing.T) {
		assert.Equal(t, "", raw(nil))
		assert.Equal(t, "a<b", raw("a<b"))
		assert.Equal(t, "[x y]", raw([]any{"x", "y"}))
		assert.Equal(t, "7", raw(7))
	})

	t.Run("Lookup", func(t *testing.T) {
		lookup := lookupFunc(FuncMap())

		v, err := lookup(map[string]any{"list": []any{"x"}}, "list")
		require.NoError(t, err)
		assert.Equal(t, []any{"x"}, v, "a context entry wins over the function")

		v, err = lookup(map[string]any{"keys": nil}, "keys")
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = lookup(map[string]any{}, "list")
		require.NoError(t, err)
		assert.Empty(t, v, "without an entry the function is called")

		v, err = lookup("not a map", "now")
		require.NoError(t, err)
		assert.IsType(t, time.Time{}, v)

		_, err = lookup(map[string]any{}, "date")
		assert.ErrorContains(t, err, "needs arguments")

		_, err = lookup(nil, "missing")
		assert.ErrorContains(t, err, `no entry for key "missing"`)
	})

	t.Run("FuncMap", func(t *testing.T) {
		funcs := FuncMap()
		for _, name := range []string{"escape", "raw", "lookup", "cltrid", "authInfo", "eppDate", "isSet", "upper", "default"} {
			assert.Contains(t, funcs, name)
		}
	})
}
