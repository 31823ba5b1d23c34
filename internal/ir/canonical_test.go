package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"b": 1, "a": true, "c": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":true,"b":1,"c":"x"}`, string(out))
}

func TestMarshalCanonical_UTF16Ordering(t *testing.T) {
	// U+E000 sorts before U+1F600 in UTF-8 byte order, but U+1F600 encodes
	// as the surrogate pair D83D DE00 and sorts first in UTF-16.
	out, err := MarshalCanonical(map[string]any{"\uE000": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uE000\":1}", string(out))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	out, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(out))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	out, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(out))

	out, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(out), "escaped backslash text stays escaped")
}

func TestMarshalCanonical_Arrays(t *testing.T) {
	out, err := MarshalCanonical([]any{"x", int64(2), false, []string{"y"}})
	require.NoError(t, err)
	assert.Equal(t, `["x",2,false,["y"]]`, string(out))
}

func TestMarshalCanonical_Unsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{ A int }{A: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}
