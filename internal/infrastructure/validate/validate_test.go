package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldPrefixesErrors(t *testing.T) {
	v := Field("name", Required(), MaxLength(3))

	require.NoError(t, v("abc"))

	err := v("   ")
	require.Error(t, err)
	assert.Equal(t, "name: this field is required", err.Error())

	err = v("abcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no more than 3 characters")
}

func TestMaxLengthCountsCharacters(t *testing.T) {
	v := MaxLength(3)

	assert.NoError(t, v("äöü"))
	assert.Error(t, v("äöüß"))
	assert.Error(t, MaxBytes(3)("äöü"))
}

func TestNoControlChars(t *testing.T) {
	v := NoControlChars()

	assert.NoError(t, v("hello\nworld\t!"))
	assert.Error(t, v("bell\a"))
}

func TestEscapeHTML(t *testing.T) {
	got := EscapeHTML(`<script>alert("x") & 'y'</script>`)

	assert.Equal(t, "&lt;script&gt;alert(&quot;x&quot;) &amp; &#39;y&#39;&lt;/script&gt;", got)
	assert.False(t, strings.ContainsAny(got, "<>\"'"))
}
