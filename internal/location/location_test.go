package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	ctx, err := Parse("https://www.example.com:8443/contact?utm_source=x&campid=9", "en-us")
	require.NoError(t, err)

	assert.Equal(t, "https://www.example.com:8443", ctx.Origin())
	assert.Equal(t, "/contact", ctx.Path())
	assert.Equal(t, "utm_source=x&campid=9", ctx.RawQuery())
	assert.Equal(t, "x", ctx.Param("utm_source"))
	assert.Equal(t, "", ctx.Param("missing"))
	assert.Equal(t, "en-US", ctx.Language())
}

func TestParse_RejectsRelative(t *testing.T) {
	_, err := Parse("/contact", "")
	assert.Error(t, err)
}

func TestPath_DefaultsToRoot(t *testing.T) {
	ctx, err := Parse("https://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "/", ctx.Path())
	assert.Equal(t, "", ctx.Language())
}

func TestLanguage_KeepsUnparsable(t *testing.T) {
	ctx := &Context{Locale: "not a locale!"}
	assert.Equal(t, "not a locale!", ctx.Language())
}

func TestResolve(t *testing.T) {
	ctx, err := Parse("https://example.com/a/b?x=1", "")
	require.NoError(t, err)

	got, err := ctx.Resolve("/capture")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/capture", got)

	got, err = ctx.Resolve("https://forms.example.net/e/f2")
	require.NoError(t, err)
	assert.Equal(t, "https://forms.example.net/e/f2", got)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	assert.Equal(t, "", r.Last())
	require.NoError(t, r.Navigate("https://a"))
	require.NoError(t, r.Navigate("https://b"))
	assert.Equal(t, "https://b", r.Last())
	assert.Equal(t, 2, r.Count())
}
