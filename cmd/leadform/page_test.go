package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEdits(t *testing.T) {
	edits, err := parseEdits([]string{"first_name=Ada", "message=a=b", "title="})
	require.NoError(t, err)
	assert.Equal(t, []fieldEdit{
		{Name: "first_name", Value: "Ada"},
		{Name: "message", Value: "a=b"},
		{Name: "title", Value: ""},
	}, edits)

	_, err = parseEdits([]string{"=x"})
	assert.Error(t, err)
}

func TestSelectForm(t *testing.T) {
	_, f, err := selectForm(contactPage, 0)
	require.NoError(t, err)
	assert.Equal(t, "website_cta_contactus", f.Value("elqFormName"))

	_, _, err = selectForm(`<html><body><form><input name="x"></form></body></html>`, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lead form found")

	_, _, err = selectForm(contactPage, -1)
	assert.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
