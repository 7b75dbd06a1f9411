package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderShortExpandsEachCharacter(t *testing.T) {
	argv, err := render(GNUOpt, Options{Short("xz")})
	require.NoError(t, err)
	assert.Equal(t, []string{"-x", "-z"}, argv)

	argv, err = render(OneDash, Options{Short("xz")})
	require.NoError(t, err)
	assert.Equal(t, []string{"-x", "-z"}, argv)
}

func TestRenderGNUOptFlagAndValue(t *testing.T) {
	argv, err := render(GNUOpt, Options{Flag("w"), Flag("porcelain"), Val("abbrev", "7")})
	require.NoError(t, err)
	assert.Equal(t, []string{"-w", "--porcelain", "--abbrev=7"}, argv)
}

func TestRenderRejectsEqualsInFlagName(t *testing.T) {
	_, err := render(GNUOpt, Options{Flag("bad=name")})
	require.Error(t, err)
}
