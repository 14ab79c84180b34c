package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeLinesAppendsMissing(t *testing.T) {
	out, changed := MergeLines("existing line\n", []string{"new line"})
	require.True(t, changed)
	require.Equal(t, "existing line\nnew line\n", out)
}

func TestMergeLinesNeverDuplicates(t *testing.T) {
	out, changed := MergeLines("a hard nofile 4096\n", []string{"a hard nofile 4096"})
	require.False(t, changed)
	require.Equal(t, "a hard nofile 4096\n", out)
}

func TestMergeLinesPreservesOrderingAndContent(t *testing.T) {
	content := "# comment\nfirst\nsecond\n"
	out, changed := MergeLines(content, []string{"second", "third"})
	require.True(t, changed)
	require.Equal(t, "# comment\nfirst\nsecond\nthird\n", out)
}

func TestMergeLinesIntoEmptyFile(t *testing.T) {
	out, changed := MergeLines("", []string{"only line"})
	require.True(t, changed)
	require.Equal(t, "only line\n", out)
}

func TestMergeLinesIsIdempotent(t *testing.T) {
	once, _ := MergeLines("base\n", []string{"x", "y"})
	twice, changed := MergeLines(once, []string{"x", "y"})
	require.False(t, changed)
	require.Equal(t, once, twice)
}

func TestMergeLinesAddsNewlineToUnterminatedFile(t *testing.T) {
	out, changed := MergeLines("no newline", []string{"added"})
	require.True(t, changed)
	require.Equal(t, "no newline\nadded\n", out)
}
