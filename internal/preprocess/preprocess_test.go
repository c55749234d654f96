package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestIncludeAndDefine(t *testing.T) {
	// Scenario D from spec §8: a.rtmc defines N, b.rtmc includes a.rtmc and
	// uses N; the array size must resolve to 4*sizeof(int) downstream, but
	// here we only assert the textual expansion the later passes rely on.
	dir := t.TempDir()
	writeTemp(t, dir, "a.rtmc", "#define N 4\n")
	b := writeTemp(t, dir, "b.rtmc", "#include \"a.rtmc\";\nint arr[N];\n")

	pp := New(Options{})
	lines, err := pp.Run(b)
	require.Nil(t, err)

	var joined string
	for _, l := range lines {
		joined += l.Text + "\n"
	}
	assert.Contains(t, joined, "int arr[4];")
}

func TestIncludeIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.rtmc", "int shared;\n")
	b := writeTemp(t, dir, "b.rtmc",
		"#include \"a.rtmc\";\n#include \"a.rtmc\";\nint x;\n")

	pp := New(Options{})
	lines, err := pp.Run(b)
	require.Nil(t, err)

	count := 0
	for _, l := range lines {
		if l.Text == "int shared;" {
			count++
		}
	}
	assert.Equal(t, 1, count, "repeated #include of the same file must be idempotent")
}

func TestIncludeNotFound(t *testing.T) {
	dir := t.TempDir()
	b := writeTemp(t, dir, "b.rtmc", "#include \"missing.rtmc\";\n")

	pp := New(Options{})
	_, err := pp.Run(b)
	require.NotNil(t, err)
	assert.Equal(t, "IncludeNotFound", string(err.Kind))
}

func TestWordBoundaryMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	b := writeTemp(t, dir, "b.rtmc", "#define SIZE 8\nint bigsize;\nint arr[SIZE];\n")

	pp := New(Options{})
	lines, err := pp.Run(b)
	require.Nil(t, err)

	var joined string
	for _, l := range lines {
		joined += l.Text + "\n"
	}
	// "bigsize" must NOT become "big8" - word-boundary matching only.
	assert.Contains(t, joined, "int bigsize;")
	assert.Contains(t, joined, "int arr[8];")
}

func TestCyclicMacroDetected(t *testing.T) {
	dir := t.TempDir()
	b := writeTemp(t, dir, "b.rtmc", "#define A B\n#define B A\nint x = A;\n")

	pp := New(Options{})
	_, err := pp.Run(b)
	require.NotNil(t, err)
	assert.Equal(t, "CyclicMacro", string(err.Kind))
}
