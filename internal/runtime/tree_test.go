package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTree(t *testing.T) {
	root, err := BuildTree(map[string]string{
		"package.json":       "{}",
		"src/index.js":       "console.log(1)",
		"src/lib/util.js":    "export {}",
		`src\lib\windows.js`: "win",
		"./README.md":        "# hi",
	})
	require.NoError(t, err)

	assert.True(t, root.Dir)
	assert.Equal(t, 5, root.Files())

	src, ok := root.Lookup("src")
	require.True(t, ok)
	assert.True(t, src.Dir)
	assert.Len(t, src.Children, 2)

	lib, ok := root.Lookup("src/lib")
	require.True(t, ok)
	assert.Len(t, lib.Children, 2)

	win, ok := root.Lookup("src/lib/windows.js")
	require.True(t, ok)
	assert.False(t, win.Dir)
	assert.Equal(t, "win", win.Content)

	readme, ok := root.Lookup("README.md")
	require.True(t, ok)
	assert.Equal(t, "# hi", readme.Content)
}

func TestBuildTreeEmpty(t *testing.T) {
	root, err := BuildTree(nil)
	require.NoError(t, err)
	assert.True(t, root.Dir)
	assert.Empty(t, root.Children)
}

func TestBuildTreeConflicts(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"file then dir", map[string]string{"a": "x", "a/b": "y"}},
		{"backslash dir", map[string]string{"a": "x", `a\b`: "y"}},
		{"deep", map[string]string{"a/b": "x", "a/b/c/d": "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTree(tt.files)
			assert.ErrorIs(t, err, ErrMountConflict)
		})
	}
}

func TestBuildTreeInvalidPaths(t *testing.T) {
	for _, p := range []string{"", "/", "./.", "../etc/passwd", "a/../../b"} {
		_, err := BuildTree(map[string]string{p: "x"})
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", p)
	}
}

func TestWalkOrder(t *testing.T) {
	root, err := BuildTree(map[string]string{
		"b.txt":   "",
		"a/z.txt": "",
		"a/y.txt": "",
	})
	require.NoError(t, err)

	var visited []string
	require.NoError(t, root.Walk(func(p string, _ *Node) error {
		visited = append(visited, p)
		return nil
	}))

	assert.Equal(t, []string{"a", "a/y.txt", "a/z.txt", "b.txt"}, visited)
}

func TestLookupMissing(t *testing.T) {
	root, err := BuildTree(map[string]string{"a/b.txt": "x"})
	require.NoError(t, err)

	_, ok := root.Lookup("a/c.txt")
	assert.False(t, ok)
	_, ok = root.Lookup("a/b.txt/c")
	assert.False(t, ok)

	self, ok := root.Lookup("/")
	require.True(t, ok)
	assert.Same(t, root, self)
}
