package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// TestLocalBuildSingleSmallFile is the spec's end-to-end scenario 1.
func TestLocalBuildSingleSmallFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "FROM scratch\nCOPY hello.txt /\n")
	writeFile(t, root, "hello.txt", "hi\n")

	entries, err := Walk(root, WalkOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Dockerfile", entries[0].Path)
	require.Equal(t, "hello.txt", entries[1].Path)
	require.Equal(t, KindRegular, entries[0].Kind)
	require.Equal(t, KindRegular, entries[1].Kind)
}

// TestLocalBuildWithSubdirectory is the spec's end-to-end scenario 2.
func TestLocalBuildWithSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "FROM scratch\n")
	writeFile(t, root, "src/a.c", "a")
	writeFile(t, root, "src/b.c", "b")

	entries, err := Walk(root, WalkOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	want := []string{"Dockerfile", "src", "src/a.c", "src/b.c"}
	for i, w := range want {
		require.Equal(t, w, entries[i].Path)
	}
	require.Equal(t, KindDirectory, entries[1].Kind)
}

// TestIgnorePattern is the spec's end-to-end scenario 3.
func TestIgnorePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "FROM scratch\n")
	writeFile(t, root, "src/a.c", "a")
	writeFile(t, root, "src/b.c", "b")
	writeFile(t, root, ".dockerignore", "src/b.c\n")

	entries, err := Walk(root, WalkOptions{IgnorePatterns: []string{"src/b.c"}})
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	require.Equal(t, []string{".dockerignore", "Dockerfile", "src", "src/a.c"}, paths)
}

func TestWalkerDeterminism(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "x")
	writeFile(t, root, "a/b/c.txt", "y")
	writeFile(t, root, "a/b/d.txt", "z")
	writeFile(t, root, "z.txt", "w")

	first, err := Walk(root, WalkOptions{})
	require.NoError(t, err)
	second, err := Walk(root, WalkOptions{})
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestFollowPathsRestriction(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "x")
	writeFile(t, root, "src/a.c", "a")
	writeFile(t, root, "other/b.c", "b")

	entries, err := Walk(root, WalkOptions{FollowPaths: []string{"src"}})
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	require.Equal(t, []string{"src", "src/a.c"}, paths)
}

func TestSymlinkNotFollowed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.txt", "x")
	require.NoError(t, os.Symlink("real.txt", filepath.Join(root, "link.txt")))

	entries, err := Walk(root, WalkOptions{})
	require.NoError(t, err)

	var link *Entry
	for i := range entries {
		if entries[i].Path == "link.txt" {
			link = &entries[i]
		}
	}
	require.NotNil(t, link)
	require.Equal(t, KindSymlink, link.Kind)
	require.Equal(t, "real.txt", link.Linkname)
}
