package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukimemi/spyrun/internal/config"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestSweep_EmitsOneEventPerMatchingFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.log"))
	writeFile(t, filepath.Join(root, "b.txt"))

	events, err := Sweep(root, config.Walk{Pattern: `\.log$`}, "Modify")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Modify", events[0].Kind)
	assert.Contains(t, events[0].Path(), "a.log")
}

func TestSweep_RespectsMinAndMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shallow.txt"))
	writeFile(t, filepath.Join(root, "nested", "deep.txt"))

	events, err := Sweep(root, config.Walk{MinDepth: 2}, "Create")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Path(), "deep.txt")

	events, err = Sweep(root, config.Walk{MaxDepth: 1}, "Create")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Path(), "shallow.txt")
}

func TestSweep_SkipsSymlinksUnlessFollowed(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real.txt")
	writeFile(t, real)
	link := filepath.Join(root, "link.txt")
	require.NoError(t, os.Symlink(real, link))

	events, err := Sweep(root, config.Walk{}, "Modify")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = Sweep(root, config.Walk{FollowSymlinks: true}, "Modify")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSweep_NoPatternMatchesEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"))
	writeFile(t, filepath.Join(root, "b.bin"))

	events, err := Sweep(root, config.Walk{}, "Modify")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSweep_BadPatternIsAnError(t *testing.T) {
	root := t.TempDir()
	_, err := Sweep(root, config.Walk{Pattern: "(unclosed"}, "Modify")
	assert.Error(t, err)
}

func TestDefaultKind(t *testing.T) {
	assert.Equal(t, "Modify", DefaultKind(nil))
	assert.Equal(t, "Create", DefaultKind([]string{"Create", "Modify"}))
}
