package recyclebin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readMetaFile(t *testing.T, bin string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(bin, MetaFile))
	require.NoError(t, err)
	m := map[string]string{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestTrashRecordsOriginalPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeFile(t, src, "one")

	dst, err := Trash(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DirName, "a.jpg"), dst)
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)
	assert.Equal(t, map[string]string{"a.jpg": src}, readMetaFile(t, filepath.Join(dir, DirName)))
}

func TestTrashRenamesOnCollision(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, DirName)

	for i, want := range []string{"a.jpg", "a_1.jpg", "a_2.jpg"} {
		src := filepath.Join(dir, "a.jpg")
		writeFile(t, src, string(rune('0'+i)))
		dst, err := Trash(src)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(bin, want), dst)
	}

	meta := readMetaFile(t, bin)
	assert.Len(t, meta, 3)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), meta["a_2.jpg"])
}

func TestTrashDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "batch")
	writeFile(t, filepath.Join(sub, "x.png"), "x")

	dst, err := Trash(sub)
	require.NoError(t, err)
	assert.DirExists(t, dst)
	assert.FileExists(t, filepath.Join(dst, "x.png"))
}

func TestTrashRejectsBinContents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeFile(t, src, "x")
	dst, err := Trash(src)
	require.NoError(t, err)

	_, err = Trash(dst)
	assert.Error(t, err)

	_, err = Trash(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeFile(t, src, "data")

	dst, err := Trash(src)
	require.NoError(t, err)
	bin := filepath.Dir(dst)

	restored, err := Restore(bin, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, src, restored)
	assert.FileExists(t, src)
	assert.NoDirExists(t, bin, "empty bin should be removed")
}

func TestRestoreKeepsOtherEntries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	_, err := Trash(a)
	require.NoError(t, err)
	_, err = Trash(b)
	require.NoError(t, err)
	bin := filepath.Join(dir, DirName)

	_, err = Restore(bin, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b.jpg": b}, readMetaFile(t, bin))
}

func TestRestoreToRecordedPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "data", DirName)
	writeFile(t, filepath.Join(bin, "a.jpg"), "a")
	orig := filepath.Join(dir, "elsewhere", "nested", "a.jpg")
	data, err := json.Marshal(map[string]string{"a.jpg": orig})
	require.NoError(t, err)
	writeFile(t, filepath.Join(bin, MetaFile), string(data))

	restored, err := Restore(bin, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, orig, restored)
	assert.FileExists(t, orig)
}

func TestRestoreWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, DirName)
	writeFile(t, filepath.Join(bin, "x.png"), "x")

	restored, err := Restore(bin, "x.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.png"), restored)
}

func TestRestoreCollision(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeFile(t, src, "old")
	_, err := Trash(src)
	require.NoError(t, err)
	writeFile(t, src, "new")

	restored, err := Restore(filepath.Join(dir, DirName), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_1.jpg"), restored)

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRestoreErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Restore(dir, "a.jpg")
	assert.ErrorIs(t, err, ErrNotBin)

	bin := filepath.Join(dir, DirName)
	require.NoError(t, os.MkdirAll(bin, 0o755))
	_, err = Restore(bin, "a.jpg")
	assert.ErrorIs(t, err, ErrNotInBin)
}

func TestRejectsNamesOutsideBin(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "victim.txt")
	writeFile(t, outside, "keep")
	bin := filepath.Join(dir, "data", DirName)
	require.NoError(t, os.MkdirAll(bin, 0o755))

	tests := []string{"", ".", "..", "../../victim.txt", "sub/a.jpg", MetaFile}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Restore(bin, name)
			assert.ErrorIs(t, err, ErrBadName)
			assert.ErrorIs(t, Purge(bin, name), ErrBadName)
			_, err = Destination(bin, name)
			assert.ErrorIs(t, err, ErrBadName)
		})
	}
	assert.FileExists(t, outside)
}

func TestDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sub", "a.jpg")
	writeFile(t, src, "a")
	_, err := Trash(src)
	require.NoError(t, err)
	bin := filepath.Join(dir, "sub", DirName)

	dst, err := Destination(bin, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, src, dst)

	dst, err = Destination(bin, "unknown.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "unknown.jpg"), dst)
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	_, err := Trash(a)
	require.NoError(t, err)
	_, err = Trash(b)
	require.NoError(t, err)
	bin := filepath.Join(dir, DirName)

	require.NoError(t, Purge(bin, "a.jpg"))
	assert.NoFileExists(t, filepath.Join(bin, "a.jpg"))
	assert.Equal(t, map[string]string{"b.jpg": b}, readMetaFile(t, bin))

	require.NoError(t, Purge(bin, "b.jpg"))
	assert.NoDirExists(t, bin)

	assert.ErrorIs(t, Purge(bin, "b.jpg"), ErrNotInBin)
}

func TestListAndEmpty(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "nested", "b.jpg")
	writeFile(t, a, "aaaa")
	writeFile(t, b, "bb")
	_, err := Trash(a)
	require.NoError(t, err)
	_, err = Trash(b)
	require.NoError(t, err)

	entries, err := List(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, a, byName["a.jpg"].OriginalPath)
	assert.Equal(t, int64(4), byName["a.jpg"].Size)
	assert.Equal(t, b, byName["b.jpg"].OriginalPath)
	assert.Equal(t, filepath.Join(root, "nested", DirName), byName["b.jpg"].Bin)

	n, err := Empty(root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err = List(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanup(t *testing.T) {
	bin := filepath.Join(t.TempDir(), DirName)
	writeFile(t, filepath.Join(bin, MetaFile), "{}")

	removed, err := Cleanup(bin)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Cleanup(bin)
	require.NoError(t, err)
	assert.False(t, removed)
}
