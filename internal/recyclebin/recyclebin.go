// Package recyclebin implements soft delete inside the dataset tree. A trashed
// file moves into a "delete" directory next to it and the original location is
// kept in delete/.meta.json.
package recyclebin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dataset-m/dsm/internal/logger"
)

const (
	// DirName is the name of every recycle bin directory
	DirName = "delete"
	// MetaFile maps names inside the bin to their original paths
	MetaFile = ".meta.json"
)

var (
	ErrNotInBin = errors.New("entry is not in the recycle bin")
	ErrNotBin   = errors.New("not a recycle bin directory")
	ErrBadName  = errors.New("invalid recycle bin entry name")
)

// Entry is one item inside a recycle bin
type Entry struct {
	Name         string    `json:"name"`
	Bin          string    `json:"bin"`
	OriginalPath string    `json:"original_path"`
	Size         int64     `json:"size"`
	IsDir        bool      `json:"is_dir"`
	ModTime      time.Time `json:"mod_time"`
}

// Path is the current location of the entry inside its bin
func (e Entry) Path() string { return filepath.Join(e.Bin, e.Name) }

// BinFor returns the recycle bin that receives path
func BinFor(path string) string {
	return filepath.Join(filepath.Dir(path), DirName)
}

// Trash moves path into the recycle bin beside it and returns the new path.
// Name collisions in the bin are resolved as name_1.ext, name_2.ext, ...
func Trash(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Lstat(abs); err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if filepath.Base(filepath.Dir(abs)) == DirName {
		return "", fmt.Errorf("%s is already in a recycle bin", path)
	}

	bin := BinFor(abs)
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recycle bin: %w", err)
	}

	dst := uniquePath(filepath.Join(bin, filepath.Base(abs)))
	if err := os.Rename(abs, dst); err != nil {
		return "", fmt.Errorf("failed to move %s to recycle bin: %w", path, err)
	}

	meta, err := readMeta(bin)
	if err != nil {
		return "", err
	}
	meta[filepath.Base(dst)] = abs
	if err := writeMeta(bin, meta); err != nil {
		return "", err
	}

	logger.S().Infow("Moved to recycle bin", "from", abs, "to", dst)
	return dst, nil
}

// Destination returns where Restore would move name: its recorded original
// path, or the directory holding the bin when no record exists
func Destination(bin, name string) (string, error) {
	if err := checkBin(bin); err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	meta, err := readMeta(bin)
	if err != nil {
		return "", err
	}
	if dst, ok := meta[name]; ok && dst != "" {
		return dst, nil
	}
	return filepath.Join(filepath.Dir(bin), name), nil
}

// Restore moves name out of bin to its Destination. Collisions at the
// destination are renamed like Trash does. It returns the restored path.
func Restore(bin, name string) (string, error) {
	dst, err := Destination(bin, name)
	if err != nil {
		return "", err
	}
	src := filepath.Join(bin, name)
	if _, err := os.Lstat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotInBin, name)
		}
		return "", fmt.Errorf("failed to stat %s: %w", src, err)
	}

	meta, err := readMeta(bin)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create restore directory: %w", err)
	}
	dst = uniquePath(dst)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", name, err)
	}

	delete(meta, name)
	if err := finish(bin, meta); err != nil {
		return "", err
	}
	logger.S().Infow("Restored from recycle bin", "name", name, "to", dst)
	return dst, nil
}

// Purge permanently deletes name from bin
func Purge(bin, name string) error {
	if err := checkBin(bin); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	target := filepath.Join(bin, name)
	if _, err := os.Lstat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotInBin, name)
		}
		return fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to delete %s: %w", target, err)
	}

	meta, err := readMeta(bin)
	if err != nil {
		return err
	}
	delete(meta, name)
	if err := finish(bin, meta); err != nil {
		return err
	}
	logger.S().Infow("Purged from recycle bin", "path", target)
	return nil
}

// Empty removes every recycle bin under root and returns how many were removed
func Empty(root string) (int, error) {
	bins, err := FindBins(root)
	if err != nil {
		return 0, err
	}
	for i, b := range bins {
		if err := os.RemoveAll(b); err != nil {
			return i, fmt.Errorf("failed to remove %s: %w", b, err)
		}
		logger.S().Debugw("Removed recycle bin", "path", b)
	}
	return len(bins), nil
}

// FindBins returns every recycle bin directory under root, root included
func FindBins(root string) ([]string, error) {
	var bins []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == DirName {
			bins = append(bins, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return bins, nil
}

// List returns the entries of every recycle bin under root
func List(root string) ([]Entry, error) {
	bins, err := FindBins(root)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, bin := range bins {
		got, err := ListBin(bin)
		if err != nil {
			return nil, err
		}
		entries = append(entries, got...)
	}
	return entries, nil
}

// ListBin returns the entries of a single bin sorted by name
func ListBin(bin string) ([]Entry, error) {
	items, err := os.ReadDir(bin)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", bin, err)
	}
	meta, err := readMeta(bin)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, it := range items {
		if it.Name() == MetaFile {
			continue
		}
		info, err := it.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", it.Name(), err)
		}
		orig, ok := meta[it.Name()]
		if !ok {
			orig = filepath.Join(filepath.Dir(bin), it.Name())
		}
		entries = append(entries, Entry{
			Name:         it.Name(),
			Bin:          bin,
			OriginalPath: orig,
			Size:         info.Size(),
			IsDir:        it.IsDir(),
			ModTime:      info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Cleanup removes bin, and its metadata, when nothing else is left in it
func Cleanup(bin string) (bool, error) {
	items, err := os.ReadDir(bin)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", bin, err)
	}
	for _, it := range items {
		if it.Name() != MetaFile {
			return false, nil
		}
	}
	if err := os.RemoveAll(bin); err != nil {
		return false, fmt.Errorf("failed to remove empty recycle bin: %w", err)
	}
	logger.S().Debugw("Removed empty recycle bin", "path", bin)
	return true, nil
}

func finish(bin string, meta map[string]string) error {
	removed, err := Cleanup(bin)
	if err != nil || removed {
		return err
	}
	return writeMeta(bin, meta)
}

func checkBin(bin string) error {
	if filepath.Base(filepath.Clean(bin)) != DirName {
		return fmt.Errorf("%w: %s", ErrNotBin, bin)
	}
	return nil
}

// checkName accepts only a plain entry name directly inside the bin
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || name == MetaFile ||
		filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// uniquePath returns path, or the first free name_N.ext variant of it
func uniquePath(path string) string {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, base+"_"+strconv.Itoa(i)+ext)
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

func readMeta(bin string) (map[string]string, error) {
	meta := map[string]string{}
	data, err := os.ReadFile(filepath.Join(bin, MetaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recycle bin metadata: %w", err)
	}
	if len(data) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse recycle bin metadata: %w", err)
	}
	return meta, nil
}

func writeMeta(bin string, meta map[string]string) error {
	path := filepath.Join(bin, MetaFile)
	if len(meta) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove recycle bin metadata: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode recycle bin metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recycle bin metadata: %w", err)
	}
	return nil
}
