package split

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dataset-m/dsm/internal/yolo"
)

// DiscoverClasses scans every label file under root, skipping the recycle bin
// and the skip directory, and returns the distinct class ids in ascending
// order with the class names. Names are index-addressed so a label's id is
// its position: the first classes.txt found is kept whole and padded with
// "class_<i>" up to the largest id. With neither ids nor a classes.txt the
// names are ["default"].
func DiscoverClasses(root, skip string) ([]int, []string, error) {
	skipAbs, _ := filepath.Abs(skip)

	seen := make(map[int]bool)
	var known []string
	haveClasses := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name() == BinDir {
				return filepath.SkipDir
			}
			if skip != "" {
				if abs, err := filepath.Abs(path); err == nil && abs == skipAbs {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(d.Name())) != ".txt" {
			return nil
		}
		if d.Name() == yolo.ClassesFile {
			if !haveClasses {
				names, err := yolo.ReadClasses(path)
				if err != nil {
					return err
				}
				known, haveClasses = names, true
			}
			return nil
		}
		return collectIDs(path, seen)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan labels: %w", err)
	}

	if len(seen) == 0 && !haveClasses {
		return nil, []string{"default"}, nil
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	n := len(known)
	if len(ids) > 0 && ids[len(ids)-1] >= n {
		n = ids[len(ids)-1] + 1
	}
	names := make([]string, n)
	for i := range names {
		if i < len(known) {
			names[i] = known[i]
		} else {
			names[i] = "class_" + strconv.Itoa(i)
		}
	}
	return ids, names, nil
}

func collectIDs(path string, seen map[int]bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if id, ok := yolo.ParseClassID(fields[0]); ok && id >= 0 {
			seen[id] = true
		}
	}
	return sc.Err()
}
