// Package split partitions a folder of labelled images into YOLO
// train/val/test subsets and writes the train.yml manifest.
package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/yolo"
)

// Names of the three subsets, in output order
const (
	Train = "train"
	Val   = "val"
	Test  = "test"
)

// Subsets lists the split names in the order images are assigned
var Subsets = []string{Train, Val, Test}

// BinDir is the recycle bin directory name; it is never read as dataset content
const BinDir = "delete"

const ratioTolerance = 1e-6

var (
	ErrInvalidRatios   = errors.New("train, val and test ratios must sum to 1.0")
	ErrDatasetNotFound = errors.New("dataset path does not exist")
	ErrNoImages        = errors.New("no images found in dataset")
	ErrOutputOverlaps  = errors.New("output path must not be the dataset or contain it")
)

// Options controls a split run
type Options struct {
	DatasetPath string
	OutputPath  string
	TrainRatio  float64
	ValRatio    float64
	TestRatio   float64

	// ContinueOnError records copy failures in Result.Failures instead of aborting
	ContinueOnError bool
	// IndexFormat is "", "parquet" or "jsonl"
	IndexFormat string
	// Seed makes the shuffle reproducible; zero seeds from the clock
	Seed int64
	// Resize caps the longer side of copied images in pixels; zero copies bytes unchanged
	Resize int
}

// Failure is one file that could not be copied
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result summarises a split run
type Result struct {
	RunID      string         `json:"run_id"`
	OutputPath string         `json:"output_path"`
	Counts     map[string]int `json:"counts"`
	Labels     int            `json:"labels"`
	Classes    []string       `json:"classes"`
	Manifest   string         `json:"manifest"`
	Index      string         `json:"index,omitempty"`
	Failures   []Failure      `json:"failures,omitempty"`
}

// Total is the number of images assigned to any subset
func (r *Result) Total() int {
	return r.Counts[Train] + r.Counts[Val] + r.Counts[Test]
}

// ValidateRatios checks the three ratios are non-negative and sum to one
func ValidateRatios(train, val, test float64) error {
	if train < 0 || val < 0 || test < 0 {
		return fmt.Errorf("%w: negative ratio", ErrInvalidRatios)
	}
	if sum := train + val + test; math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("%w: got %.6f", ErrInvalidRatios, sum)
	}
	return nil
}

// Sizes returns the number of train, val and test items for n images.
// Train and val are floored; test takes the remainder.
func Sizes(n int, train, val float64) (int, int, int) {
	tr := int(math.Floor(float64(n) * train))
	va := int(math.Floor(float64(n) * val))
	if tr+va > n {
		va = n - tr
	}
	return tr, va, n - tr - va
}

// Split runs the whole split: validation, output reset, image discovery,
// shuffling, copying, class discovery, classes.txt, train.yml and the
// optional index.
func Split(ctx context.Context, opts Options) (*Result, error) {
	if err := ValidateRatios(opts.TrainRatio, opts.ValRatio, opts.TestRatio); err != nil {
		return nil, err
	}
	if _, err := os.Stat(opts.DatasetPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, opts.DatasetPath)
		}
		return nil, fmt.Errorf("failed to stat dataset: %w", err)
	}

	if err := checkOutput(opts.DatasetPath, opts.OutputPath); err != nil {
		return nil, err
	}
	if err := resetOutput(opts.OutputPath); err != nil {
		return nil, err
	}

	found, err := images.Find(opts.DatasetPath, []string{BinDir, yolo.LabelsDir}, opts.OutputPath)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, opts.DatasetPath)
	}

	labelIndex, err := indexLabels(opts.DatasetPath, opts.OutputPath)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(found), func(i, j int) { found[i], found[j] = found[j], found[i] })

	trainN, valN, _ := Sizes(len(found), opts.TrainRatio, opts.ValRatio)

	res := &Result{
		RunID:      uuid.NewString(),
		OutputPath: opts.OutputPath,
		Counts:     map[string]int{Train: 0, Val: 0, Test: 0},
	}
	logger.S().Infow("Splitting dataset",
		"run_id", res.RunID,
		"images", len(found),
		"train", trainN,
		"val", valN,
		"test", len(found)-trainN-valN)

	var rows []IndexRow
	used := make(map[string]map[string]bool, len(Subsets))
	for _, s := range Subsets {
		used[s] = make(map[string]bool)
	}
	for i, src := range found {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("split cancelled: %w", err)
		}

		subset := Test
		switch {
		case i < trainN:
			subset = Train
		case i < trainN+valN:
			subset = Val
		}

		stem := uniqueStem(src, used[subset])
		row, err := copyPair(src, subset, stem, labelIndex, opts)
		if err != nil {
			if !opts.ContinueOnError {
				return nil, err
			}
			logger.S().Warnw("Failed to copy image", "path", src, "error", err)
			res.Failures = append(res.Failures, Failure{Path: src, Error: err.Error()})
			continue
		}
		row.RunID = res.RunID
		rows = append(rows, row)
		res.Counts[subset]++
		if row.Label != "" {
			res.Labels++
		}
	}

	ids, names, err := DiscoverClasses(opts.DatasetPath, opts.OutputPath)
	if err != nil {
		return nil, err
	}
	logger.S().Debugw("Discovered classes", "ids", ids, "names", names)

	for _, s := range Subsets {
		path := filepath.Join(opts.OutputPath, s, yolo.LabelsDir, yolo.ClassesFile)
		if err := yolo.WriteClasses(path, names); err != nil {
			return nil, err
		}
	}

	manifest, err := WriteManifest(opts.OutputPath)
	if err != nil {
		return nil, err
	}
	res.Manifest = manifest
	res.Classes = names

	if opts.IndexFormat != "" {
		path, err := WriteIndex(opts.OutputPath, opts.IndexFormat, rows)
		if err != nil {
			return nil, err
		}
		res.Index = path
	}

	logger.S().Infow("Split complete",
		"run_id", res.RunID,
		"train", res.Counts[Train],
		"val", res.Counts[Val],
		"test", res.Counts[Test],
		"labels", res.Labels,
		"failures", len(res.Failures))
	return res, nil
}

// checkOutput refuses an output folder that is the dataset or one of its
// ancestors, since resetting it would delete the source images
func checkOutput(dataset, out string) error {
	dsAbs, err := filepath.Abs(dataset)
	if err != nil {
		return fmt.Errorf("failed to resolve dataset path: %w", err)
	}
	outAbs, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(dsAbs); err == nil {
		dsAbs = real
	}
	if real, err := filepath.EvalSymlinks(outAbs); err == nil {
		outAbs = real
	}
	rel, err := filepath.Rel(outAbs, dsAbs)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("%w: %s", ErrOutputOverlaps, out)
	}
	return nil
}

// uniqueStem returns the output stem for src within one subset, appending _N
// when another image already took the name. Stems are compared without the
// extension because the label file is named after the stem.
func uniqueStem(src string, used map[string]bool) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	candidate := stem
	for i := 1; used[candidate]; i++ {
		candidate = stem + "_" + strconv.Itoa(i)
	}
	if candidate != stem {
		logger.S().Warnw("Duplicate image name, renaming in output", "path", src, "name", candidate+filepath.Ext(src))
	}
	used[candidate] = true
	return candidate
}

func resetOutput(out string) error {
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("failed to clear output directory: %w", err)
	}
	for _, s := range Subsets {
		for _, d := range []string{"images", yolo.LabelsDir} {
			if err := os.MkdirAll(filepath.Join(out, s, d), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
	}
	return nil
}

// indexLabels maps label base names to files anywhere under root, outside
// the recycle bin and the output directory.
func indexLabels(root, out string) (map[string][]string, error) {
	outAbs, _ := filepath.Abs(out)
	idx := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name() == BinDir {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil && abs == outAbs {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.ToLower(filepath.Ext(name)) != ".txt" || name == yolo.ClassesFile {
			return nil
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		idx[base] = append(idx[base], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index labels: %w", err)
	}
	return idx, nil
}

// findLabel prefers the sibling labels/ file of the image, then a .txt next
// to it, then any other match.
func findLabel(imagePath string, idx map[string][]string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	candidates := idx[base]
	if len(candidates) == 0 {
		return ""
	}
	preferred := []string{
		yolo.LabelPath(imagePath),
		filepath.Join(filepath.Dir(imagePath), base+".txt"),
	}
	for _, p := range preferred {
		for _, c := range candidates {
			if c == p {
				return c
			}
		}
	}
	return candidates[0]
}

func copyPair(src, subset, stem string, idx map[string][]string, opts Options) (IndexRow, error) {
	name := stem + filepath.Ext(src)
	dstImage := filepath.Join(opts.OutputPath, subset, "images", name)

	var err error
	if opts.Resize > 0 {
		err = images.ResizeFile(src, dstImage, opts.Resize)
	} else {
		err = copyFile(src, dstImage)
	}
	if err != nil {
		return IndexRow{}, fmt.Errorf("failed to copy image %s: %w", src, err)
	}

	row := IndexRow{
		Split:  subset,
		Image:  filepath.ToSlash(filepath.Join(subset, "images", name)),
		Source: src,
	}

	if label := findLabel(src, idx); label != "" {
		dstLabel := filepath.Join(opts.OutputPath, subset, yolo.LabelsDir, stem+".txt")
		if err := copyFile(label, dstLabel); err != nil {
			return IndexRow{}, fmt.Errorf("failed to copy label %s: %w", label, err)
		}
		row.Label = filepath.ToSlash(filepath.Join(subset, yolo.LabelsDir, stem+".txt"))
	}
	return row, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
