package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/yolo"
)

// DefaultIoU is the match threshold used when none is given
const DefaultIoU = 0.5

// ResultsFile is the name Compare results are saved under
const ResultsFile = "results.json"

// ImageResult is the comparison of one label file pair
type ImageResult struct {
	Name string `json:"name"`
	Counts
	Error string `json:"error,omitempty"`
}

// ClassResult is the aggregate for one class id
type ClassResult struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Counts
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Summary contains aggregate metrics over all images
type Summary struct {
	Images    int     `json:"images"`
	Failed    int     `json:"failed"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	MeanIoU   float64 `json:"mean_iou"`
	// MacroF1 averages F1 over classes that occur in either side
	MacroF1 float64 `json:"macro_f1"`
}

// Results is a full comparison of a prediction folder against references
type Results struct {
	PredDir   string        `json:"pred_dir"`
	RefDir    string        `json:"ref_dir"`
	Threshold float64       `json:"iou_threshold"`
	Images    []ImageResult `json:"images"`
	Classes   []ClassResult `json:"classes"`
	Summary   Summary       `json:"summary"`
}

// LabelDir returns dir/labels when it exists, otherwise dir
func LabelDir(dir string) string {
	sub := filepath.Join(dir, yolo.LabelsDir)
	if info, err := os.Stat(sub); err == nil && info.IsDir() {
		return sub
	}
	return dir
}

func labelNames(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || e.Name() == yolo.ClassesFile || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names[e.Name()] = true
	}
	return names, nil
}

type imageOutcome struct {
	result ImageResult
	counts map[int]Counts
	ious   []float64
}

// Compare matches every label file of predDir against the file with the same
// name in refDir. Either directory may be a dataset folder with a labels/
// subfolder. A file present on one side only counts entirely as FP or FN.
func Compare(predDir, refDir string, threshold float64) (*Results, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("iou threshold must be in (0,1], got %g", threshold)
	}
	predLabels, refLabels := LabelDir(predDir), LabelDir(refDir)

	predNames, err := labelNames(predLabels)
	if err != nil {
		return nil, err
	}
	refNames, err := labelNames(refLabels)
	if err != nil {
		return nil, err
	}
	all := make([]string, 0, len(predNames)+len(refNames))
	for n := range predNames {
		all = append(all, n)
	}
	for n := range refNames {
		if !predNames[n] {
			all = append(all, n)
		}
	}
	sort.Strings(all)

	logger.S().Infow("Comparing label folders", "pred", predLabels, "ref", refLabels, "files", len(all), "iou", threshold)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 8)
	outcomes := make(chan imageOutcome, len(all))
	for _, name := range all {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			outcomes <- compareFile(name, filepath.Join(predLabels, name), filepath.Join(refLabels, name), threshold)
		}(name)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	res := &Results{PredDir: predDir, RefDir: refDir, Threshold: threshold}
	perClass := make(map[int]Counts)
	var ious []float64
	for o := range outcomes {
		res.Images = append(res.Images, o.result)
		for id, c := range o.counts {
			agg := perClass[id]
			agg.add(c)
			perClass[id] = agg
		}
		ious = append(ious, o.ious...)
	}
	sort.Slice(res.Images, func(i, j int) bool { return res.Images[i].Name < res.Images[j].Name })

	names, _ := yolo.ReadClasses(filepath.Join(refLabels, yolo.ClassesFile))
	res.Classes = classResults(perClass, names)
	res.Summary = summarize(res, ious)
	return res, nil
}

func compareFile(name, predPath, refPath string, threshold float64) imageOutcome {
	out := imageOutcome{result: ImageResult{Name: name}}
	pred, err := ReadBoxes(predPath)
	if err != nil {
		out.result.Error = err.Error()
		return out
	}
	ref, err := ReadBoxes(refPath)
	if err != nil {
		out.result.Error = err.Error()
		return out
	}
	out.counts, out.ious = Match(pred, ref, threshold)
	for _, c := range out.counts {
		out.result.Counts.add(c)
	}
	return out
}

func classResults(perClass map[int]Counts, names []string) []ClassResult {
	ids := make([]int, 0, len(perClass))
	for id := range perClass {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]ClassResult, 0, len(ids))
	for _, id := range ids {
		c := perClass[id]
		name := fmt.Sprintf("class_%d", id)
		if id < len(names) {
			name = names[id]
		}
		out = append(out, ClassResult{
			ID:        id,
			Name:      name,
			Counts:    c,
			Precision: c.Precision(),
			Recall:    c.Recall(),
			F1:        c.F1(),
		})
	}
	return out
}

func summarize(res *Results, ious []float64) Summary {
	s := Summary{Images: len(res.Images)}
	var total Counts
	for _, img := range res.Images {
		if img.Error != "" {
			s.Failed++
			continue
		}
		total.add(img.Counts)
	}
	s.TP, s.FP, s.FN = total.TP, total.FP, total.FN
	s.Precision, s.Recall, s.F1 = total.Precision(), total.Recall(), total.F1()

	if len(ious) > 0 {
		var sum float64
		for _, v := range ious {
			sum += v
		}
		s.MeanIoU = sum / float64(len(ious))
	}
	if len(res.Classes) > 0 {
		var sum float64
		for _, c := range res.Classes {
			sum += c.F1
		}
		s.MacroF1 = sum / float64(len(res.Classes))
	}
	return s
}

// SaveResults writes results.json into outputDir
func SaveResults(results *Results, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(filepath.Join(outputDir, ResultsFile))
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// LoadResults reads results.json from resultsDir
func LoadResults(resultsDir string) (*Results, error) {
	file, err := os.Open(filepath.Join(resultsDir, ResultsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	var results Results
	if err := json.NewDecoder(file).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return &results, nil
}
