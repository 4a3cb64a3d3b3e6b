// Package trainlog reads the per-epoch results.csv written by ultralytics training runs.
package trainlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ResultsFile is the per-epoch log of a training run
const ResultsFile = "results.csv"

var ErrNoResults = errors.New("no results.csv found")

var (
	trainLossKeys = []string{"train/box_loss", "train/cls_loss", "train/dfl_loss"}
	valLossKeys   = []string{"val/box_loss", "val/cls_loss", "val/dfl_loss"}
)

// Epoch is one row of results.csv
type Epoch struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	ValLoss   float64 `json:"val_loss"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MAP50     float64 `json:"map50"`
	MAP5095   float64 `json:"map50_95"`
}

// Log is a parsed training run
type Log struct {
	Epochs []Epoch `json:"epochs"`
}

// Summary condenses a run
type Summary struct {
	Epochs int   `json:"epochs"`
	Best   Epoch `json:"best"`
	Last   Epoch `json:"last"`
}

// Parse reads results.csv. Header names are trimmed because ultralytics pads
// them with spaces; blank lines and missing columns are tolerated.
func Parse(r io.Reader) (*Log, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Log{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}

	log := &Log{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		get := func(key string) (float64, error) {
			i, ok := cols[key]
			if !ok || i >= len(rec) {
				return 0, nil
			}
			s := strings.TrimSpace(rec[i])
			if s == "" {
				return 0, nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d column %s: %w", line, key, err)
			}
			return v, nil
		}
		sum := func(keys []string) (float64, error) {
			var total float64
			for _, k := range keys {
				v, err := get(k)
				if err != nil {
					return 0, err
				}
				total += v
			}
			return total, nil
		}

		var e Epoch
		epoch, err := get("epoch")
		if err != nil {
			return nil, err
		}
		e.Epoch = int(epoch)
		if e.TrainLoss, err = sum(trainLossKeys); err != nil {
			return nil, err
		}
		if e.ValLoss, err = sum(valLossKeys); err != nil {
			return nil, err
		}
		if e.Precision, err = get("metrics/precision(B)"); err != nil {
			return nil, err
		}
		if e.Recall, err = get("metrics/recall(B)"); err != nil {
			return nil, err
		}
		if e.MAP50, err = get("metrics/mAP50(B)"); err != nil {
			return nil, err
		}
		if e.MAP5095, err = get("metrics/mAP50-95(B)"); err != nil {
			return nil, err
		}
		log.Epochs = append(log.Epochs, e)
	}
	return log, nil
}

// ParseFile parses the results.csv at path
func ParseFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Summary reports the best epoch by mAP50-95 and the last epoch
func (l *Log) Summary() Summary {
	s := Summary{Epochs: len(l.Epochs)}
	if len(l.Epochs) == 0 {
		return s
	}
	s.Best = l.Epochs[0]
	for _, e := range l.Epochs[1:] {
		if e.MAP5095 > s.Best.MAP5095 {
			s.Best = e
		}
	}
	s.Last = l.Epochs[len(l.Epochs)-1]
	return s
}

// FindResults locates results.csv for a training output folder. path may be
// the file itself, a run folder, or a base folder containing
// runs/detect/train*, in which case the most recently modified run wins.
func FindResults(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	if p := filepath.Join(path, ResultsFile); fileExists(p) {
		return p, nil
	}

	runs, _ := filepath.Glob(filepath.Join(path, "runs", "detect", "train*", ResultsFile))
	if len(runs) == 0 {
		return "", fmt.Errorf("%w under %s", ErrNoResults, path)
	}
	sort.Slice(runs, func(i, j int) bool {
		return modTime(runs[i]) > modTime(runs[j])
	})
	return runs[0], nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func modTime(p string) int64 {
	info, err := os.Stat(p)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}
