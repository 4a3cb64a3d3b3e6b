package split

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/dataset-m/dsm/internal/logger"
)

// IndexRow records where one image of a split came from
type IndexRow struct {
	RunID  string `parquet:"run_id" json:"run_id"`
	Split  string `parquet:"split" json:"split"`
	Image  string `parquet:"image" json:"image"`
	Label  string `parquet:"label" json:"label,omitempty"`
	Source string `parquet:"source" json:"source"`
}

// Index formats
const (
	IndexParquet = "parquet"
	IndexJSONL   = "jsonl"
)

// WriteIndex writes rows as index.parquet or index.jsonl inside out
func WriteIndex(out, format string, rows []IndexRow) (string, error) {
	switch format {
	case IndexParquet:
		path := filepath.Join(out, "index.parquet")
		if err := parquet.WriteFile(path, rows); err != nil {
			return "", fmt.Errorf("failed to write parquet index: %w", err)
		}
		return path, nil
	case IndexJSONL:
		path := filepath.Join(out, "index.jsonl")
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("failed to create index: %w", err)
		}
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				f.Close()
				return "", fmt.Errorf("failed to encode index row: %w", err)
			}
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write index: %w", err)
		}
		return path, f.Close()
	default:
		return "", fmt.Errorf("unsupported index format: %s (supported: parquet, jsonl)", format)
	}
}

// LoadIndex reads an index written by WriteIndex, picking the format from
// the file extension
func LoadIndex(path string) ([]IndexRow, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".parquet":
		return loadParquetIndex(path)
	case ".jsonl", ".json":
		return loadJSONLIndex(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func loadJSONLIndex(path string) ([]IndexRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var rows []IndexRow
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row IndexRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading index: %w", err)
	}
	return rows, nil
}

func loadParquetIndex(path string) ([]IndexRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	logger.S().Debugw("Parquet index opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[IndexRow](pf)
	defer reader.Close()

	rows := make([]IndexRow, 0, pf.NumRows())
	batch := make([]IndexRow, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet index: %w", err)
		}
	}
	return rows, nil
}
