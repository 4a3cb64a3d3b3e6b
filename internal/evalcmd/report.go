package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dataset-m/dsm/internal/evaluation"
)

func executeReport(w io.Writer, resultsDir, format string) error {
	results, err := evaluation.LoadResults(resultsDir)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}
	return writeReport(w, results, format)
}

func writeReport(w io.Writer, results *evaluation.Results, format string) error {
	switch format {
	case "text":
		return printTextReport(w, results)
	case "json":
		return printJSONReport(w, results)
	case "csv":
		return printCSVReport(w, results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(w io.Writer, results *evaluation.Results) error {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "YOLO Label Evaluation Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Predictions: %s\n", results.PredDir)
	fmt.Fprintf(w, "References:  %s\n", results.RefDir)
	fmt.Fprintf(w, "IoU:         %.2f\n", results.Threshold)
	fmt.Fprintln(w)

	printSummary(w, results.Summary)

	fmt.Fprintln(w, "\nPer Class:")
	for _, c := range results.Classes {
		fmt.Fprintf(w, "  [%d] %-16s P %6.2f%%  R %6.2f%%  F1 %6.2f%%  (TP %d, FP %d, FN %d)\n",
			c.ID, truncate(c.Name, 16), c.Precision*100, c.Recall*100, c.F1*100, c.TP, c.FP, c.FN)
	}

	var failed []evaluation.ImageResult
	for _, img := range results.Images {
		if img.Error != "" {
			failed = append(failed, img)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(w, "\nFailed Files:")
		for _, img := range failed {
			fmt.Fprintf(w, "  %s: %s\n", img.Name, img.Error)
		}
	}
	return nil
}

func printJSONReport(w io.Writer, results *evaluation.Results) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func printCSVReport(w io.Writer, results *evaluation.Results) error {
	writer := csv.NewWriter(w)

	header := []string{"Class ID", "Class", "TP", "FP", "FN", "Precision", "Recall", "F1"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range results.Classes {
		row := []string{
			strconv.Itoa(c.ID),
			c.Name,
			strconv.Itoa(c.TP),
			strconv.Itoa(c.FP),
			strconv.Itoa(c.FN),
			fmt.Sprintf("%.4f", c.Precision),
			fmt.Sprintf("%.4f", c.Recall),
			fmt.Sprintf("%.4f", c.F1),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	s := results.Summary
	total := []string{"", "all",
		strconv.Itoa(s.TP), strconv.Itoa(s.FP), strconv.Itoa(s.FN),
		fmt.Sprintf("%.4f", s.Precision), fmt.Sprintf("%.4f", s.Recall), fmt.Sprintf("%.4f", s.F1),
	}
	if err := writer.Write(total); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
