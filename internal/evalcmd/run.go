package evalcmd

import (
	"fmt"
	"io"

	"github.com/dataset-m/dsm/internal/evaluation"
	"github.com/dataset-m/dsm/internal/logger"
)

func executeRun(w io.Writer, predDir, refDir string, iou float64, outputDir, format string) error {
	logger.S().Infow("Starting evaluation run", "pred", predDir, "ref", refDir, "iou", iou)

	results, err := evaluation.Compare(predDir, refDir, iou)
	if err != nil {
		return fmt.Errorf("failed to compare labels: %w", err)
	}

	if outputDir != "" {
		logger.S().Infow("Saving results", "output", outputDir)
		if err := evaluation.SaveResults(results, outputDir); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}

	if err := writeReport(w, results, format); err != nil {
		return err
	}

	if outputDir != "" && format == "text" {
		fmt.Fprintf(w, "\nResults saved to: %s\n", outputDir)
		fmt.Fprintf(w, "\nGenerate the report again with:\n")
		fmt.Fprintf(w, "  dsm eval report --results %s\n", outputDir)
	}
	return nil
}

func printSummary(w io.Writer, s evaluation.Summary) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Evaluation Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Label Files:   %d\n", s.Images)
	fmt.Fprintf(w, "Failed Files:  %d\n", s.Failed)
	fmt.Fprintf(w, "TP / FP / FN:  %d / %d / %d\n", s.TP, s.FP, s.FN)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Precision:     %.2f%%\n", s.Precision*100)
	fmt.Fprintf(w, "Recall:        %.2f%%\n", s.Recall*100)
	fmt.Fprintf(w, "F1:            %.2f%%\n", s.F1*100)
	fmt.Fprintf(w, "Macro F1:      %.2f%%\n", s.MacroF1*100)
	fmt.Fprintf(w, "Mean IoU:      %.3f\n", s.MeanIoU)
	fmt.Fprintln(w, "========================================")
}
