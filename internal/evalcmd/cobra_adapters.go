package evalcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/evaluation"
)

// NewRunCmd creates the run command comparing predicted labels with references
func NewRunCmd() *cobra.Command {
	var predDir string
	var refDir string
	var iou float64
	var outputDir string
	var format string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compare predicted YOLO labels against reference labels",
		Long: `Match predicted boxes to reference boxes per image and class using greedy IoU
matching, then report TP/FP/FN, precision, recall and F1 per class and overall.

Both folders may be dataset folders (with a labels/ subfolder) or label folders.
Class names are read from the reference labels/classes.txt.`,
		Example: `  # Evaluate auto-annotated labels against hand-made ones
  dsm eval run --pred ./auto --ref ./dataset

  # Stricter matching, CSV report, keep results.json
  dsm eval run --pred ./auto --ref ./dataset --iou 0.75 --format csv --output ./eval_results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if predDir == "" || refDir == "" {
				return fmt.Errorf("--pred and --ref are required")
			}
			return executeRun(cmd.OutOrStdout(), predDir, refDir, iou, outputDir, format)
		},
	}

	cmd.Flags().StringVar(&predDir, "pred", "", "Folder with predicted labels")
	cmd.Flags().StringVar(&refDir, "ref", "", "Folder with reference labels")
	cmd.Flags().Float64Var(&iou, "iou", evaluation.DefaultIoU, "IoU threshold for a match")
	cmd.Flags().StringVar(&outputDir, "output", "", "Directory to save results.json (optional)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, csv)")

	return cmd
}

// NewReportCmd creates the report command for saved results
func NewReportCmd() *cobra.Command {
	var resultsDir string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a report for saved evaluation results",
		Example: `  dsm eval report --results ./eval_results
  dsm eval report --results ./eval_results --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(cmd.OutOrStdout(), resultsDir, format)
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results", "./eval_results", "Results directory")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, csv)")

	return cmd
}
