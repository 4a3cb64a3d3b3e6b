package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/evalcmd"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Label evaluation tools",
		Long: `Evaluation tools for measuring how well predicted labels, for example the
output of "dsm annotate run", match reference labels.

Boxes are matched per image and class by IoU; reports list TP/FP/FN, precision,
recall and F1 per class and overall.`,
	}

	// Add eval subcommands
	cmd.AddCommand(evalcmd.NewRunCmd())
	cmd.AddCommand(evalcmd.NewReportCmd())

	return cmd
}
