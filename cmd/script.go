package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/split"
	"github.com/dataset-m/dsm/internal/trainscript"
)

func newScriptCmd() *cobra.Command {
	var params string
	var model string
	var templatePath string
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "script <split-output>",
		Short: "Generate train.py for a split dataset",
		Long: `Render the training script template and write train.py next to train.yml.

Parameters are "key=value" or "key value" pairs separated by spaces, commas or
newlines. Values containing a dot become floats, integers stay integers,
true/false become booleans and everything else is quoted.

A custom template may use {{PARAMS}}, {{DATA_YAML}} and {{MODEL}}.`,
		Example: `  dsm script ./photos_split --params "epochs=100 imgsz=640 lr0=0.01 name=exp"
  dsm script ./photos_split --model yolov8s.pt --template my_train.py.tmpl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0]

			tmpl := ""
			if templatePath != "" {
				data, err := os.ReadFile(templatePath)
				if err != nil {
					return fmt.Errorf("failed to read template: %w", err)
				}
				tmpl = string(data)
			}

			if printOnly {
				parsed, err := trainscript.ParseParams(params)
				if err != nil {
					return err
				}
				if tmpl == "" {
					tmpl = trainscript.DefaultTemplate
				}
				fmt.Fprint(cmd.OutOrStdout(), trainscript.Render(tmpl, trainscript.Data{Params: parsed, DataYAML: split.ManifestFile, Model: model}))
				return nil
			}

			if _, err := os.Stat(filepath.Join(out, split.ManifestFile)); err != nil {
				return fmt.Errorf("%s has no %s, run a split first: %w", out, split.ManifestFile, err)
			}
			path, err := trainscript.Generate(out, params, model, tmpl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Training script written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&params, "params", "", "Training parameters")
	cmd.Flags().StringVar(&model, "model", trainscript.DefaultModel, "Model weights to start from")
	cmd.Flags().StringVar(&templatePath, "template", "", "Custom script template")
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the script instead of writing it")

	return cmd
}
