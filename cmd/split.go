package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/split"
	"github.com/dataset-m/dsm/internal/store"
	"github.com/dataset-m/dsm/internal/trainscript"
)

type splitFlags struct {
	train, val, test float64
	continueOnError  bool
	index            string
	seed             int64
	resize           int
	script           bool
	params           string
	model            string
	format           string
}

func (f *splitFlags) register(cmd *cobra.Command, ratios bool) {
	if ratios {
		cmd.Flags().Float64Var(&f.train, "train", 0.7, "Train ratio")
		cmd.Flags().Float64Var(&f.val, "val", 0.2, "Validation ratio")
		cmd.Flags().Float64Var(&f.test, "test", 0.1, "Test ratio")
		cmd.Flags().BoolVar(&f.script, "script", false, "Also generate train.py")
		cmd.Flags().StringVar(&f.params, "params", "", `Training parameters for train.py, e.g. "epochs=100 imgsz=640"`)
	}
	cmd.Flags().BoolVar(&f.continueOnError, "continue-on-error", false, "Record copy failures instead of aborting")
	cmd.Flags().StringVar(&f.index, "index", "", "Also write a split index (parquet or jsonl)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Shuffle seed for a reproducible split (0 = random)")
	cmd.Flags().IntVar(&f.resize, "resize", 0, "Cap the longer image side in pixels while copying (0 = copy as is)")
	cmd.Flags().StringVar(&f.model, "model", trainscript.DefaultModel, "Model weights used by train.py")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format (text, json)")
}

func (f *splitFlags) apply(opts *split.Options) error {
	switch f.index {
	case "", split.IndexParquet, split.IndexJSONL:
	default:
		return fmt.Errorf("unknown index format %q (want parquet or jsonl)", f.index)
	}
	opts.ContinueOnError = f.continueOnError
	opts.IndexFormat = f.index
	opts.Seed = f.seed
	opts.Resize = f.resize
	return nil
}

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a dataset into train/val/test",
		Long: `Split a labelled image folder into train, val and test subsets.

Every image below the dataset folder is found recursively (delete/ folders are
skipped), shuffled and copied to <output>/<subset>/images together with its label
file. classes.txt is written to every <subset>/labels and train.yml to the output
root. The output folder is deleted first.`,
	}

	cmd.AddCommand(newSplitRunCmd())
	cmd.AddCommand(newSplitConfigCmd())

	return cmd
}

func newSplitRunCmd() *cobra.Command {
	var flags splitFlags

	cmd := &cobra.Command{
		Use:   "run <dataset> <output>",
		Short: "Run a split",
		Example: `  # 70/20/10 split
  dsm split run ./photos ./photos_split

  # 80/10/10, reproducible, with a parquet index and a training script
  dsm split run ./photos ./photos_split --train 0.8 --val 0.1 --test 0.1 \
    --seed 42 --index parquet --script --params "epochs=100 imgsz=640"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := split.Options{
				DatasetPath: args[0],
				OutputPath:  args[1],
				TrainRatio:  flags.train,
				ValRatio:    flags.val,
				TestRatio:   flags.test,
			}
			if err := flags.apply(&opts); err != nil {
				return err
			}
			return runSplit(cmd.Context(), cmd.OutOrStdout(), opts, flags.script, flags.params, flags.model, flags.format)
		},
	}

	flags.register(cmd, true)

	return cmd
}

func runSplit(ctx context.Context, w io.Writer, opts split.Options, script bool, params, model, format string) error {
	res, err := split.Split(ctx, opts)
	if err != nil {
		return err
	}

	var scriptPath string
	if script {
		scriptPath, err = trainscript.Generate(opts.OutputPath, params, model, "")
		if err != nil {
			return err
		}
	}

	if format == "json" {
		return printJSON(w, struct {
			*split.Result
			Script string `json:"script,omitempty"`
		}{res, scriptPath})
	}

	fmt.Fprintf(w, "Split %s\n", res.RunID)
	fmt.Fprintf(w, "  Output:   %s\n", res.OutputPath)
	fmt.Fprintf(w, "  Train:    %d\n", res.Counts[split.Train])
	fmt.Fprintf(w, "  Val:      %d\n", res.Counts[split.Val])
	fmt.Fprintf(w, "  Test:     %d\n", res.Counts[split.Test])
	fmt.Fprintf(w, "  Labels:   %d\n", res.Labels)
	fmt.Fprintf(w, "  Classes:  %v\n", res.Classes)
	fmt.Fprintf(w, "  Manifest: %s\n", res.Manifest)
	if res.Index != "" {
		fmt.Fprintf(w, "  Index:    %s\n", res.Index)
	}
	if scriptPath != "" {
		fmt.Fprintf(w, "  Script:   %s\n", scriptPath)
	}
	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "\n%d files failed to copy:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Error)
		}
	}
	return nil
}

func newSplitConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage saved split configurations",
	}

	cmd.AddCommand(newSplitConfigAddCmd())
	cmd.AddCommand(newSplitConfigListCmd())
	cmd.AddCommand(newSplitConfigDeleteCmd())
	cmd.AddCommand(newSplitConfigRunCmd())

	return cmd
}

func newSplitConfigAddCmd() *cobra.Command {
	var c split.Config

	cmd := &cobra.Command{
		Use:   "add <name> <dataset> <output>",
		Short: "Save a split configuration",
		Example: `  dsm split config add cats ./cats ./cats_split --train 0.8 --val 0.1 --test 0.1 \
    --script --params "epochs=50"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name, c.DatasetPath, c.OutputPath = args[0], args[1], args[2]
			if err := c.Validate(); err != nil {
				return err
			}
			if c.TrainParams != "" {
				if _, err := trainscript.ParseParams(c.TrainParams); err != nil {
					return err
				}
			}

			list, err := splitConfigs()
			if err != nil {
				return err
			}
			if _, err := list.Find(func(o split.Config) bool { return o.Name == c.Name }); err == nil {
				return fmt.Errorf("a split config named %q already exists", c.Name)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			saved, err := list.Add(c)
			if err != nil {
				return err
			}
			logger.S().Infow("Split config saved", "id", saved.ID, "name", saved.Name, "file", list.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "Saved split config %d (%s)\n", saved.ID, saved.Name)
			return nil
		},
	}

	cmd.Flags().Float64Var(&c.TrainRatio, "train", 0.7, "Train ratio")
	cmd.Flags().Float64Var(&c.ValRatio, "val", 0.2, "Validation ratio")
	cmd.Flags().Float64Var(&c.TestRatio, "test", 0.1, "Test ratio")
	cmd.Flags().BoolVar(&c.GenerateScript, "script", false, "Generate train.py when the config runs")
	cmd.Flags().StringVar(&c.TrainParams, "params", "", "Training parameters for train.py")

	return cmd
}

func newSplitConfigListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved split configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := splitConfigs()
			if err != nil {
				return err
			}
			items, err := list.All()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if format == "json" {
				return printJSON(w, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(w, "No split configs saved")
				return nil
			}
			fmt.Fprintf(w, "%-4s %-20s %-14s %-6s %s\n", "ID", "Name", "Ratios", "Script", "Dataset -> Output")
			for _, c := range items {
				ratios := fmt.Sprintf("%.2f/%.2f/%.2f", c.TrainRatio, c.ValRatio, c.TestRatio)
				fmt.Fprintf(w, "%-4d %-20s %-14s %-6t %s -> %s\n", c.ID, c.Name, ratios, c.GenerateScript, c.DatasetPath, c.OutputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	return cmd
}

func newSplitConfigDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a saved split configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := splitConfigs()
			if err != nil {
				return err
			}
			c, err := findByRef(list, args[0], func(c split.Config) string { return c.Name })
			if err != nil {
				return err
			}
			if err := list.Delete(c.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted split config %d (%s)\n", c.ID, c.Name)
			return nil
		},
	}
	return cmd
}

func newSplitConfigRunCmd() *cobra.Command {
	var flags splitFlags

	cmd := &cobra.Command{
		Use:     "run <id-or-name>",
		Short:   "Run a saved split configuration",
		Example: `  dsm split config run cats --seed 42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := splitConfigs()
			if err != nil {
				return err
			}
			c, err := findByRef(list, args[0], func(c split.Config) string { return c.Name })
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			opts := c.Options()
			if err := flags.apply(&opts); err != nil {
				return err
			}
			return runSplit(cmd.Context(), cmd.OutOrStdout(), opts, c.GenerateScript, c.TrainParams, flags.model, flags.format)
		},
	}

	flags.register(cmd, false)

	return cmd
}
