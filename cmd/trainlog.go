package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/store"
	"github.com/dataset-m/dsm/internal/trainlog"
)

func newTrainlogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trainlog",
		Short: "Inspect training results",
		Long: `Read the results.csv written by ultralytics training and report losses,
precision, recall and mAP per epoch. Log locations can be saved by name in
~/.dataset_m/log_configs.json.`,
	}

	cmd.AddCommand(newTrainlogShowCmd())
	cmd.AddCommand(newTrainlogAddCmd())
	cmd.AddCommand(newTrainlogListCmd())
	cmd.AddCommand(newTrainlogDeleteCmd())

	return cmd
}

// resolveLog turns a saved log name or id into its path; anything else is a path
func resolveLog(ref string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	list, err := logConfigs()
	if err != nil {
		return "", err
	}
	lc, err := findByRef(list, ref, func(l models.LogConfig) string { return l.Name })
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%s is neither a path nor a saved log", ref)
	}
	if err != nil {
		return "", err
	}
	return lc.Path, nil
}

func newTrainlogShowCmd() *cobra.Command {
	var format string
	var all bool

	cmd := &cobra.Command{
		Use:   "show <path-or-name>",
		Short: "Summarise a training run",
		Example: `  dsm trainlog show ./cats_split
  dsm trainlog show runs/detect/train3/results.csv --all
  dsm trainlog show cats --format csv > epochs.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolveLog(args[0])
			if err != nil {
				return err
			}
			results, err := trainlog.FindResults(p)
			if err != nil {
				return err
			}
			log, err := trainlog.ParseFile(results)
			if err != nil {
				return err
			}
			return writeTrainlog(cmd.OutOrStdout(), results, log, format, all)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, csv)")
	cmd.Flags().BoolVar(&all, "all", false, "Print every epoch in text output")

	return cmd
}

func writeTrainlog(w io.Writer, path string, log *trainlog.Log, format string, all bool) error {
	switch format {
	case "json":
		return printJSON(w, struct {
			Path    string           `json:"path"`
			Summary trainlog.Summary `json:"summary"`
			Epochs  []trainlog.Epoch `json:"epochs"`
		}{path, log.Summary(), log.Epochs})
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"epoch", "train_loss", "val_loss", "precision", "recall", "map50", "map50_95"}); err != nil {
			return err
		}
		for _, e := range log.Epochs {
			if err := cw.Write([]string{
				strconv.Itoa(e.Epoch),
				ff(e.TrainLoss), ff(e.ValLoss), ff(e.Precision), ff(e.Recall), ff(e.MAP50), ff(e.MAP5095),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "text":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	s := log.Summary()
	fmt.Fprintf(w, "Results: %s\n", path)
	fmt.Fprintf(w, "Epochs:  %d\n\n", s.Epochs)
	if s.Epochs == 0 {
		return nil
	}
	header := func() {
		fmt.Fprintf(w, "%-8s %8s %10s %10s %10s %10s %10s %10s\n", "", "Epoch", "TrainLoss", "ValLoss", "Precision", "Recall", "mAP50", "mAP50-95")
	}
	row := func(label string, e trainlog.Epoch) {
		fmt.Fprintf(w, "%-8s %8d %10.4f %10.4f %10.4f %10.4f %10.4f %10.4f\n", label, e.Epoch, e.TrainLoss, e.ValLoss, e.Precision, e.Recall, e.MAP50, e.MAP5095)
	}
	header()
	row("best", s.Best)
	row("last", s.Last)
	if all {
		fmt.Fprintln(w)
		header()
		for _, e := range log.Epochs {
			row("", e)
		}
	}
	return nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 5, 64) }

func newTrainlogAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Save a training output location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if _, err := trainlog.FindResults(abs); err != nil {
				return err
			}
			list, err := logConfigs()
			if err != nil {
				return err
			}
			saved, err := list.Add(models.LogConfig{Name: args[0], Path: abs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved log %d (%s)\n", saved.ID, saved.Name)
			return nil
		},
	}
}

func newTrainlogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved training output locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := logConfigs()
			if err != nil {
				return err
			}
			items, err := list.All()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(w, "No logs saved")
				return nil
			}
			for _, l := range items {
				fmt.Fprintf(w, "%-4d %-20s %s\n", l.ID, l.Name, l.Path)
			}
			return nil
		},
	}
}

func newTrainlogDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Forget a saved training output location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := logConfigs()
			if err != nil {
				return err
			}
			l, err := findByRef(list, args[0], func(l models.LogConfig) string { return l.Name })
			if err != nil {
				return err
			}
			return list.Delete(l.ID)
		},
	}
}
