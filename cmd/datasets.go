package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/recyclebin"
	"github.com/dataset-m/dsm/internal/yolo"
)

func newDatasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Remember dataset folders",
		Long:  `Keep a list of imported dataset folders in ~/.dataset_m/imported_paths.json.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <path>...",
		Short: "Remember dataset folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := importedPaths()
			if err != nil {
				return err
			}
			for _, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return err
				}
				if info, err := os.Stat(abs); err != nil || !info.IsDir() {
					return fmt.Errorf("%s is not a directory", p)
				}
				added, err := list.Add(abs)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", abs)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Already known: %s\n", abs)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List remembered dataset folders with image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := importedPaths()
			if err != nil {
				return err
			}
			paths, err := list.All()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintln(w, "No datasets imported")
				return nil
			}
			fmt.Fprintf(w, "%8s %8s  %s\n", "Images", "Labelled", "Path")
			for _, p := range paths {
				found, err := images.Find(p, []string{recyclebin.DirName, yolo.LabelsDir})
				if err != nil {
					fmt.Fprintf(w, "%8s %8s  %s\n", "-", "-", p)
					continue
				}
				labelled := 0
				for _, img := range found {
					if yolo.HasLabel(img) {
						labelled++
					}
				}
				fmt.Fprintf(w, "%8d %8d  %s\n", len(found), labelled, p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path>...",
		Short: "Forget dataset folders (files are kept)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := importedPaths()
			if err != nil {
				return err
			}
			for _, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return err
				}
				if err := list.Remove(abs); err != nil {
					return err
				}
			}
			return nil
		},
	})

	return cmd
}
