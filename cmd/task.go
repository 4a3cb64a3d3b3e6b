package cmd

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/trainlog"
	"github.com/dataset-m/dsm/internal/training"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage and run training tasks",
		Long: `Training tasks run the train.py of a split dataset, either locally or on a
saved server, and are kept in ~/.dataset_m/training_tasks.json.`,
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskRunCmd())

	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var t models.TrainingTask
	var server string
	var taskType string

	cmd := &cobra.Command{
		Use:   "add <name> <dataset>",
		Short: "Save a training task",
		Example: `  # Local task in a conda environment
  dsm task add cats ./cats_split --conda yolo

  # Remote task; the dataset is uploaded to --remote-path on run
  dsm task add cats-gpu ./cats_split --type remote --server gpu1 --remote-path /data/cats_split`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Name = args[0]
			abs, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			t.DatasetPath = abs
			t.Type = models.TaskType(strings.ToUpper(taskType))
			t.Status = models.StatusStopped

			if server != "" {
				servers, err := serverConfigs()
				if err != nil {
					return err
				}
				s, err := findByRef(servers, server, func(s models.ServerConfig) string { return s.Name })
				if err != nil {
					return err
				}
				t.ServerID = s.ID
			}
			if t.Type == models.TaskRemote && t.RemotePath == "" {
				t.RemotePath = path.Base(filepath.ToSlash(abs))
			}
			if err := t.Validate(); err != nil {
				return err
			}

			list, err := trainingTasks()
			if err != nil {
				return err
			}
			saved, err := list.Add(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved task %d (%s)\n", saved.ID, saved.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskType, "type", "local", "Where the task runs (local, remote)")
	cmd.Flags().StringVar(&server, "server", "", "Saved server for remote tasks (id or name)")
	cmd.Flags().StringVar(&t.RemotePath, "remote-path", "", "Dataset folder on the server")
	cmd.Flags().StringVar(&t.SavePath, "save", "", "Local folder for logs and downloaded results")
	cmd.Flags().StringVar(&t.CondaEnv, "conda", "", "Conda environment to run in")

	return cmd
}

func newTaskListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List training tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := trainingTasks()
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
				fmt.Fprintln(w, "No training tasks saved")
				return nil
			}
			fmt.Fprintf(w, "%-4s %-16s %-7s %-10s %s\n", "ID", "Name", "Type", "Status", "Dataset")
			for _, t := range items {
				fmt.Fprintf(w, "%-4d %-16s %-7s %-10s %s\n", t.ID, truncate(t.Name, 16), t.Type, t.Status, t.DatasetPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a training task (files are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := trainingTasks()
			if err != nil {
				return err
			}
			t, err := findByRef(list, args[0], func(t models.TrainingTask) string { return t.Name })
			if err != nil {
				return err
			}
			if t.Status == models.StatusRunning {
				return fmt.Errorf("task %s is running", t.Name)
			}
			return list.Delete(t.ID)
		},
	}
}

func newTaskRunCmd() *cobra.Command {
	var python string
	var upload bool
	var fetch bool
	var remote remoteFlags

	cmd := &cobra.Command{
		Use:   "run <id-or-name>",
		Short: "Run a training task and wait for it",
		Example: `  dsm task run cats
  dsm task run cats-gpu --upload --fetch --on-exists overwrite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := trainingTasks()
			if err != nil {
				return err
			}
			t, err := findByRef(list, args[0], func(t models.TrainingTask) string { return t.Name })
			if err != nil {
				return err
			}

			runner := training.NewRunner(list)
			runner.Python = python
			out := cmd.OutOrStdout()

			if t.Type == models.TaskLocal {
				return runner.RunLocal(ctx, &t, out)
			}

			remote.server = fmt.Sprint(t.ServerID)
			client, err := remote.dial(ctx, out)
			if err != nil {
				return err
			}
			defer client.Close()

			if upload {
				report, err := client.UploadDir(ctx, t.DatasetPath, t.RemotePath)
				if err != nil {
					return err
				}
				printTransfer(out, "Uploaded", report)
			}
			if err := runner.RunRemote(ctx, client, &t, out); err != nil {
				return err
			}
			if fetch && t.SavePath != "" {
				report, err := client.DownloadDir(ctx, path.Join(t.RemotePath, "runs"), filepath.Join(t.SavePath, "runs"))
				if err != nil {
					return err
				}
				printTransfer(out, "Downloaded", report)
				if p, err := trainlog.FindResults(t.SavePath); err == nil {
					t.ResultsPath = p
					return list.Update(t)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&python, "python", training.DefaultPython, "Python interpreter")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the dataset before a remote run")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Download runs/ into the save path after a remote run")
	cmd.Flags().StringVar(&remote.policy, "on-exists", "skip", "What to do when a target exists (skip, overwrite, rename)")
	cmd.Flags().StringVar(&remote.knownHosts, "known-hosts", "", "known_hosts file for host key checking")
	cmd.Flags().DurationVar(&remote.timeout, "timeout", 0, "Connect and handshake timeout")

	return cmd
}
