package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/config"
	"github.com/dataset-m/dsm/internal/logger"
)

// settings is loaded once by the root pre-run and read by subcommands
var settings = config.Defaults()

func NewRootCmd() *cobra.Command {
	var verbose bool
	var noLogFile bool

	cmd := &cobra.Command{
		Use:   "dsm",
		Short: "Headless YOLO dataset manager",
		Long: `dsm manages YOLO object detection datasets on disk.

It reads and writes YOLO label files, splits datasets into train/val/test with a
train.yml manifest, generates training scripts, soft deletes files into a recycle
bin, auto-annotates images with vision models, evaluates labels, moves datasets
to training servers over SFTP and serves a small HTTP API for labelling tools.

Settings and saved configurations live in ~/.dataset_m (override with DSM_HOME).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			s, err := config.LoadSettings()
			if err != nil {
				return err
			}
			settings = s

			opts := logger.Options{Level: s.LogLevel}
			if verbose {
				opts.Level = "debug"
			}
			if !noLogFile {
				if _, err := config.EnsureDir(); err == nil {
					if p, err := config.LogPath(); err == nil {
						opts.File = p
					}
				}
			}
			return logger.Init(opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&noLogFile, "no-log-file", false, "Log to the console only")

	// Add subcommands
	cmd.AddCommand(newLabelCmd())
	cmd.AddCommand(newSplitCmd())
	cmd.AddCommand(newScriptCmd())
	cmd.AddCommand(newRecycleCmd())
	cmd.AddCommand(newDatasetsCmd())
	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newRemoteCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newTrainlogCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
