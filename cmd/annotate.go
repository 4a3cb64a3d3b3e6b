package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/autoannotate"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/ollama"
	"github.com/dataset-m/dsm/internal/yolo"
)

func newAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Auto-annotate images with a vision model",
		Long: `Send every image of a folder to a vision-capable LLM and write the detected
boxes as YOLO labels.

Supported providers: ollama (OLLAMA_URL), openai or any OpenAI compatible server
(OPENAI_API_KEY, OPENAI_BASE_URL) and gemini (GEMINI_API_KEY).`,
	}

	cmd.AddCommand(newAnnotateRunCmd())
	cmd.AddCommand(newAnnotateModelsCmd())

	return cmd
}

func newAnnotateRunCmd() *cobra.Command {
	var provider string
	var model string
	var apiURL string
	var classes []string
	var prompt string
	var promptFile string
	var temperature float64
	var concurrency int
	var skipExisting bool
	var saved string
	var format string

	cmd := &cobra.Command{
		Use:   "run <dir>",
		Short: "Auto-annotate the images of a folder",
		Example: `  # Local Ollama model
  dsm annotate run ./photos --classes cat,dog --model qwen2.5vl:7b

  # OpenAI, four requests at a time, keep existing labels
  dsm annotate run ./photos --provider openai --classes cat,dog --concurrency 4 --skip-existing

  # Use a saved model configuration
  dsm annotate run ./photos --config pets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := autoannotate.Task{
				Dir:          args[0],
				Classes:      classes,
				Model:        model,
				Prompt:       prompt,
				Temperature:  temperature,
				Concurrency:  concurrency,
				SkipExisting: skipExisting,
			}
			flags := cmd.Flags()

			if saved != "" {
				list, err := modelConfigs()
				if err != nil {
					return err
				}
				mc, err := findByRef(list, saved, func(m models.ModelConfig) string { return m.Name })
				if err != nil {
					return err
				}
				if !flags.Changed("provider") {
					provider = mc.Provider
				}
				if !flags.Changed("api-url") {
					apiURL = mc.APIURL
				}
				if !flags.Changed("model") {
					task.Model = mc.Model
				}
				if !flags.Changed("classes") {
					task.Classes = mc.Classes
				}
				if !flags.Changed("prompt") && mc.Prompt != "" {
					task.Prompt = mc.Prompt
				}
				if !flags.Changed("temperature") {
					task.Temperature = mc.Temperature
				}
			}

			if promptFile != "" {
				data, err := os.ReadFile(promptFile)
				if err != nil {
					return fmt.Errorf("failed to read prompt file: %w", err)
				}
				task.Prompt = string(data)
			}
			if provider == "" {
				provider = settings.Provider
			}
			if task.Model == "" && provider == settings.Provider {
				task.Model = settings.Model
			}
			if !flags.Changed("temperature") && saved == "" {
				task.Temperature = settings.Temperature
			}
			if !flags.Changed("concurrency") {
				task.Concurrency = settings.Concurrency
			}
			if len(task.Classes) == 0 {
				names, err := folderClasses(task.Dir)
				if err != nil {
					return err
				}
				task.Classes = names
			}

			p, err := autoannotate.NewProvider(provider, apiURL, "")
			if err != nil {
				return err
			}
			report, err := autoannotate.NewService(p).Run(cmd.Context(), task)
			if report != nil {
				if perr := printAnnotateReport(cmd, report, format); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (ollama, openai, gemini); default from settings")
	cmd.Flags().StringVar(&model, "model", "", "Model name (uses provider default if empty)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Provider base URL (ollama or OpenAI compatible)")
	cmd.Flags().StringSliceVar(&classes, "classes", nil, "Class names in id order (default: the folder's labels/classes.txt)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "User prompt sent with every image")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Read the user prompt from a file")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Images processed in parallel")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Leave images that already have labels")
	cmd.Flags().StringVar(&saved, "config", "", "Saved model configuration (id or name)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	return cmd
}

// folderClasses reads dir/labels/classes.txt when present
func folderClasses(dir string) ([]string, error) {
	names, err := yolo.ReadClasses(filepath.Join(dir, yolo.LabelsDir, yolo.ClassesFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return names, nil
}

func printAnnotateReport(cmd *cobra.Command, report *autoannotate.Report, format string) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return printJSON(w, report)
	}
	labelled, skipped, failed := report.Counts()
	fmt.Fprintf(w, "Run %s (%s / %s)\n", report.RunID, report.Provider, report.Model)
	fmt.Fprintf(w, "  Labelled: %d\n", labelled)
	fmt.Fprintf(w, "  Skipped:  %d\n", skipped)
	fmt.Fprintf(w, "  Failed:   %d\n", failed)
	for _, r := range report.Results {
		if r.Error != "" {
			fmt.Fprintf(w, "  ✗ %s: %s\n", filepath.Base(r.Image), r.Error)
		}
	}
	return nil
}

func newAnnotateModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage saved model configurations",
	}

	var mc models.ModelConfig
	var classes string
	add := &cobra.Command{
		Use:     "add <name>",
		Short:   "Save a model configuration",
		Example: `  dsm annotate models add pets --provider ollama --model qwen2.5vl:7b --classes cat,dog`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mc.Name = args[0]
			for _, c := range strings.Split(classes, ",") {
				if c = strings.TrimSpace(c); c != "" {
					mc.Classes = append(mc.Classes, c)
				}
			}
			if _, err := autoannotate.NewProvider(mc.Provider, "", ""); err != nil {
				return err
			}
			list, err := modelConfigs()
			if err != nil {
				return err
			}
			saved, err := list.Add(mc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved model config %d (%s)\n", saved.ID, saved.Name)
			return nil
		},
	}
	add.Flags().StringVar(&mc.Provider, "provider", "ollama", "LLM provider")
	add.Flags().StringVar(&mc.Model, "model", "", "Model name")
	add.Flags().StringVar(&mc.APIURL, "api-url", "", "Provider base URL")
	add.Flags().StringVar(&classes, "classes", "", "Comma separated class names")
	add.Flags().StringVar(&mc.Prompt, "prompt", "", "User prompt")
	add.Flags().Float64Var(&mc.Temperature, "temperature", 0.1, "Sampling temperature")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved model configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := modelConfigs()
			if err != nil {
				return err
			}
			items, err := l.All()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(w, "No model configs saved")
				return nil
			}
			fmt.Fprintf(w, "%-4s %-16s %-8s %-24s %s\n", "ID", "Name", "Provider", "Model", "Classes")
			for _, m := range items {
				fmt.Fprintf(w, "%-4d %-16s %-8s %-24s %s\n", m.ID, m.Name, m.Provider, m.Model, strings.Join(m.Classes, ","))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a saved model configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := modelConfigs()
			if err != nil {
				return err
			}
			m, err := findByRef(l, args[0], func(m models.ModelConfig) string { return m.Name })
			if err != nil {
				return err
			}
			return l.Delete(m.ID)
		},
	}

	var ollamaURL string
	available := &cobra.Command{
		Use:   "available",
		Short: "List the models installed on an Ollama server",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := ollama.New(ollamaURL).Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	available.Flags().StringVar(&ollamaURL, "api-url", "", "Ollama URL (default OLLAMA_URL or http://localhost:11434)")

	cmd.AddCommand(add, list, del, available)
	return cmd
}
