package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/recyclebin"
)

func newRecycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recycle",
		Short: "Soft delete files into delete/ folders",
		Long: `Trashed files move into a "delete" folder next to them. The original location
is kept in delete/.meta.json so the file can be restored. delete/ folders are
ignored by split, annotate and the HTTP API.`,
	}

	cmd.AddCommand(newRecycleTrashCmd())
	cmd.AddCommand(newRecycleRestoreCmd())
	cmd.AddCommand(newRecyclePurgeCmd())
	cmd.AddCommand(newRecycleEmptyCmd())
	cmd.AddCommand(newRecycleListCmd())

	return cmd
}

func newRecycleTrashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trash <path>...",
		Short:   "Move files or folders into the recycle bin",
		Example: `  dsm recycle trash photos/blurry.jpg photos/labels/blurry.txt`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				dst, err := recyclebin.Trash(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", p, dst)
			}
			return nil
		},
	}
	return cmd
}

func newRecycleRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restore <bin> <name>...",
		Short:   "Restore entries of a recycle bin",
		Example: `  dsm recycle restore photos/delete blurry.jpg`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bin := args[0]
			for _, name := range args[1:] {
				dst, err := recyclebin.Restore(bin, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", name, dst)
			}
			return nil
		},
	}
	return cmd
}

func newRecyclePurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "purge <bin> <name>...",
		Short:   "Permanently delete entries of a recycle bin",
		Example: `  dsm recycle purge photos/delete blurry.jpg`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bin := args[0]
			for _, name := range args[1:] {
				if err := recyclebin.Purge(bin, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			return nil
		},
	}
	return cmd
}

func newRecycleEmptyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "empty <root>",
		Short: "Remove every recycle bin below root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := recyclebin.Empty(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d recycle bins\n", n)
			return nil
		},
	}
	return cmd
}

func newRecycleListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list <root>",
		Short: "List every recycle bin entry below root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := recyclebin.List(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if format == "json" {
				if entries == nil {
					entries = []recyclebin.Entry{}
				}
				return printJSON(w, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "Recycle bin is empty")
				return nil
			}
			fmt.Fprintf(w, "%-30s %10s  %-19s  %s\n", "Name", "Size", "Modified", "Original path")
			for _, e := range entries {
				size := fmt.Sprintf("%d", e.Size)
				if e.IsDir {
					size = "<dir>"
				}
				fmt.Fprintf(w, "%-30s %10s  %-19s  %s\n", truncate(e.Name, 30), size, e.ModTime.Format("2006-01-02 15:04:05"), e.OriginalPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
