package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/remote"
)

type remoteFlags struct {
	server     string
	policy     string
	knownHosts string
	timeout    time.Duration
	progress   bool
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.server, "server", "s", "", "Saved server (id or name)")
	cmd.PersistentFlags().StringVar(&f.policy, "on-exists", string(remote.PolicySkip), "What to do when a target exists (skip, overwrite, rename)")
	cmd.PersistentFlags().StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file for host key checking (default: accept any key)")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", remote.DefaultTimeout, "Connect and handshake timeout")
	cmd.PersistentFlags().BoolVar(&f.progress, "progress", false, "Print transfer progress")
}

// dial opens the saved server named by --server
func (f *remoteFlags) dial(ctx context.Context, w io.Writer) (*remote.Client, error) {
	if f.server == "" {
		return nil, fmt.Errorf("--server is required")
	}
	policy, err := remote.ParsePolicy(f.policy)
	if err != nil {
		return nil, err
	}
	list, err := serverConfigs()
	if err != nil {
		return nil, err
	}
	cfg, err := findByRef(list, f.server, func(s models.ServerConfig) string { return s.Name })
	if err != nil {
		return nil, err
	}

	opts := remote.Options{
		Timeout:        f.timeout,
		KnownHostsFile: f.knownHosts,
		Policy:         policy,
	}
	if f.progress {
		opts.Progress = func(name string, done, total int64) {
			if total > 0 {
				fmt.Fprintf(w, "\r%s %3d%%", name, done*100/total)
				if done >= total {
					fmt.Fprintln(w)
				}
			}
		}
	}
	return remote.Dial(ctx, cfg, opts)
}

func newRemoteCmd() *cobra.Command {
	var flags remoteFlags

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Move datasets to and from training servers",
		Long: `Manage saved SSH servers and transfer files over SFTP.

Servers are saved in ~/.dataset_m/server_configs.json and authenticate with a
password, a private key, or both (the password then unlocks the key).`,
	}
	flags.register(cmd)

	cmd.AddCommand(newRemoteServersCmd())
	cmd.AddCommand(newRemoteLsCmd(&flags))
	cmd.AddCommand(newRemoteUploadCmd(&flags))
	cmd.AddCommand(newRemoteDownloadCmd(&flags))
	cmd.AddCommand(newRemoteMkdirCmd(&flags))
	cmd.AddCommand(newRemoteRmCmd(&flags))
	cmd.AddCommand(newRemoteExecCmd(&flags))

	return cmd
}

func newRemoteServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage saved servers",
	}

	var s models.ServerConfig
	add := &cobra.Command{
		Use:     "add <name> <host>",
		Short:   "Save a server",
		Example: `  dsm remote servers add gpu1 10.0.0.5 --user train --key ~/.ssh/id_ed25519`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s.Name, s.Host = args[0], args[1]
			if s.Password == "" {
				s.Password = os.Getenv("DSM_SSH_PASSWORD")
			}
			if err := s.Validate(); err != nil {
				return err
			}
			if s.Password == "" && s.PrivateKeyPath == "" {
				return fmt.Errorf("a password (--password or DSM_SSH_PASSWORD) or --key is required")
			}
			list, err := serverConfigs()
			if err != nil {
				return err
			}
			saved, err := list.Add(s)
			if err != nil {
				return err
			}
			logger.S().Infow("Server saved", "id", saved.ID, "name", saved.Name, "addr", saved.Addr())
			fmt.Fprintf(cmd.OutOrStdout(), "Saved server %d (%s)\n", saved.ID, saved.Name)
			return nil
		},
	}
	add.Flags().IntVarP(&s.Port, "port", "p", models.DefaultSSHPort, "SSH port")
	add.Flags().StringVarP(&s.Username, "user", "u", "", "User name")
	add.Flags().StringVar(&s.Password, "password", "", "Password, or passphrase of the key")
	add.Flags().StringVar(&s.PrivateKeyPath, "key", "", "Private key file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := serverConfigs()
			if err != nil {
				return err
			}
			items, err := l.All()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(w, "No servers saved")
				return nil
			}
			fmt.Fprintf(w, "%-4s %-16s %-28s %-12s %s\n", "ID", "Name", "Address", "User", "Auth")
			for _, s := range items {
				auth := "password"
				if s.PrivateKeyPath != "" {
					auth = "key " + s.PrivateKeyPath
				}
				fmt.Fprintf(w, "%-4d %-16s %-28s %-12s %s\n", s.ID, s.Name, s.Addr(), s.Username, auth)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a saved server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := serverConfigs()
			if err != nil {
				return err
			}
			s, err := findByRef(l, args[0], func(s models.ServerConfig) string { return s.Name })
			if err != nil {
				return err
			}
			return l.Delete(s.ID)
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func newRemoteLsCmd(flags *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "ls [dir]",
		Short:   "List a remote directory",
		Example: `  dsm remote ls /data/datasets -s gpu1`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			c, err := flags.dial(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.List(dir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				name := e.Name
				if e.IsDir {
					name += "/"
				}
				fmt.Fprintf(w, "%s %10d  %s  %s\n", e.Mode, e.Size, e.ModTime.Format("2006-01-02 15:04"), name)
			}
			return nil
		},
	}
}

func printTransfer(w io.Writer, verb string, report *remote.Report) {
	fmt.Fprintf(w, "%s %d files, skipped %d\n", verb, len(report.Transferred), len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  skipped %s\n", s)
	}
}

func newRemoteUploadCmd(flags *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local> <remote>",
		Short: "Upload a file or a folder",
		Example: `  # Upload a split dataset with its train.yml and train.py
  dsm remote upload ./photos_split /data/photos_split -s gpu1 --progress`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			c, err := flags.dial(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer c.Close()

			w := cmd.OutOrStdout()
			if info.IsDir() {
				report, err := c.UploadDir(cmd.Context(), args[0], args[1])
				if report != nil {
					printTransfer(w, "Uploaded", report)
				}
				return err
			}

			dst := args[1]
			if fi, err := c.Stat(dst); err == nil && fi.IsDir {
				dst = path.Join(dst, filepath.Base(args[0]))
			}
			written, err := c.Upload(cmd.Context(), args[0], dst)
			if errors.Is(err, remote.ErrSkipped) {
				fmt.Fprintf(w, "Skipped %s (exists)\n", dst)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Uploaded %s\n", written)
			return nil
		},
	}
}

func newRemoteDownloadCmd(flags *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "download <remote> <local>",
		Short: "Download a file or a folder",
		Example: `  # Fetch training results
  dsm remote download /data/photos_split/runs ./runs -s gpu1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.dial(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer c.Close()

			info, err := c.Stat(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if info.IsDir {
				report, err := c.DownloadDir(cmd.Context(), args[0], args[1])
				if report != nil {
					printTransfer(w, "Downloaded", report)
				}
				return err
			}

			dst := args[1]
			if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
				dst = filepath.Join(dst, path.Base(args[0]))
			}
			written, err := c.Download(cmd.Context(), args[0], dst)
			if errors.Is(err, remote.ErrSkipped) {
				fmt.Fprintf(w, "Skipped %s (exists)\n", dst)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Downloaded %s\n", written)
			return nil
		},
	}
}

func newRemoteMkdirCmd(flags *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <dir>",
		Short: "Create a remote directory and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.dial(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Mkdir(args[0])
		},
	}
}

func newRemoteRmCmd(flags *remoteFlags) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a remote file or, with -r, a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.dial(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer c.Close()

			info, err := c.Stat(args[0])
			if err != nil {
				return err
			}
			if info.IsDir {
				if !recursive {
					return fmt.Errorf("%s is a directory, use -r", args[0])
				}
				return c.RemoveDir(args[0])
			}
			return c.Remove(args[0])
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Delete directories recursively")

	return cmd
}

func newRemoteExecCmd(flags *remoteFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "exec <command>",
		Short:   "Run a command on the server",
		Example: `  dsm remote exec "nvidia-smi" -s gpu1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.dial(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.Exec(cmd.Context(), args[0])
			fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
}
