// Package remote moves datasets to and from training servers over SFTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/models"
)

// DefaultTimeout bounds the TCP connect and SSH handshake
const DefaultTimeout = 15 * time.Second

// Policy decides what happens when a transfer target already exists
type Policy string

const (
	PolicySkip      Policy = "skip"
	PolicyOverwrite Policy = "overwrite"
	// PolicyRename writes name_1.ext, name_2.ext, ... next to the existing file
	PolicyRename Policy = "rename"
)

// ParsePolicy accepts skip, overwrite and rename
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(s)); p {
	case PolicySkip, PolicyOverwrite, PolicyRename:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overwrite policy %q (want skip, overwrite or rename)", s)
	}
}

// ProgressFunc is called while a file is copied
type ProgressFunc func(name string, transferred, total int64)

// Options configure Dial
type Options struct {
	Timeout time.Duration
	// KnownHostsFile enables host key checking. Empty accepts any host key.
	KnownHostsFile string
	Policy         Policy
	Progress       ProgressFunc
}

// FileInfo describes a remote entry
type FileInfo struct {
	Name    string      `json:"name"`
	Path    string      `json:"path"`
	Size    int64       `json:"size"`
	IsDir   bool        `json:"is_dir"`
	Mode    os.FileMode `json:"mode"`
	ModTime time.Time   `json:"mod_time"`
}

// Report lists what a directory transfer did
type Report struct {
	Transferred []string `json:"transferred"`
	Skipped     []string `json:"skipped"`
}

// Client is an SFTP session on a saved server
type Client struct {
	conn     *ssh.Client
	sftp     *sftp.Client
	policy   Policy
	progress ProgressFunc
}

// ErrSkipped is returned by single file transfers when the policy skipped them
var ErrSkipped = errors.New("target exists, skipped")

// Dial connects to cfg and opens an SFTP session
func Dial(ctx context.Context, cfg models.ServerConfig, opts Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sshCfg, err := clientConfig(cfg, opts)
	if err != nil {
		return nil, err
	}

	addr := cfg.Addr()
	d := net.Dialer{Timeout: sshCfg.Timeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	// handshake must finish within the same timeout
	_ = netConn.SetDeadline(time.Now().Add(sshCfg.Timeout))
	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})
	conn := ssh.NewClient(c, chans, reqs)

	sc, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start sftp on %s: %w", addr, err)
	}

	logger.S().Infow("Connected to server", "server", cfg.Name, "addr", addr, "user", cfg.Username)
	client := newClient(sc, opts)
	client.conn = conn
	return client, nil
}

func clientConfig(cfg models.ServerConfig, opts Options) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		var signer ssh.Signer
		if cfg.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(cfg.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("server %s has neither a password nor a private key", cfg.Name)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKey = cb
	} else {
		logger.S().Debugw("Host key verification disabled", "server", cfg.Name)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

func newClient(sc *sftp.Client, opts Options) *Client {
	policy := opts.Policy
	if policy == "" {
		policy = PolicySkip
	}
	return &Client{sftp: sc, policy: policy, progress: opts.Progress}
}

// Close ends the SFTP session and the SSH connection
func (c *Client) Close() error {
	err := c.sftp.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Exec runs command on the server and returns its combined output
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	if c.conn == nil {
		return "", fmt.Errorf("no ssh connection")
	}
	session, err := c.conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGTERM)
			session.Close()
		case <-done:
		}
	}()

	out, err := session.CombinedOutput(command)
	if err != nil {
		return string(out), fmt.Errorf("remote command failed: %w", err)
	}
	return string(out), nil
}

func toInfo(dir string, fi os.FileInfo) FileInfo {
	return FileInfo{
		Name:    fi.Name(),
		Path:    path.Join(dir, fi.Name()),
		Size:    fi.Size(),
		IsDir:   fi.IsDir(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
}

// List returns the entries of dir, directories first, then by name
func (c *Client) List(dir string) ([]FileInfo, error) {
	entries, err := c.sftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, toInfo(dir, e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Stat describes a single remote path
func (c *Client) Stat(p string) (FileInfo, error) {
	fi, err := c.sftp.Stat(p)
	if err != nil {
		return FileInfo{}, err
	}
	info := toInfo(path.Dir(p), fi)
	info.Path = p
	return info, nil
}

// Exists reports whether p exists on the server
func (c *Client) Exists(p string) (bool, error) {
	_, err := c.sftp.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Mkdir creates p and any missing parents
func (c *Client) Mkdir(p string) error {
	if err := c.sftp.MkdirAll(p); err != nil {
		return fmt.Errorf("failed to create %s: %w", p, err)
	}
	return nil
}

// Rename moves oldPath to newPath on the server
func (c *Client) Rename(oldPath, newPath string) error {
	if err := c.sftp.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename %s: %w", oldPath, err)
	}
	return nil
}

// Remove deletes a single remote file
func (c *Client) Remove(p string) error {
	if err := c.sftp.Remove(p); err != nil {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

// RemoveDir deletes dir and everything below it
func (c *Client) RemoveDir(dir string) error {
	entries, err := c.sftp.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := c.RemoveDir(p); err != nil {
				return err
			}
			continue
		}
		if err := c.Remove(p); err != nil {
			return err
		}
	}
	if err := c.sftp.RemoveDirectory(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}

// WriteFile creates or replaces p with data
func (c *Client) WriteFile(p string, data []byte) error {
	if dir := path.Dir(p); dir != "." && dir != "/" {
		if err := c.sftp.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := c.sftp.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return f.Close()
}

// ReadFile returns the contents of a remote file
func (c *Client) ReadFile(p string) ([]byte, error) {
	f, err := c.sftp.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Target applies policy to want. exists reports whether a path is taken.
// It returns the path to write, or ErrSkipped.
func Target(want string, policy Policy, exists func(string) (bool, error)) (string, error) {
	taken, err := exists(want)
	if err != nil {
		return "", err
	}
	if !taken {
		return want, nil
	}
	switch policy {
	case PolicyOverwrite:
		return want, nil
	case PolicyRename:
		dir, file := path.Split(want)
		ext := path.Ext(file)
		stem := strings.TrimSuffix(file, ext)
		for i := 1; ; i++ {
			candidate := dir + stem + "_" + strconv.Itoa(i) + ext
			taken, err := exists(candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				return candidate, nil
			}
		}
	default:
		return "", ErrSkipped
	}
}
