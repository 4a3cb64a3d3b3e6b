package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/dataset-m/dsm/internal/logger"
)

type progressWriter struct {
	w     io.Writer
	name  string
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.fn != nil {
		p.fn(p.name, p.done, p.total)
	}
	return n, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

func (c *Client) copy(ctx context.Context, dst io.Writer, src io.Reader, name string, total int64) error {
	pw := &progressWriter{w: dst, name: name, total: total, fn: c.progress}
	_, err := io.Copy(pw, ctxReader{ctx: ctx, r: src})
	return err
}

func (c *Client) remoteExists(p string) (bool, error) { return c.Exists(p) }

func localExists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Upload copies a local file to remotePath and returns the path written.
// ErrSkipped is returned when the policy skipped an existing file.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) (string, error) {
	target, err := Target(remotePath, c.policy, c.remoteExists)
	if err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	if dir := path.Dir(target); dir != "." && dir != "/" {
		if err := c.sftp.MkdirAll(dir); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	dst, err := c.sftp.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	if err := c.copy(ctx, dst, src, filepath.Base(localPath), info.Size()); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	logger.S().Debugw("Uploaded file", "local", localPath, "remote", target, "bytes", info.Size())
	return target, nil
}

// UploadDir copies localDir recursively into remoteDir
func (c *Client) UploadDir(ctx context.Context, localDir, remoteDir string) (*Report, error) {
	report := &Report{}
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		target := path.Join(remoteDir, filepath.ToSlash(rel))
		if d.IsDir() {
			return c.Mkdir(target)
		}
		written, err := c.Upload(ctx, p, target)
		if errors.Is(err, ErrSkipped) {
			report.Skipped = append(report.Skipped, target)
			return nil
		}
		if err != nil {
			return err
		}
		report.Transferred = append(report.Transferred, written)
		return nil
	})
	if err != nil {
		return report, err
	}
	logger.S().Infow("Uploaded directory", "local", localDir, "remote", remoteDir,
		"transferred", len(report.Transferred), "skipped", len(report.Skipped))
	return report, nil
}

// Download copies remotePath to localPath and returns the path written.
// ErrSkipped is returned when the policy skipped an existing file.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) (string, error) {
	target, err := Target(localPath, c.policy, localExists)
	if err != nil {
		return "", err
	}

	src, err := c.sftp.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", remotePath, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	if err := c.copy(ctx, dst, src, path.Base(remotePath), info.Size()); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	logger.S().Debugw("Downloaded file", "remote", remotePath, "local", target, "bytes", info.Size())
	return target, nil
}

// DownloadDir copies remoteDir recursively into localDir
func (c *Client) DownloadDir(ctx context.Context, remoteDir, localDir string) (*Report, error) {
	report := &Report{}
	if err := c.downloadDir(ctx, remoteDir, localDir, report); err != nil {
		return report, err
	}
	logger.S().Infow("Downloaded directory", "remote", remoteDir, "local", localDir,
		"transferred", len(report.Transferred), "skipped", len(report.Skipped))
	return report, nil
}

func (c *Client) downloadDir(ctx context.Context, remoteDir, localDir string, report *Report) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return err
	}
	entries, err := c.sftp.ReadDir(remoteDir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", remoteDir, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := path.Join(remoteDir, e.Name())
		dst := filepath.Join(localDir, e.Name())
		if e.IsDir() {
			if err := c.downloadDir(ctx, src, dst, report); err != nil {
				return err
			}
			continue
		}
		written, err := c.Download(ctx, src, dst)
		if errors.Is(err, ErrSkipped) {
			report.Skipped = append(report.Skipped, dst)
			continue
		}
		if err != nil {
			return err
		}
		report.Transferred = append(report.Transferred, written)
	}
	return nil
}
