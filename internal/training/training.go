// Package training runs generated train.py scripts locally or on a saved
// server and keeps the task status in training_tasks.json.
package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/store"
	"github.com/dataset-m/dsm/internal/trainlog"
	"github.com/dataset-m/dsm/internal/trainscript"
)

// LogFile is written into the task's save path
const LogFile = "train.log"

// DefaultPython runs the script when no conda environment is set
const DefaultPython = "python"

// Execer runs a shell command on a server
type Execer interface {
	Exec(ctx context.Context, command string) (string, error)
}

// Runner starts tasks and records their status
type Runner struct {
	Tasks  *store.List[models.TrainingTask]
	Python string
}

func NewRunner(tasks *store.List[models.TrainingTask]) *Runner {
	return &Runner{Tasks: tasks, Python: DefaultPython}
}

// Command returns argv for train.py, wrapped in "conda run" when env is set
func Command(python, condaEnv string) []string {
	if python == "" {
		python = DefaultPython
	}
	if condaEnv == "" {
		return []string{python, trainscript.ScriptFile}
	}
	return []string{"conda", "run", "--no-capture-output", "-n", condaEnv, python, trainscript.ScriptFile}
}

// shellQuote wraps s in single quotes for a POSIX shell
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// RemoteCommand is the shell line that runs train.py inside dir on a server
func RemoteCommand(dir, python, condaEnv string) string {
	argv := Command(python, condaEnv)
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return "cd " + shellQuote(dir) + " && " + strings.Join(quoted, " ")
}

func (r *Runner) setStatus(t *models.TrainingTask, status models.TaskStatus) error {
	t.Status = status
	if r.Tasks == nil {
		return nil
	}
	return r.Tasks.Update(*t)
}

func (r *Runner) openLog(t *models.TrainingTask) (*os.File, error) {
	dir := t.SavePath
	if dir == "" {
		dir = t.DatasetPath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save path: %w", err)
	}
	p := filepath.Join(dir, LogFile)
	f, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create training log: %w", err)
	}
	t.ExecutionLog = p
	return f, nil
}

// finish records the final status and, on success, where results.csv is
func (r *Runner) finish(t *models.TrainingTask, runErr error, resultsRoot string) error {
	t.ProcessID = 0
	status := models.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = models.StatusStopped
	case runErr != nil:
		status = models.StatusError
	}
	if resultsRoot != "" {
		if p, err := trainlog.FindResults(resultsRoot); err == nil {
			t.ResultsPath = p
		}
	}
	if err := r.setStatus(t, status); err != nil {
		logger.S().Errorw("Failed to save task status", "task", t.Name, "error", err)
	}
	logger.S().Infow("Training finished", "task", t.Name, "status", status, "results", t.ResultsPath)
	return runErr
}

// RunLocal runs train.py in the task's dataset path and streams its output
// to out and to the task log. It blocks until the script exits.
func (r *Runner) RunLocal(ctx context.Context, t *models.TrainingTask, out io.Writer) error {
	if t.Type != models.TaskLocal {
		return fmt.Errorf("task %s is not a local task", t.Name)
	}
	if _, err := os.Stat(filepath.Join(t.DatasetPath, trainscript.ScriptFile)); err != nil {
		return fmt.Errorf("no %s in %s: %w", trainscript.ScriptFile, t.DatasetPath, err)
	}

	logFile, err := r.openLog(t)
	if err != nil {
		return err
	}
	defer logFile.Close()

	argv := Command(r.Python, t.CondaEnv)
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = t.DatasetPath
	w := io.MultiWriter(out, logFile)
	c.Stdout = w
	c.Stderr = w

	if err := c.Start(); err != nil {
		return r.finish(t, fmt.Errorf("failed to start training: %w", err), "")
	}
	t.ProcessID = c.Process.Pid
	if err := r.setStatus(t, models.StatusRunning); err != nil {
		logger.S().Warnw("Failed to save task status", "task", t.Name, "error", err)
	}
	logger.S().Infow("Training started", "task", t.Name, "pid", t.ProcessID, "cmd", strings.Join(argv, " "))

	runErr := c.Wait()
	if ctx.Err() != nil {
		runErr = ctx.Err()
	} else if runErr != nil {
		runErr = fmt.Errorf("training failed: %w", runErr)
	}
	return r.finish(t, runErr, t.DatasetPath)
}

// RunRemote runs train.py inside the task's remote path through ex. The
// combined output is written to out and the task log once the command ends.
func (r *Runner) RunRemote(ctx context.Context, ex Execer, t *models.TrainingTask, out io.Writer) error {
	if t.Type != models.TaskRemote {
		return fmt.Errorf("task %s is not a remote task", t.Name)
	}
	dir := t.RemotePath
	if dir == "" {
		dir = path.Base(filepath.ToSlash(t.DatasetPath))
	}

	logFile, err := r.openLog(t)
	if err != nil {
		return err
	}
	defer logFile.Close()

	if err := r.setStatus(t, models.StatusRunning); err != nil {
		logger.S().Warnw("Failed to save task status", "task", t.Name, "error", err)
	}
	command := RemoteCommand(dir, r.Python, t.CondaEnv)
	logger.S().Infow("Remote training started", "task", t.Name, "cmd", command)

	output, runErr := ex.Exec(ctx, command)
	if _, err := io.WriteString(io.MultiWriter(out, logFile), output); err != nil {
		logger.S().Warnw("Failed to write training output", "error", err)
	}
	if ctx.Err() != nil {
		runErr = ctx.Err()
	}
	return r.finish(t, runErr, t.SavePath)
}
