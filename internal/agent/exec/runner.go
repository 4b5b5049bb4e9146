// Package exec provides the agent's scoped invocation of external
// programs: the service supervisor, archive tools, and filesystem
// helpers every operation sequence is built from. Every invocation
// collects full stdout/stderr and fails with the captured stream on a
// non-zero exit, per spec.md §4.3.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// Runner executes shell commands and systemctl-style service operations.
// It holds no state; it exists so call sites can be mocked in tests.
type Runner struct{}

func New() *Runner { return &Runner{} }

// Shell runs command through "sh -c", returning stdout on success.
// Grounded on original_source/agent/src/services/commands.rs
// execute_shell_command.
func (r *Runner) Shell(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stream := stderr.String()
		if stream == "" {
			stream = stdout.String()
		}
		return "", apperrors.Upstream(command, strings.TrimSpace(stream))
	}
	return stdout.String(), nil
}

// CreateDirectory runs mkdir -p on path.
func (r *Runner) CreateDirectory(ctx context.Context, path string) error {
	_, err := r.Shell(ctx, fmt.Sprintf("mkdir -p %s", quote(path)))
	return err
}

// DeleteDirectory runs rm -rf on path.
func (r *Runner) DeleteDirectory(ctx context.Context, path string) error {
	_, err := r.Shell(ctx, fmt.Sprintf("rm -rf %s", quote(path)))
	return err
}

// Exists reports whether path exists (file or directory).
func (r *Runner) Exists(ctx context.Context, path string) bool {
	_, err := r.Shell(ctx, fmt.Sprintf("test -e %s", quote(path)))
	return err == nil
}

// FileSize returns the size in bytes of the file at path.
func (r *Runner) FileSize(ctx context.Context, path string) (int64, error) {
	out, err := r.Shell(ctx, fmt.Sprintf("stat -c%%s %s", quote(path)))
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if perr != nil {
		return 0, &apperrors.Error{Kind: apperrors.NotFound, Message: "could not parse file size", Wrapped: perr}
	}
	return n, nil
}

// CopyFileIfExists copies source to destination if source exists;
// it is a no-op (not an error) when source is absent.
func (r *Runner) CopyFileIfExists(ctx context.Context, source, destination string) error {
	cmd := fmt.Sprintf("if [ -f %s ]; then cp %s %s; fi", quote(source), quote(source), quote(destination))
	_, err := r.Shell(ctx, cmd)
	return err
}

// ChownLike recursively changes ownership of path to match the owner of
// reference.
func (r *Runner) ChownLike(ctx context.Context, path, reference string) error {
	cmd := fmt.Sprintf("chown -R --reference=%s %s", quote(reference), quote(path))
	_, err := r.Shell(ctx, cmd)
	return err
}

// TruncateLog truncates the file at path to zero length, creating it if
// absent.
func (r *Runner) TruncateLog(ctx context.Context, path string) error {
	_, err := r.Shell(ctx, fmt.Sprintf("truncate -s 0 %s", quote(path)))
	return err
}

// DeleteAllLogs removes every file under dir matching the glob pattern.
func (r *Runner) DeleteAllLogs(ctx context.Context, dir, pattern string) error {
	_, err := r.Shell(ctx, fmt.Sprintf("rm -f %s/%s", strings.TrimSuffix(dir, "/"), pattern))
	return err
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
