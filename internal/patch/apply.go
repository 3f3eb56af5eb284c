package patch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Applier applies a patch file to the files under dir. Implementations must
// report hunks that cannot cleanly apply as a *ConflictError.
type Applier interface {
	Apply(ctx context.Context, patchFile, dir string) error
}

// ConflictError reports that the patch tool rejected one or more hunks.
// Output carries the tool's combined stdout and stderr verbatim; it is the
// diagnostic end users see, so callers must preserve it.
type ConflictError struct {
	Output string
	Err    error
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("merge conflict: %v\n%s", e.Err, e.Output)
}

func (e *ConflictError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// GitApplier shells out to git apply with reject-on-conflict semantics.
type GitApplier struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string
	// Dir is the working directory for the git invocation. Defaults to the
	// process working directory when empty.
	Dir string
}

func (a *GitApplier) gitBinary() string {
	if a == nil || a.Git == "" {
		return "git"
	}
	return a.Git
}

// Apply runs git apply against the staged files under dir. Any non-zero exit
// surfaces as a ConflictError carrying the tool's full output.
func (a *GitApplier) Apply(ctx context.Context, patchFile, dir string) error {
	args := []string{
		"apply",
		"--verbose",
		"--reject",
		fmt.Sprintf("--directory=%s", dir),
		patchFile,
	}

	cmd := exec.CommandContext(ctx, a.gitBinary(), args...)
	if a != nil && a.Dir != "" {
		cmd.Dir = a.Dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ConflictError{
			Output: strings.TrimRight(string(output), "\n"),
			Err:    fmt.Errorf("git %s: %w", strings.Join(args, " "), err),
		}
	}

	return nil
}
