// Package cherry applies the file-level differences between two commits to a
// target branch through the hosting provider's API, without a local clone.
package cherry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	gh "github.com/shiqiyang-okta/ghpick/internal/github"
	"github.com/shiqiyang-okta/ghpick/internal/patch"
)

// Session carries the state of one cherry-pick operation between the patch
// planning and tree synthesis steps. Each session owns its staging directory
// exclusively; sessions are not safe for concurrent use and two sessions must
// not target the same branch without external serialization.
type Session struct {
	ID           string
	BaseSHA      string
	TargetSHA    string
	TargetBranch string

	Records []patch.ChangeRecord
	Tree    *patch.Node

	// StagingDir is the session's disposable root; the fetched patch file
	// lives directly under it. FilesDir (StagingDir/b) holds the staged
	// pre-images so the patch tool can resolve a/- and b/-prefixed paths.
	StagingDir string
	FilesDir   string
	PatchFile  string
}

// Discard removes the staging directory. Absence is not an error; the session
// may already have been discarded by a successful commit.
func (s *Session) Discard() {
	if s == nil || s.StagingDir == "" {
		return
	}
	_ = os.RemoveAll(s.StagingDir)
}

// stagedPath returns where a changed file's bytes live on disk. An absolute
// record path is honored as-is to support out-of-tree content.
func (s *Session) stagedPath(recordPath string) string {
	if filepath.IsAbs(recordPath) {
		return recordPath
	}
	return filepath.Join(s.FilesDir, recordPath)
}

// Picker drives cherry-pick operations against the hosting provider.
type Picker struct {
	client  gh.Client
	applier patch.Applier
	log     *slog.Logger

	// BaseDir is the directory under which staging directories are created.
	// When empty, os.TempDir() is used.
	BaseDir string
}

// NewPicker returns a Picker using the given provider client. A nil applier
// defaults to git apply; a nil logger disables logging.
func NewPicker(client gh.Client, applier patch.Applier, logger *slog.Logger) *Picker {
	if applier == nil {
		applier = &patch.GitApplier{}
	}
	return &Picker{client: client, applier: applier, log: logger}
}

// Prepare resolves both refs, fetches the patch between them, parses the
// per-file change records, and creates the session's staging directory with
// the patch written into it.
func (p *Picker) Prepare(ctx context.Context, baseRef, targetRef, targetBranch string) (*Session, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if targetBranch == "" {
		return nil, fmt.Errorf("target branch is required")
	}

	baseSHA, err := p.client.ResolveRef(ctx, baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolve base ref: %w", err)
	}
	targetSHA, err := p.client.ResolveRef(ctx, targetRef)
	if err != nil {
		return nil, fmt.Errorf("resolve target ref: %w", err)
	}

	patchText, err := p.client.Compare(ctx, baseSHA, targetSHA, gh.FormatPatch)
	if err != nil {
		return nil, fmt.Errorf("fetch patch %s...%s: %w", baseSHA, targetSHA, err)
	}

	session := &Session{
		ID:           uuid.NewString(),
		BaseSHA:      baseSHA,
		TargetSHA:    targetSHA,
		TargetBranch: targetBranch,
		Records:      patch.Parse(patchText),
	}
	session.Tree = patch.BuildTree(session.Records)

	if err := p.prepareStaging(session, patchText); err != nil {
		session.Discard()
		return nil, err
	}

	if p.log != nil {
		p.log.Info("prepared cherry-pick session",
			"session", session.ID,
			"base", baseSHA,
			"target", targetSHA,
			"branch", targetBranch,
			"files", len(session.Records),
			"staging", session.StagingDir)
	}

	return session, nil
}

func (p *Picker) prepareStaging(session *Session, patchText string) error {
	base := p.BaseDir
	if base == "" {
		base = os.TempDir()
	}

	staging, err := os.MkdirTemp(base, fmt.Sprintf("ghpick-%s-", session.ID[:8]))
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	session.StagingDir = staging

	session.FilesDir = filepath.Join(staging, "b")
	if err := os.Mkdir(session.FilesDir, 0o755); err != nil {
		return fmt.Errorf("create staging files directory: %w", err)
	}

	session.PatchFile = filepath.Join(staging, "patch")
	if err := os.WriteFile(session.PatchFile, []byte(patchText), 0o644); err != nil {
		return fmt.Errorf("write patch file: %w", err)
	}

	return nil
}

// Stage fetches each changed file's pre-image content on the target branch
// and writes it into the staging area, creating parent directories for all
// changed paths up front so purely-additive hunks have somewhere to land. A
// missing pre-image means the file is new on target or already deleted on the
// branch, so NotFound is skipped rather than surfaced.
func (p *Picker) Stage(ctx context.Context, session *Session) error {
	for _, record := range session.Records {
		parent := filepath.Dir(session.stagedPath(record.Path))
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create staging path for %s: %w", record.Path, err)
		}
	}

	for _, record := range session.Records {
		content, err := p.client.GetFile(ctx, record.Path, session.TargetBranch)
		if err != nil {
			if gh.IsNotFound(err) {
				if p.log != nil {
					p.log.Debug("no pre-image on branch, skipping", "session", session.ID, "path", record.Path)
				}
				continue
			}
			return fmt.Errorf("fetch pre-image %s: %w", record.Path, err)
		}

		if err := os.WriteFile(session.stagedPath(record.Path), content, 0o644); err != nil {
			return fmt.Errorf("stage %s: %w", record.Path, err)
		}
	}

	return nil
}

// Apply runs the patch tool over the staged pre-images. Hunks that cannot
// cleanly apply surface as a *patch.ConflictError carrying the tool output.
func (p *Picker) Apply(ctx context.Context, session *Session) error {
	if err := p.applier.Apply(ctx, session.PatchFile, session.FilesDir); err != nil {
		return err
	}

	// A deletion-only patch can remove the staging files root itself along
	// with its last file; recreate it so tree synthesis can still walk it.
	if _, err := os.Stat(session.FilesDir); os.IsNotExist(err) {
		if err := os.MkdirAll(session.FilesDir, 0o755); err != nil {
			return fmt.Errorf("recreate staging files directory: %w", err)
		}
	}

	return nil
}

// Patch prepares, stages, and applies the diff between baseRef and targetRef
// as pending changes against targetBranch. On failure after staging began,
// the session (with its staging directory) is returned alongside the error so
// the caller can inspect or discard it.
func (p *Picker) Patch(ctx context.Context, baseRef, targetRef, targetBranch string) (*Session, error) {
	session, err := p.Prepare(ctx, baseRef, targetRef, targetBranch)
	if err != nil {
		return nil, err
	}

	if err := p.Stage(ctx, session); err != nil {
		return session, err
	}

	if err := p.Apply(ctx, session); err != nil {
		return session, err
	}

	return session, nil
}

// StaleBranchError reports that the target branch advanced while the commit
// was being synthesized, so moving the pointer would have clobbered it.
type StaleBranchError struct {
	Branch   string
	Expected string
	Actual   string
}

func (e *StaleBranchError) Error() string {
	return fmt.Sprintf("branch %s moved from %s to %s during cherry-pick", e.Branch, e.Expected, e.Actual)
}

// Commit synthesizes the merged tree against the branch's live tree, creates
// a single-parent commit on the branch's current head, discards the staging
// area, and advances the branch reference. The branch tip is re-checked right
// before the pointer moves; a tip that no longer matches the recorded parent
// surfaces as a *StaleBranchError and the branch is left untouched.
func (p *Picker) Commit(ctx context.Context, session *Session, message string) (gh.Commit, error) {
	if message == "" {
		message = fmt.Sprintf("This is a cherry-pick between %s and %s", session.BaseSHA, session.TargetSHA)
	}

	branchTree, err := p.client.GetTree(ctx, session.TargetBranch, false)
	if err != nil {
		return gh.Commit{}, fmt.Errorf("fetch branch tree: %w", err)
	}

	head, err := p.client.GetCommit(ctx, session.TargetBranch)
	if err != nil {
		return gh.Commit{}, fmt.Errorf("fetch branch head: %w", err)
	}

	newTree, err := p.BuildTree(ctx, session, branchTree)
	if err != nil {
		return gh.Commit{}, err
	}

	commit, err := p.client.CreateCommit(ctx, message, newTree.SHA, []string{head.SHA}, gh.CommitAuthor{})
	if err != nil {
		return gh.Commit{}, fmt.Errorf("create commit: %w", err)
	}

	session.Discard()

	tip, err := p.client.GetBranch(ctx, session.TargetBranch)
	if err != nil {
		return gh.Commit{}, fmt.Errorf("recheck branch tip: %w", err)
	}
	if tip.SHA != head.SHA {
		return gh.Commit{}, &StaleBranchError{Branch: session.TargetBranch, Expected: head.SHA, Actual: tip.SHA}
	}

	if _, err := p.client.PointBranch(ctx, session.TargetBranch, commit.SHA); err != nil {
		return gh.Commit{}, fmt.Errorf("advance branch %s: %w", session.TargetBranch, err)
	}

	if p.log != nil {
		p.log.Info("committed cherry-pick",
			"session", session.ID,
			"branch", session.TargetBranch,
			"commit", commit.SHA,
			"tree", newTree.SHA,
			"parent", head.SHA)
	}

	return commit, nil
}
