// Package ghpick applies the file-level differences between two commits of a
// GitHub repository to a target branch, entirely through the REST API and
// without a local clone.
//
// Usage:
//
//	cp, err := ghpick.New(ctx, ghpick.Options{
//		Username: username,
//		Password: password,
//		Org:      organization,
//		Repo:     repo,
//	})
//	ok, err := cp.Patch(ctx, sha1, sha2, "rel_1.0_dev")
//	commit, err := cp.Commit(ctx, "")
//
// Enterprise users pass the full URL to their GitHub instance via
// Options.BaseURL, e.g. "https://gh.internal.com/api/v3".
//
// When no commit message is given, a default of "This is a cherry-pick
// between {sha1} and {sha2}" is used. Callers wanting a richer message can
// list the commits between the two SHAs with CommitsBetween and include each
// SHA and message themselves.
package ghpick

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiqiyang-okta/ghpick/internal/cherry"
	gh "github.com/shiqiyang-okta/ghpick/internal/github"
	"github.com/shiqiyang-okta/ghpick/internal/patch"
)

// Options configure a CherryPick.
type Options struct {
	// Username and Password authenticate with HTTP Basic credentials. Token
	// may be set instead for token-based authentication.
	Username string
	Password string
	Token    string

	// Org is the GitHub org (which could be the username); Repo the
	// repository name.
	Org  string
	Repo string

	// BaseURL targets a GitHub Enterprise instance. Empty means github.com.
	BaseURL   string
	UploadURL string

	// Logger receives structured progress logging when set.
	Logger *slog.Logger
}

// FileChange summarizes one file touched by the patch.
type FileChange struct {
	Path    string
	Mode    string
	Deleted bool
}

// Commit is the handle of a created commit.
type Commit struct {
	SHA     string
	TreeSHA string
	Message string
	Parents []string
}

// CherryPick applies the differences between two SHAs to a target branch.
// A CherryPick holds at most one in-flight session; it is not safe for
// concurrent use.
type CherryPick struct {
	client  gh.Client
	picker  *cherry.Picker
	session *cherry.Session
}

// New returns a CherryPick talking to the repository named by opts.
func New(ctx context.Context, opts Options) (*CherryPick, error) {
	client, err := gh.NewRESTClient(ctx, gh.Options{
		Username:  opts.Username,
		Password:  opts.Password,
		Token:     opts.Token,
		Owner:     opts.Org,
		Repo:      opts.Repo,
		BaseURL:   opts.BaseURL,
		UploadURL: opts.UploadURL,
	})
	if err != nil {
		return nil, err
	}

	return &CherryPick{
		client: client,
		picker: cherry.NewPicker(client, nil, opts.Logger),
	}, nil
}

// newWithClient wires a CherryPick around preconstructed collaborators.
func newWithClient(client gh.Client, applier patch.Applier, logger *slog.Logger) *CherryPick {
	return &CherryPick{client: client, picker: cherry.NewPicker(client, applier, logger)}
}

// Patch fetches the diff between baseRef and targetRef, stages the pre-image
// files from targetBranch into a temporary directory, and applies the patch
// to them. It returns true on success; a patch that does not apply cleanly
// returns a *patch.ConflictError wrapped in the error chain, and the staging
// directory is retained for inspection until Abandon or Commit.
func (c *CherryPick) Patch(ctx context.Context, baseRef, targetRef, targetBranch string) (bool, error) {
	if c.session != nil {
		c.session.Discard()
	}

	session, err := c.picker.Patch(ctx, baseRef, targetRef, targetBranch)
	c.session = session
	if err != nil {
		return false, err
	}
	return true, nil
}

// Summary returns the per-file change list of the current session, in diff
// order.
func (c *CherryPick) Summary() []FileChange {
	if c.session == nil {
		return nil
	}
	changes := make([]FileChange, 0, len(c.session.Records))
	for _, record := range c.session.Records {
		changes = append(changes, FileChange{Path: record.Path, Mode: record.Mode, Deleted: record.Deleted})
	}
	return changes
}

// StagingDir exposes the current session's staging directory, mainly so
// callers can inspect rejects after a conflict.
func (c *CherryPick) StagingDir() string {
	if c.session == nil {
		return ""
	}
	return c.session.StagingDir
}

// Commit builds the merged tree, commits it onto the target branch's current
// head, and advances the branch reference. The staging directory is removed.
// An empty message selects the default cherry-pick message.
func (c *CherryPick) Commit(ctx context.Context, message string) (Commit, error) {
	if c.session == nil {
		return Commit{}, fmt.Errorf("no patch session: call Patch first")
	}

	created, err := c.picker.Commit(ctx, c.session, message)
	if err != nil {
		return Commit{}, err
	}

	c.session = nil
	return Commit{
		SHA:     created.SHA,
		TreeSHA: created.TreeSHA,
		Message: created.Message,
		Parents: created.Parents,
	}, nil
}

// Abandon discards the current session and its staging directory.
func (c *CherryPick) Abandon() {
	if c.session != nil {
		c.session.Discard()
		c.session = nil
	}
}

// CommitsBetween lists the commits after startRef up to and including
// endRef, newest first.
func (c *CherryPick) CommitsBetween(ctx context.Context, startRef, endRef string) ([]Commit, error) {
	commits, err := c.client.ListCommitsSince(ctx, startRef, endRef)
	if err != nil {
		return nil, err
	}

	result := make([]Commit, 0, len(commits))
	for _, commit := range commits {
		result = append(result, Commit{
			SHA:     commit.SHA,
			TreeSHA: commit.TreeSHA,
			Message: commit.Message,
			Parents: commit.Parents,
		})
	}
	return result, nil
}
