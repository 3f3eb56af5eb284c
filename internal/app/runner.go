package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shiqiyang-okta/ghpick/internal/cherry"
	gh "github.com/shiqiyang-okta/ghpick/internal/github"
	"github.com/shiqiyang-okta/ghpick/internal/patch"
)

// PickRequest names one cherry-pick operation: apply the differences between
// BaseRef and TargetRef to TargetBranch.
type PickRequest struct {
	Org          string
	Repo         string
	BaseRef      string
	TargetRef    string
	TargetBranch string
	Message      string
	DryRun       bool
}

// Runner glues configuration, the provider client, and the cherry-pick
// session together to execute one pick end to end.
type Runner struct {
	cfg     Config
	log     *slog.Logger
	out     io.Writer
	client  gh.Client     // injected for testing via NewRunnerWithDeps
	applier patch.Applier // injected for testing via NewRunnerWithDeps
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Runner{cfg: cfg, log: logger, out: os.Stdout}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, out io.Writer, client gh.Client, applier patch.Applier) *Runner {
	return &Runner{cfg: cfg, log: log, out: out, client: client, applier: applier}
}

// Run executes the requested cherry-pick. With DryRun set, the patch is
// prepared, staged, and applied but no commit is created; the staging
// directory is retained and its path printed for inspection.
func (r *Runner) Run(ctx context.Context, req PickRequest) error {
	org := req.Org
	if org == "" {
		org = r.cfg.Org
	}
	repo := req.Repo
	if repo == "" {
		repo = r.cfg.Repo
	}

	if org == "" || repo == "" {
		return fmt.Errorf("org and repo are required")
	}
	if req.BaseRef == "" || req.TargetRef == "" || req.TargetBranch == "" {
		return fmt.Errorf("base, target, and branch are required")
	}

	client := r.client
	if client == nil {
		var err error
		client, err = gh.NewRESTClient(ctx, gh.Options{
			Username:  r.cfg.Username,
			Password:  r.cfg.Password,
			Token:     r.cfg.Token,
			Owner:     org,
			Repo:      repo,
			BaseURL:   r.cfg.BaseURL,
			UploadURL: r.cfg.UploadURL,
		})
		if err != nil {
			return fmt.Errorf("initialize github client: %w", err)
		}
	}

	picker := cherry.NewPicker(client, r.applier, r.log)

	session, err := picker.Patch(ctx, req.BaseRef, req.TargetRef, req.TargetBranch)
	if err != nil {
		var conflict *patch.ConflictError
		if errors.As(err, &conflict) && session != nil {
			// The staging directory is left behind so the rejects can be
			// inspected; the caller decides when to remove it.
			if r.log != nil {
				r.log.Error("patch did not apply cleanly", "staging", session.StagingDir)
			}
			return fmt.Errorf("apply patch: %w", err)
		}
		if session != nil {
			session.Discard()
		}
		return fmt.Errorf("prepare patch: %w", err)
	}

	WriteSummary(r.out, session.Records)

	if req.DryRun {
		fmt.Fprintf(r.out, "dry run: staged changes retained at %s\n", session.StagingDir)
		return nil
	}

	commit, err := picker.Commit(ctx, session, req.Message)
	if err != nil {
		return fmt.Errorf("commit cherry-pick: %w", err)
	}

	fmt.Fprintf(r.out, "%s is now at %s\n", req.TargetBranch, commit.SHA)
	return nil
}
