package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiqiyang-okta/ghpick/internal/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ghpick",
		Short:         "Cherry-pick the differences between two commits through the GitHub API",
		Long: `ghpick applies the file-level differences between two commits of a GitHub
repository to a target branch, entirely through the REST API. No local clone
is made; only a disposable staging directory is used while the patch is
applied.

Credentials come from the environment or a .env file: GHPICK_TOKEN, or
GHPICK_USERNAME and GHPICK_PASSWORD. GHPICK_BASE_URL points at a GitHub
Enterprise instance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newPickCmd())
	return root
}

func newPickCmd() *cobra.Command {
	var req app.PickRequest

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Apply the diff between two refs to a branch and commit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			runner, err := app.NewRunner(cfg)
			if err != nil {
				return fmt.Errorf("create runner: %w", err)
			}

			return runner.Run(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVar(&req.Org, "org", "", "GitHub org or user owning the repository (default $GHPICK_ORG)")
	cmd.Flags().StringVar(&req.Repo, "repo", "", "repository name (default $GHPICK_REPO)")
	cmd.Flags().StringVar(&req.BaseRef, "base", "", "base SHA, branch, or tag of the diff")
	cmd.Flags().StringVar(&req.TargetRef, "target", "", "target SHA, branch, or tag of the diff")
	cmd.Flags().StringVar(&req.TargetBranch, "branch", "", "branch to apply the changes to")
	cmd.Flags().StringVar(&req.Message, "message", "", "commit message (default auto-generated)")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "apply the patch but do not commit; keep the staging directory")

	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("branch")

	return cmd
}
