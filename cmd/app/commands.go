package main

import (
	"fmt"
	"strconv"
	"time"

	"mission_rewards/internal/model"
	"mission_rewards/pkg/auth"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

type issueCodeOptions struct {
	MissionID  string
	ReviewerID int64
	TTL        time.Duration
}

func newIssueCodeCommand(opts *rootOptions) *cobra.Command {
	o := &issueCodeOptions{}

	cmd := &cobra.Command{
		Use:   "issue-code",
		Short: "Issue a single-use proof token for a mission",
		Long: `Issue a signed single-use proof token for a mission's place.

The call goes through the review gateway, so the reviewer must hold the
codes:issue permission and the action is audited.

Example:
  missions issue-code --mission 6f1c... --reviewer 1001 --ttl 12h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := uuid.Parse(o.MissionID)
			if err != nil {
				return fmt.Errorf("invalid mission id: %w", err)
			}
			if err := opts.cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			issued, err := a.gateway.IssueCode(cmd.Context(), o.ReviewerID, missionID, o.TTL)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token_id:   %s\n", issued.Token.ID)
			fmt.Fprintf(out, "expires_at: %s\n", issued.Token.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintln(out, issued.Raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&o.MissionID, "mission", "", "mission id (required)")
	cmd.Flags().Int64Var(&o.ReviewerID, "reviewer", 0, "reviewer id issuing the token (required)")
	cmd.Flags().DurationVar(&o.TTL, "ttl", 0, "token lifetime, defaults to proofToken.ttl")
	_ = cmd.MarkFlagRequired("mission")
	_ = cmd.MarkFlagRequired("reviewer")

	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue runs once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if batch <= 0 {
				batch = opts.cfg.Scheduler.ExpireBatch
			}
			n, err := a.runs.ExpireStale(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d runs\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "maximum runs to expire, defaults to scheduler.expireBatch")
	return cmd
}

func parseRole(s string) (model.Role, error) {
	switch r := model.Role(s); r {
	case model.RoleViewer, model.RoleReviewer, model.RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q: must be viewer, reviewer or admin", s)
}

func newGrantRoleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grant-role <reviewer-id> <role>",
		Short: "Create a reviewer or change their role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reviewer id: %w", err)
			}
			role, err := parseRole(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.UpsertReviewer(cmd.Context(), reviewerID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reviewer %d is now %s\n", reviewerID, role)
			return nil
		},
	}
}

func newReviewerTokenCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reviewer-token <reviewer-id>",
		Short: "Print a bearer token for the review API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reviewer id: %w", err)
			}
			if opts.cfg.ReviewerAuth.Secret == "" {
				return fmt.Errorf("reviewerAuth.secret is required")
			}

			raw, err := auth.NewReviewerTokens(opts.cfg.ReviewerAuth).Issue(reviewerID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}
