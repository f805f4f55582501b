package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/synergyos/synergyos/jobs"
)

func newSeedCmd(open Opener) *cobra.Command {
	var (
		async  bool
		reason string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the default permission and role catalog",
		Long:  "Creates any missing permissions, system roles and role links. Safe to run repeatedly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if async {
					return enqueueSeed(ctx, cmd, b, reason)
				}
				report, err := b.Roles.SeedRoles(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, report, func(w io.Writer) {
					fmt.Fprintln(w, "KIND\tCREATED\tEXISTING")
					fmt.Fprintf(w, "permission\t%d\t%d\n", report.PermissionsCreated, report.PermissionsExisting)
					fmt.Fprintf(w, "role\t%d\t%d\n", report.RolesCreated, report.RolesExisting)
					fmt.Fprintf(w, "role_permission\t%d\t%d\n", report.RolePermissionsCreated, report.RolePermissionsExisting)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue an rbac:seed job instead of seeding inline")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with an enqueued job")
	return cmd
}

func enqueueSeed(ctx context.Context, cmd *cobra.Command, b *Backend, reason string) error {
	if b.Seeds == nil {
		return errors.New("seed: job queue not configured")
	}
	info, enqueued, err := b.Seeds.EnqueueSeed(ctx, jobs.SeedPayload{RequestedBy: requester(), Reason: reason})
	if err != nil {
		return fmt.Errorf("seed: enqueue: %w", err)
	}
	result := map[string]any{"enqueued": enqueued}
	if info != nil {
		result["id"] = info.ID
		result["queue"] = info.Queue
	}
	return printResult(cmd, result, func(w io.Writer) {
		if !enqueued {
			fmt.Fprintln(w, "seed already queued")
			return
		}
		fmt.Fprintf(w, "enqueued %s on %s\n", info.ID, info.Queue)
	})
}

func requester() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "synergyctl"
}
