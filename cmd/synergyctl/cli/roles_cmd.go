package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synergyos/synergyos/internal/rbac"
)

func newGrantCmd(open Opener) *cobra.Command {
	var scope, workspace string
	cmd := &cobra.Command{
		Use:   "grant USER ROLE",
		Short: "Assign a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				role, err := b.Roles.FindRole(ctx, workspace, args[1])
				if err != nil {
					return err
				}
				assignment, err := b.Roles.GrantRole(ctx, args[0], role.ID, scope)
				if err != nil {
					return err
				}
				return printResult(cmd, assignment, func(w io.Writer) {
					fmt.Fprintf(w, "granted %s to %s in %s\n", role.Name, args[0], scopeLabel(scope))
				})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope the assignment applies to (empty for workspace-wide)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace owning a custom role")
	return cmd
}

func newRevokeCmd(open Opener) *cobra.Command {
	var scope, workspace string
	cmd := &cobra.Command{
		Use:   "revoke USER ROLE",
		Short: "Remove a role assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				role, err := b.Roles.FindRole(ctx, workspace, args[1])
				if err != nil {
					return err
				}
				if err := b.Roles.RevokeRole(ctx, args[0], role.ID, scope); err != nil {
					return err
				}
				result := map[string]string{"userId": args[0], "roleId": role.ID, "scopeId": scope}
				return printResult(cmd, result, func(w io.Writer) {
					fmt.Fprintf(w, "revoked %s from %s in %s\n", role.Name, args[0], scopeLabel(scope))
				})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope of the assignment")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace owning a custom role")
	return cmd
}

func newRolesCmd(open Opener) *cobra.Command {
	var scope, workspace string
	cmd := &cobra.Command{
		Use:   "roles [USER]",
		Short: "List roles, or the roles a user holds in a scope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				var (
					roles []rbac.Role
					err   error
				)
				if len(args) == 1 {
					roles, err = b.Roles.GetRolesForUser(ctx, args[0], scope)
				} else {
					roles, err = b.Roles.ListRoles(ctx, workspace)
				}
				if err != nil {
					return err
				}
				return printResult(cmd, roles, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tNAME\tWORKSPACE")
					for _, role := range roles {
						fmt.Fprintf(w, "%s\t%s\t%s\n", role.ID, role.Name, scopeLabel(role.WorkspaceID))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to evaluate a user's roles in")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Include custom roles of this workspace")
	return cmd
}

func newCheckCmd(open Opener) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "check USER ACTION...",
		Short: "Evaluate whether a user may perform actions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				decisions, err := b.Authority.Decide(ctx, args[0], scope, args[1:]...)
				if err != nil {
					return err
				}
				return printResult(cmd, decisions, func(w io.Writer) {
					fmt.Fprintln(w, "ACTION\tDECISION")
					for _, action := range args[1:] {
						key := strings.ToLower(strings.TrimSpace(action))
						decision := "denied"
						if decisions[key] {
							decision = "allowed"
						}
						fmt.Fprintf(w, "%s\t%s\n", key, decision)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to evaluate in")
	return cmd
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "(global)"
	}
	return scope
}
