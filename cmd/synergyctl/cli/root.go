package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/synergyos/synergyos/internal/app"
	"github.com/synergyos/synergyos/internal/platform/cache"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/internal/session"
	"github.com/synergyos/synergyos/jobs"
)

// SeedEnqueuer submits rbac:seed tasks to the job queue.
type SeedEnqueuer interface {
	EnqueueSeed(ctx context.Context, payload jobs.SeedPayload) (*asynq.TaskInfo, bool, error)
}

// Backend is the set of services the commands operate on.
type Backend struct {
	Roles     *rbac.Store
	Authority *rbac.Authority
	Sessions  *session.Manager
	Seeds     SeedEnqueuer
	Close     func() error
}

// Opener connects a Backend. It runs once per command invocation.
type Opener func(ctx context.Context) (*Backend, error)

// Execute runs the CLI.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd(openFromEnv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree over open.
func NewRootCmd(open Opener) *cobra.Command {
	var output string

	rootCmd := &cobra.Command{
		Use:           "synergyctl",
		Short:         "SynergyOS administration CLI",
		Long:          "Seed the RBAC catalog, manage role assignments and sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q", output)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(
		newSeedCmd(open),
		newGrantCmd(open),
		newRevokeCmd(open),
		newRolesCmd(open),
		newCheckCmd(open),
		newSessionCmd(open),
	)
	return rootCmd
}

func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	b, err := open(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, b)
	if b.Close != nil {
		err = errors.Join(err, b.Close())
	}
	return err
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

// printResult writes v as indented JSON or as a table drawn by table.
func printResult(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if outputFormat(cmd) == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func openFromEnv(ctx context.Context) (*Backend, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	docs, closeDocs, err := app.OpenDocstore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		closeDocs()
		return nil, err
	}
	roles := rbac.NewStore(docs)
	client := jobs.NewClient(cfg.Redis().AsynqOpt())
	return &Backend{
		Roles:     roles,
		Authority: rbac.NewAuthority(roles),
		Sessions:  session.NewManager(redisClient, cfg.SessionTTL),
		Seeds:     client,
		Close: func() error {
			closeDocs()
			return errors.Join(client.Close(), redisClient.Close())
		},
	}, nil
}
