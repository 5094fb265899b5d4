package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio/backend/internal/storage"
	"portfolio/backend/internal/storage/provider"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Create indexes and backfill missing submission ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return withStore(ctx, func(store storage.Store, log *zap.Logger) error {
			return runBackfill(ctx, os.Stdout, store, log)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return withStore(ctx, func(store storage.Store, _ *zap.Logger) error {
			return runList(ctx, os.Stdout, store, jsonOutput)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one submission by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return withStore(ctx, func(store storage.Store, _ *zap.Logger) error {
			return runDelete(ctx, os.Stdout, store, args[0])
		})
	},
}

// runBackfill 对支持维护的存储执行索引创建与 id 补写
func runBackfill(ctx context.Context, w io.Writer, store storage.Store, log *zap.Logger) error {
	if _, ok := store.(storage.Maintainer); !ok {
		fmt.Fprintln(w, "Storage backend needs no maintenance.")
		return nil
	}
	if err := provider.Prepare(ctx, store, log); err != nil {
		return err
	}
	fmt.Fprintln(w, "Indexes ensured and legacy ids backfilled.")
	return nil
}

func runList(ctx context.Context, w io.Writer, store storage.SubmissionRepository, asJSON bool) error {
	submissions, err := store.ListSubmissions(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(submissions)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAME\tEMAIL\tMESSAGE")
	for _, s := range submissions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt, s.Name, s.Email, preview(s.Message, 40))
	}
	return tw.Flush()
}

func runDelete(ctx context.Context, w io.Writer, store storage.SubmissionRepository, id string) error {
	removed, err := store.DeleteSubmission(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed %d submission(s).\n", removed)
	return nil
}

// preview 截取前 n 个字符
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
