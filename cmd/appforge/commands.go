package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/appforge/internal/artifact"
	"github.com/randalmurphal/appforge/internal/flowstate"
	"github.com/randalmurphal/appforge/internal/orchestrator"
	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence/checkpoint"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.settings.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return newApp(c.settings).run(queryContext(cmd))
		},
	}
}

func (c *cli) projectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project <id>",
		Short: "Print the latest configuration and datasets of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(st store.Store) error {
				orch := orchestrator.New(orchestrator.Config{}, st, nil, nil)
				project, err := orch.Query(queryContext(cmd), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), project)
			})
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Print the step log of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(st store.Store) error {
				orch := orchestrator.New(orchestrator.Config{}, st, nil, nil)
				entries, err := orch.History(queryContext(cmd), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func (c *cli) runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List runs that stopped before their last step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cps, err := checkpoint.NewSQLiteStore(checkpointPath(c.settings.DatabasePath))
			if err != nil {
				return fmt.Errorf("%w: %w", ErrOpenCheckpoints, err)
			}
			defer func() { _ = cps.Close() }()

			infos, err := cps.Interrupted()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), infos)
		},
	}
}

func (c *cli) artifactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts <id>",
		Short: "Print the exported configuration versions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := c.settings.Artifacts
			if bucket.BucketURL == "" {
				return ErrNoBucket
			}
			ctx := queryContext(cmd)
			exp, err := artifact.NewBlobExporter(ctx, bucket.BucketURL, bucket.Prefix)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrOpenBucket, err)
			}
			defer func() { _ = exp.Close() }()

			versions, err := exp.Versions(ctx, args[0])
			if err != nil {
				return err
			}
			out := struct {
				FlowID   string             `json:"project_id"`
				Versions []int              `json:"versions"`
				Latest   flowstate.Document `json:"latest,omitempty"`
			}{FlowID: args[0], Versions: versions}
			if len(versions) > 0 {
				out.Latest, err = exp.Config(ctx, args[0], versions[len(versions)-1])
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func (c *cli) withStore(fn func(store.Store) error) error {
	st, err := store.NewSQLiteStore(c.settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenStore, err)
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

func queryContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
