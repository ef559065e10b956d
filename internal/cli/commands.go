package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/schema"
	"github.com/koustreak/schemacache/internal/server"
)

const pollInterval = 100 * time.Millisecond

func newServeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cached schemas over HTTP and build them in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := rt.app
			srv := server.New(server.Config{
				Addr:         a.Config.Server.Addr,
				ReadTimeout:  a.Config.Server.ReadTimeout,
				WriteTimeout: a.Config.Server.WriteTimeout,
				Status:       a,
			}, a.Catalog, a.Manager, a.Log.With().Str("component", "http").Logger())

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return a.Pool.Run(ctx) })
			g.Go(func() error { return a.RunPurger(ctx) })
			g.Go(func() error { return srv.Run(ctx) })
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int("workers", 2, "background build workers")
	return cmd
}

func newSchemaCmd(rt *runtime) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "schema <connection-id>",
		Short: "Print a connection's cached schema, scheduling a build on a miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := rt.app.Connection(args[0])
			if err != nil {
				return err
			}
			return rt.withPool(cmd.Context(), func(ctx context.Context) error {
				info := rt.app.Manager.GetSchema(ctx, conn)
				if wait > 0 {
					if err := rt.await(ctx, conn, wait); err != nil {
						return err
					}
					info = rt.app.Manager.GetSchema(ctx, conn)
				}
				return printJSON(cmd.OutOrStdout(), info)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for a build on a miss")
	return cmd
}

func newJSONCmd(rt *runtime) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "json <connection-id>",
		Short: "Print a connection's table to column-names mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := rt.app.Connection(args[0])
			if err != nil {
				return err
			}
			return rt.withPool(cmd.Context(), func(ctx context.Context) error {
				js := rt.app.Manager.GetJSONSchema(ctx, conn)
				if wait > 0 && js.Len() == 0 {
					if err := rt.await(ctx, conn, wait); err != nil {
						return err
					}
					js = rt.app.Manager.GetJSONSchema(ctx, conn)
				}
				return printJSON(cmd.OutOrStdout(), js)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for a build on a miss")
	return cmd
}

func newInvalidateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <connection-id>",
		Short: "Drop a connection's cached schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := rt.app.Connection(args[0])
			if err != nil {
				return err
			}
			if err := rt.app.Manager.Invalidate(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", conn.ID)
			return nil
		},
	}
}

type buildSummary struct {
	Connection string `json:"connection"`
	Mode       string `json:"mode"`
	Fallback   string `json:"fallback,omitempty"`
	Cached     bool   `json:"cached"`
	Tables     int    `json:"tables"`
}

func newBuildCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "build <connection-id>",
		Short: "Build a connection's schema now and store it in the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt.app.Pool.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sum := buildSummary{
				Connection: args[0],
				Mode:       string(res.Mode),
				Cached:     res.Cacheable,
				Tables:     len(res.Schema),
			}
			if res.Mode == schema.ModeFallback {
				sum.Fallback = res.Fallback.String()
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
}

func newConnectionsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List registered connections and whether their schema is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDRIVER\tINTROSPECTION\tCACHED")
			for _, c := range rt.app.Catalog.All() {
				_, cached := rt.app.Manager.Peek(cmd.Context(), c)
				mode := c.Introspection
				if mode == "" {
					mode = "policy"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Driver(), mode, cached)
			}
			return tw.Flush()
		},
	}
}

// withPool runs fn while the job pool processes dispatched builds. Builds
// still queued when fn returns are dropped.
func (rt *runtime) withPool(ctx context.Context, fn func(context.Context) error) error {
	poolCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- rt.app.Pool.Run(poolCtx) }()

	err := fn(ctx)
	cancel()
	if perr := <-done; err == nil {
		err = perr
	}
	return err
}

// await polls the cache until conn's schema appears or wait elapses.
func (rt *runtime) await(ctx context.Context, conn *database.Connection, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if _, ok := rt.app.Manager.Peek(ctx, conn); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return errs.Newf(errs.ErrKindTimeout, "schema for %q not ready after %s", conn.ID, wait)
		case <-ticker.C:
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
