// Package cli implements the schemacache command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/koustreak/schemacache/internal/app"
	"github.com/koustreak/schemacache/internal/config"
	"github.com/koustreak/schemacache/internal/logger"
)

// runtime is shared by the subcommands of one invocation.
type runtime struct {
	configPath string
	app        *app.App
}

// NewRootCmd builds the command tree. Logs go to stderr; command output to
// the command's configured output.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "schemacache",
		Short: "Cache database schemas for query authoring tools",
		Long: `schemacache introspects registered database connections, or reads an
offline DDL description for them, and keeps the resulting table and column
listing in a cache so editors can offer completions without waiting on the
database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if rt.app == nil {
				return nil
			}
			return rt.app.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&rt.configPath, "config", "c", "", "config file (default schemacache.yaml in the working directory)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or console")

	root.AddCommand(
		newServeCmd(rt),
		newSchemaCmd(rt),
		newJSONCmd(rt),
		newInvalidateCmd(rt),
		newBuildCmd(rt),
		newConnectionsCmd(rt),
	)
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (rt *runtime) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(rt.configPath, cmd.Flags())
	if err != nil {
		return err
	}

	lc := cfg.Logger()
	lc.Output = cmd.ErrOrStderr()
	log := logger.New(lc)
	if cfg.File != "" {
		log.With().Str("file", cfg.File).Logger().Debug("configuration loaded")
	}

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	rt.app = a
	return nil
}
