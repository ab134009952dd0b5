package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-translator/internal/app"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

// cli holds state shared by every subcommand for one invocation.
type cli struct {
	cfg     config.Config
	svcs    *app.Services
	closeFn func()
	asJSON  bool
	verbose bool
	out     io.Writer
}

// close releases the store opened by PersistentPreRunE. Cobra skips post-run
// hooks when RunE fails, so callers invoke it after Execute instead.
func (c *cli) close() {
	if c.closeFn != nil {
		c.closeFn()
		c.closeFn = nil
	}
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	var (
		driver     string
		sqlitePath string
	)
	root := &cobra.Command{
		Use:           "translatectl",
		Short:         "Manage AI translation providers and run translations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.out = cmd.OutOrStdout()
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if driver != "" {
				cfg.StoreDriver = driver
			}
			if sqlitePath != "" {
				cfg.SQLitePath = sqlitePath
			}
			level := slog.LevelWarn
			if c.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, closeStore, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			svcs, err := app.BuildServices(ctx, cfg, store, events.Nop{})
			if err != nil {
				closeStore()
				return err
			}
			c.cfg, c.svcs, c.closeFn = cfg, svcs, closeStore
			return nil
		},
	}
	root.PersistentFlags().StringVar(&driver, "store", "", "store driver: memory, sqlite, redis, postgres (default from STORE_DRIVER)")
	root.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "sqlite database path (default from SQLITE_PATH)")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddGroup(
		&cobra.Group{ID: "providers", Title: "Providers:"},
		&cobra.Group{ID: "selection", Title: "Selection:"},
	)
	for _, sub := range []*cobra.Command{providersCmd(c), keyCmd(c), modelsCmd(c)} {
		sub.GroupID = "providers"
		root.AddCommand(sub)
	}
	for _, sub := range []*cobra.Command{scopeCmd(c), translateCmd(c)} {
		sub.GroupID = "selection"
		root.AddCommand(sub)
	}
	root.AddCommand(hashPasswordCmd(c))
	return root, c
}
