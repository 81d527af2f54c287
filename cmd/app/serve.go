package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/adrkb/internal"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API with live search index and server-sent events",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, baseDir, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithBaseDir(baseDir)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the ADR tools over the Model Context Protocol on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, baseDir, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.RunMCP(ctx,
				internal.WithConfig(cfg),
				internal.WithBaseDir(baseDir),
				internal.WithLogger(cliLogger(cmd)),
				internal.WithVersion(version),
			)
		},
	}
}
