package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/codex/internal"
	pkgconfig "github.com/starford/codex/pkg/config"
)

func runMode(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}

		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "codex",
		Usage:  "Compile Markdown content collections into typed, importable modules",
		Action: runMode(internal.ModeServe),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Compile every collection once and write the artifacts",
				Action: runMode(internal.ModeBuild),
			},
			{
				Name:   "watch",
				Usage:  "Build, then rebuild affected outputs on file changes",
				Action: runMode(internal.ModeWatch),
			},
			{
				Name:   "serve",
				Usage:  "Build, watch and run the preview HTTP API",
				Action: runMode(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Build and serve MCP tools over stdio",
				Action: runMode(internal.ModeMCP),
			},
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "Print the collections and their record ids in list order",
				Action:  runMode(internal.ModeList),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
