package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/adrkb/internal"
	pkgconfig "github.com/starford/adrkb/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errProblems makes the process exit 1 without logging a second message.
var errProblems = errors.New("problems found")

// cliLogger writes human-readable logs to stderr so stdout stays clean for
// reports.
func cliLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the --config file, or the closest .adrkb.* file above the
// working directory, and returns it with the directory it lives in.
func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	path := cmd.String("config")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		if path, err = internal.Locate(wd); err != nil {
			return nil, "", fmt.Errorf("%w (run `adrkb init --defaults` first)", err)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(abs, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, filepath.Dir(abs), nil
}

func main() {
	cmd := &cli.Command{
		Name:    "adrkb",
		Usage:   "Architecture decision records knowledge base: create, list, diagnose and serve ADRs",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: closest .adrkb.yml)",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug messages to stderr",
			},
		},
		Commands: []*cli.Command{
			adrCommand(),
			diagnoseCommand(),
			initCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errProblems) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
