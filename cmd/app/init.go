package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/adrkb/internal"
	pkgconfig "github.com/starford/adrkb/pkg/config"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write .adrkb.yml, create the ADR folder and seed the first ADRs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "defaults", Usage: "Use detected defaults (required: interactive setup is not available)"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Project name (default: directory name)"},
		},
		Action: runInit,
	}
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("defaults") {
		return errors.New("interactive setup is not available: run `adrkb init --defaults`")
	}
	logger := cliLogger(cmd)

	path := cmd.String("config")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		path = filepath.Join(wd, internal.ConfigFiles[0])
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	baseDir := filepath.Dir(path)

	if _, statErr := os.Stat(path); statErr == nil {
		logger.Warn("config already exists, not overriding it", "path", path)
		fmt.Fprintf(os.Stderr, "%s already exists. Remove it and run init again to reconfigure.\n", path)
		return nil
	}

	cfg := internal.NewDefaultConfig()
	cfg.Project.Name = cmd.String("name")
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(baseDir)
	}
	cfg.Project.ADRFolder = internal.GuessADRFolder(baseDir)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid defaults: %w", err)
	}
	if err := pkgconfig.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)

	svc, err := internal.NewService(cfg, baseDir, logger)
	if err != nil {
		return err
	}
	seeded, err := svc.Init(ctx, cfg.Project.Name)
	if err != nil {
		return err
	}
	for _, a := range seeded.Assets {
		fmt.Printf("Copied %s\n", a)
	}
	for _, c := range seeded.Records {
		fmt.Printf("Created %s\n", c.Path)
	}
	fmt.Printf("adrkb is ready: ADRs live in %s\n", filepath.Join(baseDir, cfg.Project.ADRFolder))
	return nil
}
