package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/adrkb/internal"
	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/report"
)

func diagnoseCommand() *cli.Command {
	return &cli.Command{
		Name:  "diagnose",
		Usage: "Check every ADR for consistency problems; exits 1 when errors are found",
		Flags: []cli.Flag{formatFlag(), noColorFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			cfg, baseDir, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := internal.NewService(cfg, baseDir, cliLogger(cmd))
			if err != nil {
				return err
			}
			ds, err := svc.Diagnose(ctx)
			if err != nil {
				return err
			}
			if err := report.Diagnostics(os.Stdout, ds, format, opts); err != nil {
				return err
			}
			if diag.HasErrors(ds) {
				return errProblems
			}
			return nil
		},
	}
}
