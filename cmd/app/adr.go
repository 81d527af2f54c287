package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/starford/adrkb/internal"
	"github.com/starford/adrkb/internal/kb"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/report"
)

func adrCommand() *cli.Command {
	return &cli.Command{
		Name:  "adr",
		Usage: "Manage the Architecture Decision Records (ADR)",
		Commands: []*cli.Command{
			{
				Name:      "new",
				Usage:     "Create an ADR",
				ArgsUsage: "[title]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only print the new slug"},
					&cli.StringFlag{Name: "package", Aliases: []string{"p"}, Usage: "Create the ADR for a specific package"},
					&cli.StringFlag{Name: "from", Usage: "Copy `FILE` contents into the ADR instead of using the template"},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Initial status", Value: string(models.DefaultStatus)},
				},
				Action: runNew,
			},
			{
				Name:  "list",
				Usage: "List ADRs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "statuses", Aliases: []string{"s"}, Usage: "Filter on the given statuses, comma-separated"},
					&cli.StringFlag{Name: "package", Aliases: []string{"p"}, Usage: "Only list one package ('_' for the global folder)"},
					&cli.StringFlag{Name: "tag", Usage: "Only list ADRs carrying the tag"},
					&cli.BoolFlag{Name: "raw", Aliases: []string{"r"}, Usage: "Use a raw format instead of a table"},
					formatFlag(),
					noColorFlag(),
				},
				Action: runList,
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: table, raw or json (default: table on a terminal, raw otherwise)"}
}

func noColorFlag() cli.Flag {
	return &cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"}
}

// outputOptions picks the report format and colors: an explicit --format
// wins, otherwise terminals get a colored table and pipes get raw lines.
func outputOptions(cmd *cli.Command) (report.Format, report.Options, error) {
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	opts := report.Options{Color: tty && !color.NoColor && !cmd.Bool("no-color")}
	if tty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 80 {
			opts.TitleWidth = w / 3
		}
	}

	if s := cmd.String("format"); s != "" {
		f, err := report.ParseFormat(s)
		return f, opts, err
	}
	if cmd.Bool("raw") || !tty {
		return report.FormatRaw, opts, nil
	}
	return report.FormatTable, opts, nil
}

func packageRef(name string) models.PackageRef {
	if name == "_" || name == "global" {
		return models.Global
	}
	return models.PackageRef(name)
}

func runNew(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if title == "" {
		return errors.New("a title is required: adrkb adr new \"Use Postgres\"")
	}
	cfg, baseDir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.NewService(cfg, baseDir, cliLogger(cmd))
	if err != nil {
		return err
	}

	in := kb.CreateInput{
		Package: packageRef(cmd.String("package")),
		Title:   title,
		Status:  models.Status(strings.ToLower(cmd.String("status"))),
	}
	if from := cmd.String("from"); from != "" {
		data, err := os.ReadFile(from)
		if err != nil {
			return fmt.Errorf("read --from: %w", err)
		}
		in.Template = string(data)
	}

	created, err := svc.Create(ctx, in)
	if err != nil {
		return err
	}
	if cmd.Bool("quiet") {
		fmt.Println(created.Slug)
		return nil
	}
	fmt.Printf("New ADR created: %s\n", created.Path)
	return nil
}

func runList(ctx context.Context, cmd *cli.Command) error {
	format, opts, err := outputOptions(cmd)
	if err != nil {
		return err
	}
	statuses, err := kb.ParseStatuses(cmd.String("statuses"))
	if err != nil {
		return err
	}
	f := kb.Filter{Statuses: statuses, Tag: cmd.String("tag")}
	if cmd.IsSet("package") {
		f.Packages = []models.PackageRef{packageRef(cmd.String("package"))}
	}

	cfg, baseDir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.NewService(cfg, baseDir, cliLogger(cmd))
	if err != nil {
		return err
	}
	res, err := svc.List(ctx, f)
	if err != nil {
		return err
	}
	if err := report.Records(os.Stdout, res.Records, format, opts); err != nil {
		return err
	}
	// The listing stays usable; problems are only announced on stderr.
	if len(res.Diagnostics) > 0 {
		fmt.Fprint(os.Stderr, "Problems found: ")
		if err := report.Summary(os.Stderr, res.Diagnostics, report.Options{}); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Run `adrkb diagnose` for details.")
	}
	return nil
}
