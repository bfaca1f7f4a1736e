package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/covert/cmd/app/commands"
	"github.com/allisson/covert/internal/app"
	"github.com/allisson/covert/internal/config"
)

func daysFlags(usage string) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     "days",
			Aliases:  []string{"d"},
			Required: true,
			Usage:    usage,
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Value:   false,
			Usage:   "Show how many records would be deleted without deleting",
		},
		formatFlag(),
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getMaintenanceCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "clean-audit-logs",
			Usage: "Delete audit logs older than specified days",
			Flags: daysFlags("Delete audit logs older than this many days"),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				auditLogUseCase, err := container.AuditLogUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanAuditLogs(
					ctx,
					auditLogUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-expired-tokens",
			Usage: "Revoke the leases of tokens that expired more than specified days ago and delete them",
			Flags: daysFlags("Delete tokens that expired more than this many days ago"),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				tokenUseCase, err := container.TokenUseCase()
				if err != nil {
					return err
				}
				leaseUseCase, err := container.LeaseUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanExpiredTokens(
					ctx,
					tokenUseCase,
					leaseUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "tidy-leases",
			Usage: "Revoke every lease past its expiry",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   100,
					Usage:   "Number of leases revoked per batch",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				leaseUseCase, err := container.LeaseUseCase()
				if err != nil {
					return err
				}

				return commands.RunTidyLeases(
					ctx,
					leaseUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("batch-size")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "verify-audit-logs",
			Usage: "Verify cryptographic integrity of audit logs. Reads unseal key shares from stdin, one per line",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "start-date",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Start date in YYYY-MM-DD or YYYY-MM-DD HH:MM:SS format",
				},
				&cli.StringFlag{
					Name:    "end-date",
					Aliases: []string{"e"},
					Usage:   "End date in YYYY-MM-DD or YYYY-MM-DD HH:MM:SS format (default: now)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer func() { _ = container.Shutdown(ctx) }()

				lifecycle, err := container.LifecycleUseCase()
				if err != nil {
					return err
				}

				auditLogUseCase, err := container.AuditLogUseCase()
				if err != nil {
					return err
				}

				io := commands.DefaultIO()
				if err := commands.UnsealFromReader(ctx, lifecycle, io.Reader); err != nil {
					return err
				}

				return commands.RunVerifyAuditLogs(
					ctx,
					auditLogUseCase,
					container.Logger(),
					io.Writer,
					cmd.String("start-date"),
					cmd.String("end-date"),
					cmd.String("format"),
				)
			},
		},
	}
}
