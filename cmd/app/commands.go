package main

import (
	"github.com/urfave/cli/v3"
)

// getCommands returns the server-facing commands followed by the offline maintenance commands.
func getCommands(version string) []*cli.Command {
	return append(getSystemCommands(version), getMaintenanceCommands()...)
}
