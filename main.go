package main

import (
	"context"
	"os"

	"github.com/martinsuchenak/deskd/cmd/audio"
	"github.com/martinsuchenak/deskd/cmd/importcmd"
	"github.com/martinsuchenak/deskd/cmd/monitor"
	"github.com/martinsuchenak/deskd/cmd/profile"
	"github.com/martinsuchenak/deskd/cmd/schedule"
	"github.com/martinsuchenak/deskd/cmd/server"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	log.Configure("info", "console")

	rootCmd := &cli.Command{
		Name:        "deskd",
		Version:     version,
		Usage:       "Display and audio profile manager",
		Description: "Save monitor and audio device layouts as profiles and switch between them from the CLI, HTTP API or MCP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"DESKD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"DESKD_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			log.Debug("Starting deskd", "version", version, "commit", commit, "date", date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			monitor.Command(),
			audio.Command(),
			profile.Command(),
			schedule.Command(),
			importcmd.Command(),
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
