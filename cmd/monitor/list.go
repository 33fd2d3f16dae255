package monitor

import (
	"context"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/paularlott/cli"
)

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List monitors",
		Description: "List monitors from the last device snapshot",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var monitors []model.MonitorState
			if err := client.FromCommand(cmd).Get(ctx, "/api/monitors", &monitors); err != nil {
				return err
			}
			log.Debug("Listed monitors", "count", len(monitors))
			printMonitors(monitors)
			return nil
		},
	}
}

func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:        "refresh",
		Usage:       "Re-enumerate monitors",
		Description: "Ask the server to re-enumerate monitors and list them",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var monitors []model.MonitorState
			if err := client.FromCommand(cmd).Post(ctx, "/api/monitors/refresh", nil, &monitors); err != nil {
				return err
			}
			printMonitors(monitors)
			return nil
		},
	}
}
