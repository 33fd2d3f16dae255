package monitor

import (
	"fmt"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "monitor",
		Usage:       "Monitor commands",
		Description: "List and change the displays attached to this desktop",
		Flags:       client.Flags(),
		Commands: []*cli.Command{
			ListCommand(),
			RefreshCommand(),
			EnableCommand(),
			DisableCommand(),
			PrimaryCommand(),
			NicknameCommand(),
		},
	}
}

func monitorPath(id string) string {
	return "/api/monitors/" + client.PathEscape(id)
}

func printMonitors(monitors []model.MonitorState) {
	if len(monitors) == 0 {
		fmt.Println("No monitors found")
		return
	}
	for _, m := range monitors {
		flags := ""
		if m.IsPrimary {
			flags += " primary"
		}
		if !m.IsEnabled {
			flags += " disabled"
		}
		if !m.IsActive {
			flags += " disconnected"
		}
		fmt.Printf("%s\t%s\t%dx%d+%d+%d%s\n",
			m.Identity, m.Label(), m.Bounds.Width, m.Bounds.Height, m.Bounds.X, m.Bounds.Y, flags)
	}
}
