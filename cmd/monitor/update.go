package monitor

import (
	"context"
	"fmt"
	"os"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/paularlott/cli"
)

func EnableCommand() *cli.Command {
	return enabledCommand("enable", "Enable a monitor", true)
}

func DisableCommand() *cli.Command {
	return enabledCommand("disable", "Disable a monitor", false)
}

func enabledCommand(name, usage string, enabled bool) *cli.Command {
	return &cli.Command{
		Name:        name,
		Usage:       usage,
		Description: usage + " by identity",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]bool{"enabled": enabled}
			var res model.ApplyResult
			if err := client.FromCommand(cmd).Put(ctx, monitorPath(cmd.GetStringArg("id"))+"/enabled", body, &res); err != nil {
				return err
			}
			client.PrintResult(os.Stdout, &res)
			return nil
		},
	}
}

func PrimaryCommand() *cli.Command {
	return &cli.Command{
		Name:        "primary",
		Usage:       "Make a monitor primary",
		Description: "Move the primary display role to a monitor, enabling it first if needed",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var res model.ApplyResult
			if err := client.FromCommand(cmd).Post(ctx, monitorPath(cmd.GetStringArg("id"))+"/primary", nil, &res); err != nil {
				return err
			}
			client.PrintResult(os.Stdout, &res)
			return nil
		},
	}
}

func NicknameCommand() *cli.Command {
	return &cli.Command{
		Name:        "nickname",
		Usage:       "Set a monitor nickname",
		Description: "Set or clear (empty value) the nickname of a monitor",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
			&cli.StringArg{Name: "nickname"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{"nickname": cmd.GetStringArg("nickname")}
			var m model.MonitorState
			if err := client.FromCommand(cmd).Put(ctx, monitorPath(cmd.GetStringArg("id"))+"/nickname", body, &m); err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", m.Identity, m.Label())
			return nil
		},
	}
}
