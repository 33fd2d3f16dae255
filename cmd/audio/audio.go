package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "audio",
		Usage:       "Audio device commands",
		Description: "List audio endpoints and change the default output",
		Flags:       client.Flags(),
		Commands: []*cli.Command{
			ListCommand(),
			RefreshCommand(),
			DefaultCommand(),
			IgnoreCommand(),
			UnignoreCommand(),
			NicknameCommand(),
			SelectCommand(),
			DeselectCommand(),
		},
	}
}

func audioPath(id string) string {
	return "/api/audio/" + client.PathEscape(id)
}

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List audio devices",
		Description: "List audio endpoints, ignored ones last",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var part model.AudioPartition
			if err := client.FromCommand(cmd).Get(ctx, "/api/audio", &part); err != nil {
				return err
			}
			printPartition(part)
			return nil
		},
	}
}

func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:        "refresh",
		Usage:       "Re-enumerate audio devices",
		Description: "Ask the server to re-enumerate audio endpoints and list them",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var part model.AudioPartition
			if err := client.FromCommand(cmd).Post(ctx, "/api/audio/refresh", nil, &part); err != nil {
				return err
			}
			printPartition(part)
			return nil
		},
	}
}

func DefaultCommand() *cli.Command {
	return &cli.Command{
		Name:        "default",
		Usage:       "Set the default output device",
		Description: "Make an active, non-ignored output the default playback device",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var res model.ApplyResult
			if err := client.FromCommand(cmd).Post(ctx, audioPath(cmd.GetStringArg("id"))+"/default", nil, &res); err != nil {
				return err
			}
			client.PrintResult(os.Stdout, &res)
			return nil
		},
	}
}

func IgnoreCommand() *cli.Command {
	return overlayCommand("ignore", "Ignore an audio device", "POST", "/ignore", nil)
}

func UnignoreCommand() *cli.Command {
	return overlayCommand("unignore", "Stop ignoring an audio device", "DELETE", "/ignore", nil)
}

func SelectCommand() *cli.Command {
	return overlayCommand("select", "Mark an audio device as selected", "PUT", "/selected", map[string]bool{"selected": true})
}

func DeselectCommand() *cli.Command {
	return overlayCommand("deselect", "Clear the selected mark of an audio device", "PUT", "/selected", map[string]bool{"selected": false})
}

func overlayCommand(name, usage, method, suffix string, body any) *cli.Command {
	return &cli.Command{
		Name:        name,
		Usage:       usage,
		Description: usage + " by identity",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var part model.AudioPartition
			if err := client.FromCommand(cmd).Do(ctx, method, audioPath(cmd.GetStringArg("id"))+suffix, body, &part); err != nil {
				return err
			}
			printPartition(part)
			return nil
		},
	}
}

func NicknameCommand() *cli.Command {
	return &cli.Command{
		Name:        "nickname",
		Usage:       "Set an audio device nickname",
		Description: "Set or clear (empty value) the nickname of an audio endpoint",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
			&cli.StringArg{Name: "nickname"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{"nickname": cmd.GetStringArg("nickname")}
			var part model.AudioPartition
			if err := client.FromCommand(cmd).Put(ctx, audioPath(cmd.GetStringArg("id"))+"/nickname", body, &part); err != nil {
				return err
			}
			printPartition(part)
			return nil
		},
	}
}

func printPartition(part model.AudioPartition) {
	if len(part.Filtered) == 0 && len(part.Ignored) == 0 {
		fmt.Println("No audio devices found")
		return
	}
	for _, a := range part.Filtered {
		printDevice(a)
	}
	if len(part.Ignored) > 0 {
		fmt.Println("Ignored:")
		for _, a := range part.Ignored {
			printDevice(a)
		}
	}
}

func printDevice(a model.AudioDeviceState) {
	marks := ""
	if a.IsDefault {
		marks += " default"
	}
	if a.Selected {
		marks += " selected"
	}
	fmt.Printf("%s\t%s\t%s\t%s%s\n", a.Identity, a.Label(), a.Type, a.State, marks)
}
