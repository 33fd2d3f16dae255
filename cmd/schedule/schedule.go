package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "schedule",
		Usage:       "Schedule commands",
		Description: "Apply profiles automatically on a cron schedule",
		Flags:       client.Flags(),
		Commands: []*cli.Command{
			ListCommand(),
			AddCommand(),
			DeleteCommand(),
		},
	}
}

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List schedules",
		Description: "List profile schedules and their last run",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var schedules []model.Schedule
			if err := client.FromCommand(cmd).Get(ctx, "/api/schedules", &schedules); err != nil {
				return err
			}
			if len(schedules) == 0 {
				fmt.Println("No schedules found")
				return nil
			}
			for _, s := range schedules {
				printSchedule(s)
			}
			return nil
		},
	}
}

func AddCommand() *cli.Command {
	return &cli.Command{
		Name:        "add",
		Usage:       "Add a schedule",
		Description: "Apply a profile on a cron spec, e.g. \"0 9 * * 1-5\" or \"@every 1h\"",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "profile", Required: true},
			&cli.StringArg{Name: "spec", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "disabled", Usage: "Store the schedule without activating it"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]any{
				"profile_name": cmd.GetStringArg("profile"),
				"spec":         cmd.GetStringArg("spec"),
				"enabled":      !cmd.GetBool("disabled"),
			}
			var s model.Schedule
			if err := client.FromCommand(cmd).Post(ctx, "/api/schedules", body, &s); err != nil {
				return err
			}
			printSchedule(s)
			return nil
		},
	}
}

func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a schedule",
		Description: "Delete a schedule by ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := client.FromCommand(cmd).Delete(ctx, "/api/schedules/"+client.PathEscape(cmd.GetStringArg("id")), nil); err != nil {
				return err
			}
			fmt.Println("Schedule deleted")
			return nil
		},
	}
}

func printSchedule(s model.Schedule) {
	state := "enabled"
	if !s.Enabled {
		state = "disabled"
	}
	last := "never"
	if s.LastRun != nil {
		last = s.LastRun.Format(time.RFC3339) + " " + s.LastStatus
	}
	fmt.Printf("%s\t%s\t%s\t%s\tlast run: %s\n", s.ID, s.ProfileName, s.Spec, state, last)
}
