package profile

import (
	"context"
	"fmt"
	"os"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
	profilestore "github.com/martinsuchenak/deskd/internal/profile"
	"github.com/paularlott/cli"
)

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List profiles",
		Description: "List saved profiles",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var profiles []model.Profile
			if err := client.FromCommand(cmd).Get(ctx, "/api/profiles", &profiles); err != nil {
				return err
			}
			printProfiles(profiles)
			return nil
		},
	}
}

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Usage:       "Show a profile",
		Description: "Show the monitors and audio settings stored in a profile",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var p model.Profile
			if err := client.FromCommand(cmd).Get(ctx, profilePath(cmd.GetStringArg("name")), &p); err != nil {
				return err
			}
			printProfile(&p)
			return nil
		},
	}
}

func SaveCommand() *cli.Command {
	return &cli.Command{
		Name:        "save",
		Usage:       "Save the current devices as a profile",
		Description: "Capture the current monitor and audio configuration under a name, replacing any profile of the same name",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{"name": cmd.GetStringArg("name")}
			var res profilestore.SaveResult
			if err := client.FromCommand(cmd).Post(ctx, "/api/profiles", body, &res); err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Printf("warning  %s (%s): %s\n", w.Label, w.Reason, w.Detail)
			}
			log.Info("Profile saved", "name", res.Profile.Name, "monitors", len(res.Profile.Monitors))
			fmt.Printf("Profile %s saved\n", res.Profile.Name)
			return nil
		},
	}
}

func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:        "plan",
		Usage:       "Preview a profile",
		Description: "Show the changes applying a profile would make, without making them",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var plan model.MutationPlan
			if err := client.FromCommand(cmd).Get(ctx, profilePath(cmd.GetStringArg("name"))+"/plan", &plan); err != nil {
				return err
			}
			client.PrintPlan(os.Stdout, &plan)
			return nil
		},
	}
}

func ApplyCommand() *cli.Command {
	return &cli.Command{
		Name:        "apply",
		Usage:       "Apply a profile",
		Description: "Reconcile the current devices with a profile",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Apply without showing the plan first"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			c := client.FromCommand(cmd)
			name := cmd.GetStringArg("name")

			if !cmd.GetBool("yes") {
				var plan model.MutationPlan
				if err := c.Get(ctx, profilePath(name)+"/plan", &plan); err != nil {
					return err
				}
				client.PrintPlan(os.Stdout, &plan)
				if plan.IsEmpty() {
					return nil
				}
				if !confirm("Apply these changes?") {
					fmt.Println("Cancelled")
					return nil
				}
			}

			var res model.ApplyResult
			if err := c.Post(ctx, profilePath(name)+"/apply", nil, &res); err != nil {
				return err
			}
			client.PrintResult(os.Stdout, &res)
			if !res.Complete() {
				return fmt.Errorf("profile %s only partially applied", name)
			}
			return nil
		},
	}
}

func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a profile",
		Description: "Delete a profile and any schedules that apply it",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Delete without asking"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.GetStringArg("name")
			if !cmd.GetBool("yes") && !confirm(fmt.Sprintf("Delete profile %s?", name)) {
				fmt.Println("Cancelled")
				return nil
			}

			if err := client.FromCommand(cmd).Delete(ctx, profilePath(name), nil); err != nil {
				return err
			}
			fmt.Println("Profile deleted")
			return nil
		},
	}
}
