package importcmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/storage"
	"github.com/paularlott/cli"
)

func Command() *cli.Command {
	flags := append(client.Flags(), &cli.StringFlag{
		Name:     "from",
		Usage:    "Directory holding nicknames.json, ignore_list.json and profiles.json",
		Required: true,
	})

	return &cli.Command{
		Name:        "import",
		Usage:       "Import legacy settings",
		Description: "Import nicknames and ignored audio devices saved by the previous desktop app",
		Flags:       flags,
		Run: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := filepath.Abs(cmd.GetString("from"))
			if err != nil {
				return err
			}

			var report storage.ImportReport
			if err := client.FromCommand(cmd).Post(ctx, "/api/import", map[string]string{"dir": dir}, &report); err != nil {
				return err
			}

			fmt.Printf("Imported %d nickname(s) and %d ignored device(s)\n", report.Nicknames, report.Ignored)
			for _, s := range report.Skipped {
				fmt.Printf("skipped  %s %s: %s\n", s.Kind, s.Key, s.Reason)
			}
			for _, name := range report.Profiles {
				fmt.Printf("skipped  profile %s: save it again with 'deskd profile save'\n", name)
			}
			return nil
		},
	}
}
