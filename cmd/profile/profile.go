package profile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/martinsuchenak/deskd/internal/client"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/paularlott/cli"
	"golang.org/x/term"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "profile",
		Usage:       "Profile commands",
		Description: "Save, inspect and apply device profiles",
		Flags:       client.Flags(),
		Commands: []*cli.Command{
			ListCommand(),
			GetCommand(),
			SaveCommand(),
			ApplyCommand(),
			PlanCommand(),
			DeleteCommand(),
		},
	}
}

func profilePath(name string) string {
	return "/api/profiles/" + client.PathEscape(name)
}

// confirm asks a yes/no question when stdin is a terminal. Piped input is
// treated as consent so scripts keep working.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	return readConfirmation(os.Stdin, os.Stdout, prompt)
}

func readConfirmation(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func printProfiles(profiles []model.Profile) {
	if len(profiles) == 0 {
		fmt.Println("No profiles found")
		return
	}
	for _, p := range profiles {
		fmt.Printf("%s\t%d monitor(s)\t%s\n", p.Name, len(p.Monitors), p.UpdatedAt.Format(time.RFC3339))
	}
}

func printProfile(p *model.Profile) {
	fmt.Printf("Name:     %s\n", p.Name)
	fmt.Printf("Schema:   v%d\n", p.SchemaVersion)
	fmt.Printf("Created:  %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", p.UpdatedAt.Format(time.RFC3339))
	fmt.Println("Monitors:")
	for _, m := range p.Monitors {
		state := "disabled"
		if m.IsEnabled {
			state = "enabled"
		}
		if m.IsPrimary {
			state += ", primary"
		}
		fmt.Printf("  - %s (%s) %s\n", m.DisplayName, m.Identity, state)
	}
	if p.Audio.DefaultOutputDeviceID != "" {
		fmt.Printf("Default output: %s\n", p.Audio.DefaultOutputDeviceID)
	}
	if len(p.Audio.Selected) > 0 {
		fmt.Println("Selected audio:")
		for _, id := range p.Audio.Selected {
			fmt.Printf("  - %s\n", id)
		}
	}
}
