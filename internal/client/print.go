package client

import (
	"fmt"
	"io"

	"github.com/martinsuchenak/deskd/internal/model"
)

// PrintPlan writes the planned mutations, skips and selection changes
func PrintPlan(w io.Writer, plan *model.MutationPlan) {
	if plan.IsEmpty() {
		fmt.Fprintf(w, "Profile %s already matches the current devices\n", plan.Profile)
	} else {
		fmt.Fprintf(w, "Plan for %s:\n", plan.Profile)
		for i, m := range plan.Mutations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, m)
		}
		for _, s := range plan.Selection {
			fmt.Fprintf(w, "  - selected=%t %s\n", s.Selected, s.Label)
		}
	}
	printSkips(w, plan.Skipped)
}

// PrintResult writes what an apply changed and where it stopped
func PrintResult(w io.Writer, res *model.ApplyResult) {
	for _, m := range res.Applied {
		fmt.Fprintf(w, "applied  %s\n", m)
	}
	if res.Failed != nil {
		fmt.Fprintf(w, "FAILED   %s: %s\n", res.Failed.Mutation, res.Failed.Cause)
	}
	for _, m := range res.Remaining {
		fmt.Fprintf(w, "pending  %s\n", m)
	}
	printSkips(w, res.Skipped)

	switch {
	case res.Complete() && len(res.Applied) == 0:
		fmt.Fprintln(w, "Nothing to change")
	case res.Complete():
		fmt.Fprintf(w, "%d change(s) applied\n", len(res.Applied))
	default:
		fmt.Fprintf(w, "%d change(s) applied, %d not attempted\n", len(res.Applied), len(res.Remaining))
	}
}

func printSkips(w io.Writer, skips []model.Skip) {
	for _, s := range skips {
		fmt.Fprintf(w, "skipped  %s (%s): %s\n", s.Label, s.Reason, s.Detail)
	}
}
