package engine

import (
	"context"
	"fmt"

	"github.com/martinsuchenak/deskd/internal/gateway"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
)

// Execute runs the plan's mutations in order and stops at the first
// failure. Applied mutations are not rolled back; the result says exactly
// which ones reached the OS.
func Execute(ctx context.Context, gw gateway.Gateway, plan *model.MutationPlan) *model.ApplyResult {
	result := &model.ApplyResult{
		Profile:   plan.Profile,
		Applied:   make([]model.Mutation, 0, len(plan.Mutations)),
		Remaining: []model.Mutation{},
		Skipped:   append([]model.Skip{}, plan.Skipped...),
		Selection: []model.SelectionChange{},
	}

	for i, m := range plan.Mutations {
		if err := executeOne(ctx, gw, m); err != nil {
			log.Warn("Mutation failed", "mutation", m.Kind, "device", m.Label, "error", err)
			result.Failed = &model.Failure{Mutation: m, Cause: err.Error(), Err: err}
			result.Remaining = append(result.Remaining, plan.Mutations[i+1:]...)
			break
		}
		log.Debug("Mutation applied", "mutation", m.Kind, "device", m.Label)
		result.Applied = append(result.Applied, m)
	}

	return result
}

func executeOne(ctx context.Context, gw gateway.Gateway, m model.Mutation) error {
	switch m.Kind {
	case model.MutationEnableMonitor:
		return gw.SetMonitorEnabled(ctx, m.OSHandle, true)
	case model.MutationDisableMonitor:
		return gw.SetMonitorEnabled(ctx, m.OSHandle, false)
	case model.MutationSetPrimary:
		return gw.SetMonitorPrimary(ctx, m.OSHandle)
	case model.MutationSetDefaultOutput:
		return gw.SetDefaultOutputDevice(ctx, m.OSHandle)
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}
