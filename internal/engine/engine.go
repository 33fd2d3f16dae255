package engine

import (
	"context"
	"fmt"

	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/martinsuchenak/deskd/internal/registry"
)

// Planner computes a plan from a fresh snapshot
type Planner func(snap *model.Snapshot) (*model.MutationPlan, error)

// Engine applies plans against the registry's gateway. Every run holds the
// registry queue from the first refresh to the last, so no other refresh or
// apply interleaves with it.
type Engine struct {
	registry *registry.Registry
}

// New creates an engine over a registry
func New(reg *registry.Registry) *Engine {
	return &Engine{registry: reg}
}

// Apply reconciles the live devices with a profile. Plan errors are
// returned before any OS call. Mutation failures are reported in the
// result, not as an error.
func (e *Engine) Apply(ctx context.Context, profile *model.Profile) (*model.ApplyResult, error) {
	result, err := e.Run(ctx, "apply:"+profile.Name, func(snap *model.Snapshot) (*model.MutationPlan, error) {
		return BuildPlan(profile, snap)
	})
	if result != nil {
		log.Info("Profile applied", "profile", profile.Name, "applied", len(result.Applied),
			"skipped", len(result.Skipped), "remaining", len(result.Remaining), "complete", result.Complete())
	}
	return result, err
}

// Preview returns the plan Apply would execute against the current devices
func (e *Engine) Preview(ctx context.Context, profile *model.Profile) (*model.MutationPlan, error) {
	snap, err := e.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return BuildPlan(profile, snap)
}

// Run refreshes, plans, executes the mutations, applies selection overlay
// changes and refreshes again, all on the registry queue. The result
// carries the snapshot taken after execution.
func (e *Engine) Run(ctx context.Context, name string, planner Planner) (*model.ApplyResult, error) {
	var result *model.ApplyResult

	err := e.registry.Serialize(ctx, name, func(ctx context.Context) error {
		snap, err := e.registry.RefreshLocked(ctx)
		if err != nil {
			return err
		}

		plan, err := planner(snap)
		if err != nil {
			return err
		}

		result = Execute(ctx, e.registry.Gateway(), plan)
		e.applySelection(plan, result)

		after, err := e.registry.RefreshLocked(ctx)
		if err != nil {
			return fmt.Errorf("refreshing after %s: %w", name, err)
		}
		result.Snapshot = after
		return nil
	})

	return result, err
}

func (e *Engine) applySelection(plan *model.MutationPlan, result *model.ApplyResult) {
	for _, change := range plan.Selection {
		selected := change.Selected
		if _, err := e.registry.SetOverlay(change.Identity, model.OverlayPatch{Selected: &selected}); err != nil {
			log.Warn("Selection update skipped", "device", change.Label, "error", err)
			result.Skipped = append(result.Skipped, model.Skip{
				Identity: change.Identity,
				Label:    change.Label,
				Reason:   model.SkipDeviceUnavailable,
				Detail:   err.Error(),
			})
			continue
		}
		result.Selection = append(result.Selection, change)
	}
}
