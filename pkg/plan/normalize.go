package plan

import "fmt"

// Validate checks structural soundness of a plan: every action kind must be
// known, and modify_widget actions must carry a target reference.
func Validate(p *Plan) error {
	if p == nil || len(p.Actions) == 0 {
		return fmt.Errorf("plan has no actions")
	}
	for i, a := range p.Actions {
		if !a.Kind.Valid() {
			return fmt.Errorf("action %d: unknown kind %q", i, a.Kind)
		}
		if a.Kind == KindModifyWidget && a.TargetRef == "" {
			return fmt.Errorf("action %d: modify_widget requires a target_ref", i)
		}
	}
	return nil
}

// Normalize reorders actions so that design_dashboard actions come after
// every widget-producing action. The planner is responsible for emitting a
// correct order; this pass makes the engine robust against a plan where a
// dashboard would lay out widgets that do not exist yet.
func Normalize(actions []ActionSpec) []ActionSpec {
	lastWidget := -1
	for i, a := range actions {
		if a.Kind.ProducesWidget() {
			lastWidget = i
		}
	}
	if lastWidget < 0 {
		return actions
	}

	out := make([]ActionSpec, 0, len(actions))
	var dashboards []ActionSpec
	for i, a := range actions {
		if a.Kind == KindDesignDashboard && i < lastWidget {
			dashboards = append(dashboards, a)
			continue
		}
		out = append(out, a)
	}
	return append(out, dashboards...)
}
