package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

// layoutSchema constrains the designer's output
const layoutSchema = `{
	"type": "object",
	"required": ["title", "layout"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"layout": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["widget_id"],
				"properties": {
					"widget_id": {"type": "string"},
					"x": {"type": "integer"},
					"y": {"type": "integer"},
					"w": {"type": "integer"},
					"h": {"type": "integer"}
				}
			}
		}
	}
}`

type layoutSpec struct {
	Title  string       `json:"title"`
	Layout []layoutCell `json:"layout"`
}

type layoutCell struct {
	WidgetID string `json:"widget_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	W        int    `json:"w"`
	H        int    `json:"h"`
}

// DesignDashboard arranges the widgets produced earlier in the same run
// into a persisted dashboard. Only succeeded widgets are offered to the
// designer; failed actions simply do not appear.
type DesignDashboard struct {
	gateway agent.Gateway
	store   store.Store
	retry   *retry.Policy
	schema  *gojsonschema.Schema
	logger  zerolog.Logger
}

// DashboardConfig wires a DesignDashboard executor
type DashboardConfig struct {
	Gateway agent.Gateway
	Store   store.Store
	Retry   *retry.Policy
	Logger  zerolog.Logger
}

// NewDesignDashboard creates the executor
func NewDesignDashboard(cfg DashboardConfig) (*DesignDashboard, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(layoutSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile layout schema: %w", err)
	}
	return &DesignDashboard{
		gateway: cfg.Gateway,
		store:   cfg.Store,
		retry:   cfg.Retry,
		schema:  schema,
		logger:  cfg.Logger.With().Str("executor", "design_dashboard").Logger(),
	}, nil
}

var _ Executor = (*DesignDashboard)(nil)

// Execute asks the designer for a layout over this run's widgets and
// persists the dashboard. The dashboard id is the result reference.
func (e *DesignDashboard) Execute(ctx context.Context, inv *Invocation) (string, error) {
	refs := inv.WidgetRefs()
	if len(refs) == 0 {
		return "", retry.Permanent(fmt.Errorf("no widgets available to lay out"))
	}

	resp, err := invokeAgent(ctx, e.gateway, e.retry, agent.Request{
		Kind:   agent.KindDesigner,
		System: designerSystemPrompt(),
		Prompt: e.designerPrompt(ctx, inv, refs),
	})
	if err != nil {
		return "", err
	}

	raw := agent.ExtractJSON(resp.Text)
	if raw == "" {
		return "", plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("designer returned no JSON object")))
	}
	result, verr := e.schema.Validate(gojsonschema.NewStringLoader(raw))
	if verr != nil || !result.Valid() {
		return "", plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("designer output failed validation: %s", validationIssues(result, verr))))
	}

	var spec layoutSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return "", plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("failed to decode layout: %w", err)))
	}

	// The designer may only reference widgets from this run; anything else
	// is dropped from the layout.
	known := make(map[string]bool, len(refs))
	for _, r := range refs {
		known[r] = true
	}
	kept := spec.Layout[:0]
	for _, cell := range spec.Layout {
		if known[cell.WidgetID] {
			kept = append(kept, cell)
		} else {
			e.logger.Warn().Str("widget_id", cell.WidgetID).Msg("Dropping unknown widget from layout")
		}
	}
	spec.Layout = kept
	if len(spec.Layout) == 0 {
		return "", plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("layout referenced no widgets from this run")))
	}

	layoutJSON, err := json.Marshal(spec.Layout)
	if err != nil {
		return "", fmt.Errorf("failed to encode layout: %w", err)
	}

	dashID := store.NewID(store.PrefixDashboard)
	if err := e.store.CreateDashboard(ctx, store.Dashboard{
		ID:         dashID,
		Title:      spec.Title,
		LayoutJSON: string(layoutJSON),
		WidgetIDs:  refs,
		CreatedAt:  time.Now(),
	}); err != nil {
		return "", fmt.Errorf("failed to persist dashboard: %w", err)
	}

	e.logger.Info().
		Str("dashboard_id", dashID).
		Int("widgets", len(spec.Layout)).
		Msg("Dashboard created")

	return dashID, nil
}

func designerSystemPrompt() string {
	return "You arrange analytical widgets into a dashboard grid. Respond with a JSON object " +
		`{"title": "...", "layout": [{"widget_id": "...", "x": 0, "y": 0, "w": 6, "h": 4}]}. ` +
		"Use only the widget ids you are given."
}

func (e *DesignDashboard) designerPrompt(ctx context.Context, inv *Invocation, refs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n\nWidgets to arrange:\n", inv.Spec.Intent)
	for _, ref := range refs {
		if w, err := e.store.GetWidget(ctx, ref); err == nil {
			fmt.Fprintf(&b, "- %s: %s\n", w.ID, w.Title)
		} else {
			fmt.Fprintf(&b, "- %s\n", ref)
		}
	}
	return b.String()
}
