// Package planner turns a user prompt plus execution context into a
// validated action plan. The planner model proposes actions as JSON; the
// planner validates the output against a schema and gives the model one
// corrective attempt before giving up.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/contextbuilder"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
)

// planSchema constrains the model's raw plan output before it becomes a
// plan.Plan. Kind values mirror plan.ActionKind.
const planSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["actions"],
	"properties": {
		"actions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["kind", "intent"],
				"properties": {
					"kind": {
						"type": "string",
						"enum": ["create_widget", "modify_widget", "answer_question", "clarify_question", "design_dashboard"]
					},
					"target_ref": {"type": "string"},
					"intent": {"type": "string", "minLength": 1},
					"payload": {"type": "object"}
				}
			}
		}
	}
}`

// rawPlan is the JSON shape the planner model produces
type rawPlan struct {
	Actions []rawAction `json:"actions"`
}

type rawAction struct {
	Kind      string                 `json:"kind"`
	TargetRef string                 `json:"target_ref,omitempty"`
	Intent    string                 `json:"intent"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Planner produces plans from prompts
type Planner struct {
	gateway agent.Gateway
	retry   *retry.Policy
	schema  *gojsonschema.Schema
	logger  zerolog.Logger
}

// Config configures a Planner
type Config struct {
	Gateway agent.Gateway
	Retry   *retry.Policy
	Logger  zerolog.Logger
}

// New creates a planner. The plan schema is compiled once here.
func New(cfg Config) (*Planner, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("planner requires a gateway")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile plan schema: %w", err)
	}
	pol := cfg.Retry
	if pol == nil {
		pol = retry.Default(cfg.Logger)
	}
	return &Planner{
		gateway: cfg.Gateway,
		retry:   pol,
		schema:  schema,
		logger:  cfg.Logger.With().Str("component", "planner").Logger(),
	}, nil
}

// Request is one planning request
type Request struct {
	Prompt  string
	Context *contextbuilder.ExecutionContext
}

// CreatePlan asks the planner model for a plan, validates it, and returns
// the normalized result. Invalid model output gets exactly one corrective
// attempt with the validation errors appended to the prompt; a second
// invalid response becomes a plan.PlanningError.
func (p *Planner) CreatePlan(ctx context.Context, req Request) (*plan.Plan, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &plan.PlanningError{Reason: "empty prompt"}
	}

	system := buildSystemPrompt(req.Context)
	prompt := buildUserPrompt(req)

	actions, verr := p.planOnce(ctx, system, prompt)
	if verr != nil {
		var pe *plan.PlanningError
		if !errors.As(verr, &pe) {
			return nil, verr
		}
		p.logger.Warn().Str("reason", pe.Reason).Msg("Plan output invalid, retrying with corrections")

		corrective := prompt + "\n\nYour previous response was invalid:\n" + pe.Reason +
			"\nRespond again with only the corrected JSON plan."
		actions, verr = p.planOnce(ctx, system, corrective)
		if verr != nil {
			return nil, verr
		}
	}

	pl := &plan.Plan{
		ID:        uuid.New().String(),
		Actions:   actions,
		CreatedAt: time.Now(),
	}
	if err := plan.Validate(pl); err != nil {
		return nil, &plan.PlanningError{Reason: "plan failed validation", Err: err}
	}
	pl.Actions = plan.Normalize(pl.Actions)

	p.logger.Info().
		Str("plan_id", pl.ID).
		Int("actions", len(pl.Actions)).
		Msg("Plan created")

	return pl, nil
}

// planOnce makes one gateway call and validates the response. Transport
// failures come back as-is; malformed output comes back as PlanningError
// so the caller can decide on a corrective attempt.
func (p *Planner) planOnce(ctx context.Context, system, prompt string) ([]plan.ActionSpec, error) {
	var resp *agent.Response
	attempts, err := p.retry.Do(ctx, func(ctx context.Context) error {
		var ierr error
		resp, ierr = p.gateway.Invoke(ctx, agent.Request{
			Kind:   agent.KindPlanner,
			System: system,
			Prompt: prompt,
		})
		return ierr
	})
	if err != nil {
		return nil, fmt.Errorf("planner model unavailable after %d attempts: %w", attempts, err)
	}

	raw := agent.ExtractJSON(resp.Text)
	if raw == "" {
		return nil, &plan.PlanningError{Reason: "response contained no JSON object"}
	}

	result, err := p.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &plan.PlanningError{Reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if !result.Valid() {
		var issues []string
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return nil, &plan.PlanningError{Reason: strings.Join(issues, "; ")}
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return nil, &plan.PlanningError{Reason: fmt.Sprintf("failed to decode plan: %v", err)}
	}

	actions := make([]plan.ActionSpec, 0, len(rp.Actions))
	for _, a := range rp.Actions {
		actions = append(actions, plan.ActionSpec{
			Kind:      plan.ActionKind(a.Kind),
			TargetRef: a.TargetRef,
			Intent:    a.Intent,
			Payload:   a.Payload,
		})
	}
	return actions, nil
}

