package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/contextbuilder"
	"github.com/vantage-ai/vantage/pkg/datasource"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
)

// modelSchema constrains the modeler's output: a widget title plus the
// data-model spec the translator turns into SQL.
const modelSchema = `{
	"type": "object",
	"required": ["title", "model"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"model": {"type": "object"}
	}
}`

// dataModel is the validated modeler output
type dataModel struct {
	Title string                 `json:"title"`
	Model map[string]interface{} `json:"model"`
}

// queryPipeline is the shared model → SQL → rows pipeline behind the
// widget-producing executors.
type queryPipeline struct {
	gateway agent.Gateway
	source  datasource.DataSource
	retry   *retry.Policy
	schema  *gojsonschema.Schema
	logger  zerolog.Logger
}

func newQueryPipeline(gw agent.Gateway, src datasource.DataSource, pol *retry.Policy, logger zerolog.Logger) (*queryPipeline, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(modelSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile data-model schema: %w", err)
	}
	return &queryPipeline{
		gateway: gw,
		source:  src,
		retry:   pol,
		schema:  schema,
		logger:  logger,
	}, nil
}

// generateModel asks the modeler for a data model. seedModel, when present,
// is the current model of the widget being modified.
func (qp *queryPipeline) generateModel(ctx context.Context, inv *Invocation, seedModel string) (*dataModel, error) {
	resp, err := invokeAgent(ctx, qp.gateway, qp.retry, agent.Request{
		Kind:   agent.KindModeler,
		System: modelerSystemPrompt(inv.Context),
		Prompt: modelerUserPrompt(inv, seedModel),
	})
	if err != nil {
		return nil, err
	}

	raw := agent.ExtractJSON(resp.Text)
	if raw == "" {
		return nil, plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("modeler returned no JSON object")))
	}
	result, err := qp.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		return nil, plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("modeler output failed validation: %s", validationIssues(result, err))))
	}

	var dm dataModel
	if err := json.Unmarshal([]byte(raw), &dm); err != nil {
		return nil, plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("failed to decode data model: %w", err)))
	}
	return &dm, nil
}

// translateAndRun turns a data model into SQL and executes it. A permanent
// query failure earns exactly one corrective re-generation with the
// database error appended; transient failures are the retry policy's job.
func (qp *queryPipeline) translateAndRun(ctx context.Context, inv *Invocation, dm *dataModel) (string, *datasource.ResultSet, error) {
	query, err := qp.translate(ctx, inv, dm, "")
	if err != nil {
		return "", nil, err
	}

	rs, execErr := qp.execute(ctx, query)
	if execErr == nil {
		return query, rs, nil
	}
	if ctx.Err() != nil {
		return "", nil, execErr
	}
	if retry.IsRetryable(execErr) {
		// transient trouble already exhausted the retry policy
		return "", nil, plan.WithClass(plan.ClassDataSourceError, execErr)
	}

	qp.logger.Warn().Err(execErr).Str("query", query).Msg("Generated query rejected, regenerating")
	query, err = qp.translate(ctx, inv, dm, fmt.Sprintf("The previous query failed:\n%s\nError: %v\nProduce a corrected query.", query, execErr))
	if err != nil {
		return "", nil, err
	}
	rs, execErr = qp.execute(ctx, query)
	if execErr != nil {
		return "", nil, plan.WithClass(plan.ClassDataSourceError, execErr)
	}
	return query, rs, nil
}

// translate asks the translator for SQL implementing the data model
func (qp *queryPipeline) translate(ctx context.Context, inv *Invocation, dm *dataModel, correction string) (string, error) {
	modelJSON, _ := json.Marshal(dm.Model)

	prompt := fmt.Sprintf("Data model:\n%s\n\nIntent: %s", modelJSON, inv.Spec.Intent)
	if correction != "" {
		prompt += "\n\n" + correction
	}

	resp, err := invokeAgent(ctx, qp.gateway, qp.retry, agent.Request{
		Kind:   agent.KindTranslator,
		System: translatorSystemPrompt(inv.Context),
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}

	query := agent.StripFences(resp.Text)
	if query == "" {
		return "", plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("translator returned empty query")))
	}
	return query, nil
}

// execute runs one query through the retry policy
func (qp *queryPipeline) execute(ctx context.Context, query string) (*datasource.ResultSet, error) {
	var rs *datasource.ResultSet
	_, err := qp.retry.Do(ctx, func(ctx context.Context) error {
		var ierr error
		rs, ierr = qp.source.Execute(ctx, query)
		return ierr
	})
	return rs, err
}

func modelerSystemPrompt(ec *contextbuilder.ExecutionContext) string {
	return "You design data models for analytical widgets. Respond with a JSON object " +
		`{"title": "...", "model": {...}} describing the widget and the aggregation it needs.` +
		schemaText(ec)
}

func translatorSystemPrompt(ec *contextbuilder.ExecutionContext) string {
	return "You translate data models into a single read-only SQL query (SELECT or WITH). " +
		"Respond with only the SQL, no prose." + schemaText(ec)
}

// schemaText renders the catalog section shared by the modeler and
// translator system prompts.
func schemaText(ec *contextbuilder.ExecutionContext) string {
	if ec == nil || len(ec.Schemas) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nAvailable tables:\n")
	for _, ts := range ec.Schemas {
		cols := make([]string, 0, len(ts.Columns))
		for _, c := range ts.Columns {
			cols = append(cols, c.Name+" "+c.Type)
		}
		fmt.Fprintf(&b, "- %s (%s)\n", ts.Table, strings.Join(cols, ", "))
		for _, rule := range ts.BusinessRules {
			fmt.Fprintf(&b, "  rule: %s\n", rule)
		}
	}
	return b.String()
}

func modelerUserPrompt(inv *Invocation, seedModel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n", inv.Spec.Intent)
	if len(inv.Spec.Payload) > 0 {
		payload, _ := json.Marshal(inv.Spec.Payload)
		fmt.Fprintf(&b, "Parameters: %s\n", payload)
	}
	if seedModel != "" {
		fmt.Fprintf(&b, "Current data model to adjust:\n%s\n", seedModel)
	}
	if inv.Context != nil {
		for _, m := range inv.Context.Memories {
			fmt.Fprintf(&b, "Previously successful model for %q:\n%s\n", m.Topic, m.Model)
		}
	}
	return b.String()
}

// validationIssues flattens a gojsonschema result into one line
func validationIssues(result *gojsonschema.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	var issues []string
	for _, e := range result.Errors() {
		issues = append(issues, e.String())
	}
	return strings.Join(issues, "; ")
}
