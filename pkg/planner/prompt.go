package planner

import (
	"fmt"
	"strings"

	"github.com/vantage-ai/vantage/pkg/contextbuilder"
)

const systemPreamble = `You are the planning component of a conversational data-analysis assistant.
Given the user's message and the available context, respond with a JSON object:

{"actions": [{"kind": "...", "target_ref": "...", "intent": "...", "payload": {...}}]}

Action kinds:
- create_widget: build a new chart or table from the data source
- modify_widget: change an existing widget (requires target_ref with its id)
- answer_question: answer from context or data without producing a widget
- clarify_question: ask the user a clarifying question when the request is ambiguous
- design_dashboard: arrange existing widgets into a dashboard layout

Rules:
- Respond with only the JSON object, no prose.
- Greetings and small talk get a single answer_question action.
- modify_widget must name an existing widget in target_ref.
- design_dashboard belongs after the actions that create its widgets.`

// buildSystemPrompt renders the planning instructions plus whatever context
// sections are populated. Missing sections are simply omitted.
func buildSystemPrompt(ec *contextbuilder.ExecutionContext) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if ec == nil {
		return b.String()
	}

	if len(ec.Schemas) > 0 {
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
	}

	if len(ec.HistoryWidgets) > 0 {
		b.WriteString("\nExisting widgets:\n")
		for _, w := range ec.HistoryWidgets {
			fmt.Fprintf(&b, "- %s: %s\n", w.ID, w.Title)
		}
	}

	if len(ec.Memories) > 0 {
		b.WriteString("\nRemembered analyses:\n")
		for _, m := range ec.Memories {
			fmt.Fprintf(&b, "- %s: %s\n", m.Topic, m.Model)
		}
	}

	return b.String()
}

// buildUserPrompt renders the user's message with recent conversation and
// the selected widget, when present.
func buildUserPrompt(req Request) string {
	var b strings.Builder

	if ec := req.Context; ec != nil {
		if len(ec.History) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, m := range ec.History {
				fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
			}
			b.WriteString("\n")
		}
		if ec.SelectedWidget != nil {
			fmt.Fprintf(&b, "The user has widget %s (%s) selected.\n\n",
				ec.SelectedWidget.ID, ec.SelectedWidget.Title)
		}
	}

	b.WriteString("User message: ")
	b.WriteString(req.Prompt)
	return b.String()
}
