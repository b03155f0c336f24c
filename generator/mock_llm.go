package generator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"project_plan_chat/plan"
	"project_plan_chat/stream"
)

// MockLLM answers locally without calling a model. It follows the prompt
// contract closely enough to drive the whole pipeline: plan prompts get a
// fenced plan, the strict JSON prompt gets bare JSON, anything else gets a
// short reply that offers a plan.
type MockLLM struct {
	models []string
}

func NewMockLLM(cfg LLMSettings) *MockLLM {
	return &MockLLM{models: modelCatalogue(cfg)}
}

var quotedGoal = regexp.MustCompile(`(?i)create a project plan for:\s*"([^"]*)"`)

func (m *MockLLM) ListModels() []string { return m.models }

func (m *MockLLM) SendMessage(ctx context.Context, msgs []Message, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return mockReply(msgs), nil
}

func (m *MockLLM) StreamMessage(ctx context.Context, msgs []Message, _ string, onToken func(string)) (string, error) {
	var acc stream.AppendState
	for _, word := range strings.SplitAfter(mockReply(msgs), " ") {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if delta := acc.Feed(word); delta != "" && onToken != nil {
			onToken(delta)
		}
	}
	return acc.Finish()
}

func mockReply(msgs []Message) string {
	system := strings.Join(systemText(msgs), "\n")
	user := strings.TrimSpace(lastUser(msgs))
	goal := user
	if m := quotedGoal.FindStringSubmatch(user); m != nil {
		goal = m[1]
	}
	if first, _, ok := strings.Cut(goal, "\n"); ok {
		goal = first
	}

	switch {
	case strings.Contains(system, strictJSONMarker):
		body := plan.Fenced(mockPlan(goal))
		body = strings.TrimPrefix(body, "```json\n")
		return strings.TrimSuffix(body, "\n```")
	case strings.Contains(system, "```json"):
		return fmt.Sprintf("Here is a project plan for %s.\n\n%s\n\nLet me know if you would like to adjust anything.",
			goal, plan.Fenced(mockPlan(goal)))
	default:
		return fmt.Sprintf("Thanks, that gives me a good picture of %q. "+
			"If you'd like, I can turn this into a detailed project plan with workstreams and deliverables.", goal)
	}
}

func mockPlan(goal string) plan.ProjectPlan {
	return plan.ProjectPlan{Workstreams: []plan.Workstream{
		{
			Title:       "Discovery",
			Description: "Clarify scope and constraints for " + goal + ".",
			Deliverables: []plan.Deliverable{
				{Title: "Scope statement", Description: "A one-page summary of goals, constraints and success criteria."},
				{Title: "Stakeholder map", Description: "A list of people involved and what each needs."},
			},
		},
		{
			Title:       "Delivery",
			Description: "Carry out the work and track progress.",
			Deliverables: []plan.Deliverable{
				{Title: "Milestone schedule", Description: "A dated list of milestones with owners."},
				{Title: "Launch checklist", Description: "A verified list of launch-day tasks."},
			},
		},
	}}
}
