package generator

import (
	"fmt"
	"strings"

	"project_plan_chat/plan"
)

// Prompt is the message set sent to a provider for one turn.
type Prompt struct {
	System  string
	History []Message
	User    string
}

// Messages flattens the prompt into provider order.
func (p Prompt) Messages() []Message {
	msgs := make([]Message, 0, len(p.History)+2)
	if p.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: p.System})
	}
	msgs = append(msgs, p.History...)
	return append(msgs, Message{Role: RoleUser, Content: p.User})
}

const conversationSystemPrompt = `You are a professional project planning assistant. Help the user think in terms of structured, actionable plans.

- Ask at most one or two short clarifying questions, and only when the goal is unclear.
- Once you understand the goal, summarise it in a few sentences.
- Then explicitly OFFER: "If you'd like, I can turn this into a detailed project plan with workstreams and deliverables."
- Once you have offered a plan and the user agrees, stop asking questions and produce the plan.`

const planSystemPrompt = `You are a professional project planning assistant. Create structured, actionable project plans quickly and directly.

FORMAT REQUIREMENT:
- Start with a brief intro of one or two sentences.
- Then provide the plan as a single JSON code block that starts with ` + "```json" + ` and ends with ` + "```" + `.
- The JSON block is mandatory. Never present the plan as text lists, bullet points or numbered lists.
- End with a brief outro inviting the user to review the plan and give feedback.

Infer missing details from context and make reasonable assumptions instead of asking for more information.
Break the work into 3 to 8 workstreams with 2 to 5 deliverables each.`

const planFormatInstructions = `Provide the plan as a JSON code block in exactly this shape:
` + "```json" + `
{
  "workstreams": [
    {
      "title": "Workstream name",
      "description": "One sentence describing this workstream.",
      "deliverables": [
        {
          "title": "Deliverable name",
          "description": "One sentence describing what will exist once it is delivered."
        }
      ]
    }
  ]
}
` + "```" + `
Only title and description are required. Deliverable descriptions describe the outcome, not the activity.`

// strictJSONMarker identifies the one-shot plan prompt, which must be
// answered with bare JSON.
const strictJSONMarker = "You MUST respond with ONLY valid JSON."

const projectPlanSystemPrompt = `You are an expert project planning engine.
` + strictJSONMarker + `
No markdown, no commentary, no backticks, no prose.

Follow exactly this schema:
{
  "workstreams": [
    {
      "title": "string",
      "description": "string",
      "deliverables": [
        {
          "title": "string",
          "description": "string",
          "outcome": "string",
          "timeline": "string",
          "dependencies": "string"
        }
      ]
    }
  ]
}

Rules:
- concise and tactical
- deliverables must be small and concrete
- timelines must be human readable and sequential`

// BuildChatPrompt assembles one chat turn. When d requests a plan the user
// message is rewritten around goal and the plan contract is added.
func BuildChatPrompt(history []Message, message string, d plan.Decision, goal string) Prompt {
	if !d.Requested {
		return Prompt{System: conversationSystemPrompt, History: history, User: message}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a project plan for: \"%s\"\n\n", strings.TrimSpace(goal))
	sb.WriteString(planFormatInstructions)
	return Prompt{System: planSystemPrompt, History: history, User: sb.String()}
}

// BuildProjectPlanPrompt is the one-shot prompt that asks for bare JSON.
func BuildProjectPlanPrompt(userPrompt string) Prompt {
	return Prompt{
		System: projectPlanSystemPrompt,
		User:   "Create a project plan for the following request:\n" + strings.TrimSpace(userPrompt),
	}
}
