package generator

import (
	"encoding/json"
	"errors"
	"strings"

	"project_plan_chat/jsonscan"
	"project_plan_chat/plan"
	"project_plan_chat/stream"
)

var ErrInvalidJSON = errors.New("llm did not return valid JSON")

// PostProcess normalises a raw response. Responses that were asked for a plan,
// or that read like one anyway, go through plan.PostProcess; everything else
// is returned as is.
func PostProcess(raw string, d plan.Decision) (string, plan.Outcome, error) {
	if strings.TrimSpace(raw) == "" {
		return "", plan.OutcomeUnchanged, stream.ErrEmptyResponse
	}
	if !d.Requested && !plan.LooksLikePlan(raw) {
		return raw, plan.OutcomeUnchanged, nil
	}
	text, outcome := plan.PostProcess(raw)
	return text, outcome, nil
}

// extractJSON returns the first balanced object in raw that is valid JSON.
// Each { is tried as a start so stray quotes in prose do not matter.
func extractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}
	for i := strings.IndexByte(raw, '{'); i >= 0; {
		start, end, ok := jsonscan.FindObject(raw, i)
		if ok && start == i && json.Valid([]byte(raw[start:end])) {
			return json.RawMessage(raw[start:end]), nil
		}
		next := strings.IndexByte(raw[i+1:], '{')
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return nil, ErrInvalidJSON
}
