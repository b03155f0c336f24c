package plan

import (
	"regexp"
	"strings"
)

// Decision is the result of ClassifyPlanRequest.
type Decision struct {
	Requested bool
	Reason    string
}

// intentRule inspects the current user message and the previous assistant
// message. decided=false passes to the next rule.
type intentRule struct {
	reason string
	match  func(message, lastAssistant string) (requested, decided bool)
}

var (
	explicitPlanKeyword = regexp.MustCompile(`(?i)project\s+plan|create\s+(?:a\s+)?plan|plan\s+for|write\s+(?:me\s+)?a\s+plan|roadmap|implementation\s+plan|transition.*business|business.*plan|show.*plan|present.*plan|need\s+a\s+plan(?:\s+(?:for|to))?|want\s+a\s+plan(?:\s+(?:for|to))?`)
	planOffer           = regexp.MustCompile(`(?i)turn this into a detailed project plan|generate a project plan|create a detailed project plan|turn this into a project plan`)
	affirmative         = regexp.MustCompile(`(?i)\b(?:yes|yeah|yep|sure|sounds good|do it|go ahead|let'?s do it|okay|ok\b|alright|please|that would be great|absolutely|go for it|create it|make it|generate it)\b`)
	negative            = regexp.MustCompile(`(?i)\b(?:no|nope|nah|not now|maybe later|don'?t|do not|no thanks|no thank you)\b`)

	planAnnouncement = regexp.MustCompile(`(?i)here is a project plan|here's a project plan|structured project plan|project workstreams`)
	objectiveLine    = regexp.MustCompile(`(?i)(?:^|\n)\s*(?:objective|goal):`)
	phaseLine        = regexp.MustCompile(`(?i)(?:^|\n)\s*phase\s*\d+[:\-\s]`)
	planGoalPrefix   = regexp.MustCompile(`(?i)create a project plan for:\s*(.+)`)
)

var intentRules = []intentRule{
	{reason: "explicit_request", match: func(message, _ string) (bool, bool) {
		return true, explicitPlanKeyword.MatchString(message)
	}},
	{reason: "declined_offer", match: func(message, lastAssistant string) (bool, bool) {
		return false, planOffer.MatchString(lastAssistant) && negative.MatchString(strings.TrimSpace(message))
	}},
	{reason: "accepted_offer", match: func(message, lastAssistant string) (bool, bool) {
		return true, planOffer.MatchString(lastAssistant) && affirmative.MatchString(strings.TrimSpace(message))
	}},
}

// ClassifyPlanRequest decides whether the reply to message should be asked
// for a structured plan. lastAssistant is the most recent assistant message,
// or "" when there is none.
func ClassifyPlanRequest(message, lastAssistant string) Decision {
	for _, r := range intentRules {
		if requested, decided := r.match(message, lastAssistant); decided {
			return Decision{Requested: requested, Reason: r.reason}
		}
	}
	return Decision{Reason: "conversational"}
}

// LooksLikePlan reports whether a response that was not asked for a plan
// still reads like one and should go through recovery.
func LooksLikePlan(response string) bool {
	lower := strings.ToLower(response)
	if planAnnouncement.MatchString(response) ||
		(strings.Contains(lower, "project plan") && strings.Contains(lower, "objective")) {
		return true
	}
	return objectiveLine.MatchString(response) && phaseLine.MatchString(response) && len(response) > 200
}

// PlanGoal picks the text the plan should be about. An explicit
// "Create a project plan for: X" yields X. Otherwise, when the message
// accepts an earlier offer, the latest earlier user message that is neither
// a plan request nor a bare affirmation is used. priorUser is oldest first
// and excludes message.
func PlanGoal(message string, priorUser []string) string {
	if m := planGoalPrefix.FindStringSubmatch(message); m != nil {
		if goal := strings.TrimSpace(m[1]); goal != "" {
			return goal
		}
	}
	if explicitPlanKeyword.MatchString(message) && !isBareAffirmation(message) {
		return strings.TrimSpace(message)
	}
	for i := len(priorUser) - 1; i >= 0; i-- {
		lower := strings.ToLower(priorUser[i])
		if strings.Contains(lower, "create a project plan") ||
			strings.Contains(lower, "generate project plan") ||
			isBareAffirmation(priorUser[i]) {
			continue
		}
		return strings.TrimSpace(priorUser[i])
	}
	return strings.TrimSpace(message)
}

// isBareAffirmation reports whether message is a short yes with no content
// of its own.
func isBareAffirmation(message string) bool {
	trimmed := strings.TrimSpace(message)
	return affirmative.MatchString(trimmed) && len(strings.Fields(trimmed)) <= 4
}
