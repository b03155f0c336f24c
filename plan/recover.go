package plan

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleRunes       = 80
	maxDescriptionRunes = 200
	maxFallbackRunes    = 150
	maxBulletsPerStream = 5
	maxPlanListItems    = 10
	minBulletRunes      = 10
)

// strategy rebuilds workstreams from one kind of plan-shaped prose. It
// returns only deliverables actually found in the text; placeholders are
// added after the result is accepted.
type strategy struct {
	name    string
	extract func(text string) []Workstream
}

// recoveryStrategies are tried in order and the first acceptable result wins.
var recoveryStrategies = []strategy{
	{name: "numbered_bold", extract: numberedBoldWorkstreams},
	{name: "deliverables_marker", extract: deliverablesMarkerWorkstreams},
	{name: "plan_heading_list", extract: planHeadingWorkstreams},
}

// RecoverPlan tries to rebuild a ProjectPlan from prose. It returns the name
// of the strategy that succeeded, or ok=false when no strategy produced at
// least two workstreams with at least one deliverable between them.
func RecoverPlan(text string) (p ProjectPlan, name string, ok bool) {
	for _, s := range recoveryStrategies {
		ws := s.extract(text)
		if !acceptable(ws) {
			continue
		}
		return ProjectPlan{Workstreams: withPlaceholders(ws)}, s.name, true
	}
	return ProjectPlan{}, "", false
}

// Recover replaces the plan-shaped span of text with the canonical fenced
// form of the recovered plan. When recovery is declined the text comes back
// unchanged.
func Recover(text string) (string, bool) {
	p, _, ok := RecoverPlan(text)
	if !ok {
		return text, false
	}
	return composeRecovered(text, p), true
}

func acceptable(ws []Workstream) bool {
	if len(ws) < 2 {
		return false
	}
	for _, w := range ws {
		if len(w.Deliverables) > 0 {
			return true
		}
	}
	return false
}

func withPlaceholders(ws []Workstream) []Workstream {
	out := make([]Workstream, 0, len(ws))
	for _, w := range ws {
		if len(w.Deliverables) == 0 {
			w.Deliverables = []Deliverable{{Title: "Implementation", Description: w.Description}}
		}
		out = append(out, w)
	}
	return out
}

var (
	numberedBoldHeader = regexp.MustCompile(`(\d+)\.\s+\*\*([^*]+)\*\*([^\n]*)`)
	bulletLine         = regexp.MustCompile(`(?m)^[ \t]*[*\-•][ \t]+([^\n]+)`)
	bulletSeparator    = regexp.MustCompile(`:|\s[-–—]\s`)
	boldHeaderLine     = regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}[ \t]+)?\*\*([^*\n]+)\*\*[ \t]*:?[ \t]*([^\n]*)$`)
	deliverablesMarker = regexp.MustCompile(`(?i)\*\*Deliverables?:?\*\*:?`)
	deliverablesTitle  = regexp.MustCompile(`(?i)^deliverables?:?$`)
	planHeading        = regexp.MustCompile(`(?i)(?:project\s+plan|plan)[:\s]+([^\n]+)`)
	numberedItem       = regexp.MustCompile(`(?m)^[ \t]*(\d+)\.[ \t]+([^\n]+)`)
	sentenceEnd        = regexp.MustCompile(`[.!?]`)
)

// numberedBoldWorkstreams reads "N. **Title** rest of line" headers; the rest
// of the line is the description and bullets up to the next header become
// deliverables.
func numberedBoldWorkstreams(text string) []Workstream {
	locs := numberedBoldHeader.FindAllStringSubmatchIndex(text, -1)
	var out []Workstream
	for k, m := range locs {
		sectionEnd := len(text)
		if k+1 < len(locs) {
			sectionEnd = locs[k+1][0]
		}
		out = append(out, Workstream{
			Title:        cleanTitle(text[m[4]:m[5]]),
			Description:  orDefault(truncateRunes(trimLead(text[m[6]:m[7]]), maxDescriptionRunes), "Project workstream"),
			Deliverables: bulletDeliverables(text[m[1]:sectionEnd]),
		})
	}
	return out
}

// deliverablesMarkerWorkstreams reads "**Title**:" blocks that contain a
// "**Deliverables:**" marker followed by bullets.
func deliverablesMarkerWorkstreams(text string) []Workstream {
	var headers [][]int
	for _, m := range boldHeaderLine.FindAllStringSubmatchIndex(text, -1) {
		if deliverablesTitle.MatchString(strings.TrimSpace(text[m[2]:m[3]])) {
			continue
		}
		headers = append(headers, m)
	}

	var out []Workstream
	for k, m := range headers {
		blockEnd := len(text)
		if k+1 < len(headers) {
			blockEnd = headers[k+1][0]
		}
		block := text[m[1]:blockEnd]
		marker := deliverablesMarker.FindStringIndex(block)
		if marker == nil {
			continue
		}
		deliverables := bulletDeliverables(block[marker[1]:])
		if len(deliverables) == 0 {
			continue
		}
		desc := collapseSpace(text[m[4]:m[5]] + " " + block[:marker[0]])
		out = append(out, Workstream{
			Title:        cleanTitle(text[m[2]:m[3]]),
			Description:  orDefault(truncateRunes(trimLead(desc), maxDescriptionRunes), "Project workstream"),
			Deliverables: deliverables,
		})
	}
	return out
}

// planHeadingWorkstreams treats each top-level numbered item under a heading
// mentioning a plan as a workstream. Items without bullets get their first
// sentence as a deliverable.
func planHeadingWorkstreams(text string) []Workstream {
	heading := planHeading.FindStringIndex(text)
	if heading == nil {
		return nil
	}
	locs := numberedItem.FindAllStringSubmatchIndex(text, -1)
	if len(locs) > maxPlanListItems {
		locs = locs[:maxPlanListItems]
	}

	var out []Workstream
	for k, m := range locs {
		contentEnd := min(m[1]+500, len(text))
		if k+1 < len(locs) {
			contentEnd = locs[k+1][0]
		}
		line := text[m[4]:m[5]]
		content := strings.TrimSpace(text[m[1]:contentEnd])
		source := content
		if source == "" {
			source = line
		}

		deliverables := bulletDeliverables(content)
		if len(deliverables) == 0 {
			first := source
			if loc := sentenceEnd.FindStringIndex(source); loc != nil {
				first = source[:loc[0]]
			}
			first = strings.TrimSpace(first)
			if utf8.RuneCountInString(first) > minBulletRunes {
				rest := strings.TrimSpace(strings.TrimLeft(source[len(first):], ".!? "))
				deliverables = append(deliverables, Deliverable{
					Title:       truncateRunes(stripBold(first), maxTitleRunes),
					Description: orDefault(truncateRunes(rest, maxDescriptionRunes), "Project deliverable"),
				})
			}
		}
		if len(deliverables) == 0 && utf8.RuneCountInString(content) <= 50 {
			continue
		}
		title := cleanTitle(line)
		if title == "" {
			continue
		}
		out = append(out, Workstream{
			Title:        truncateRunes(title, maxTitleRunes),
			Description:  orDefault(truncateRunes(collapseSpace(bulletLine.ReplaceAllString(source, "")), maxDescriptionRunes), "Project workstream"),
			Deliverables: deliverables,
		})
	}
	return out
}

// bulletDeliverables turns up to five bullet lines of section into
// deliverables. Bullets of ten characters or fewer are ignored.
func bulletDeliverables(section string) []Deliverable {
	var out []Deliverable
	for _, m := range bulletLine.FindAllStringSubmatch(section, maxBulletsPerStream) {
		clean := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(clean) <= minBulletRunes {
			continue
		}
		out = append(out, splitBullet(clean))
	}
	return out
}

// splitBullet splits "Title: description" or "Title - description". Without a
// separator the whole bullet is the description.
func splitBullet(clean string) Deliverable {
	title, desc := clean, ""
	if loc := bulletSeparator.FindStringIndex(clean); loc != nil {
		title, desc = clean[:loc[0]], clean[loc[1]:]
	}
	title = cleanTitle(title)
	desc = strings.TrimSpace(strings.Trim(strings.TrimSpace(desc), "*"))
	if title == "" {
		title = cleanTitle(clean)
	}
	return Deliverable{
		Title:       truncateRunes(title, maxTitleRunes),
		Description: orDefault(truncateRunes(desc, maxDescriptionRunes), truncateRunes(stripBold(clean), maxFallbackRunes)),
	}
}

func cleanTitle(s string) string {
	s = stripBold(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimRight(s, ": "))
}

func stripBold(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

// trimLead drops the separator that usually follows a bold header.
func trimLead(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), ":-–—* "))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
